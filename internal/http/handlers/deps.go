package handlers

import (
	"time"

	"github.com/jmoiron/sqlx"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/events"
	applog "storefront/internal/log"
	"storefront/internal/mail"
	"storefront/internal/repos"
	"storefront/internal/services"
)

// Options carries the optional integrations. Nil fields fall back to no-op
// or log-only implementations.
type Options struct {
	Cache  cache.ProductCache
	Events events.Publisher
	Mail   *mail.Mailer
}

type Deps struct {
	DB      *sqlx.DB
	Auth    *services.AuthService
	Started time.Time

	AuthHandler      *AuthHandler
	CategoryHandler  *CategoryHandler
	ProductHandler   *ProductHandler
	InventoryHandler *InventoryHandler
	CartHandler      *CartHandler
	OrderHandler     *OrderHandler
	ProfileHandler   *ProfileHandler
	AdminHandler     *AdminHandler
	ReviewHandler    *ReviewHandler
	WishlistHandler  *WishlistHandler
	UploadHandler    *UploadHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, opts Options) (*Deps, error) {
	mailer := opts.Mail
	if mailer == nil {
		var err error
		mailer, err = mail.New(mail.LogSender{Log: func(m mail.Message) {
			applog.L().Info().Str("to", m.To).Str("subject", m.Subject).Msg("mail.logged")
		}})
		if err != nil {
			return nil, err
		}
	}

	tx := repos.NewTxRunner(db)
	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	cartRepo := repos.NewCartRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	userRepo := repos.NewUserRepo(db)
	tokenRepo := repos.NewTokenRepo(db)
	reviewRepo := repos.NewReviewRepo(db)
	wishRepo := repos.NewWishlistRepo(db)

	authSvc := services.NewAuthService(userRepo, tokenRepo, tx, mailer, services.AuthConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		BaseURL:       cfg.BaseURL,
	})
	catalogSvc := services.NewCatalogService(catRepo, prodRepo, opts.Cache)
	invSvc := services.NewInventoryService(invRepo, prodRepo, opts.Cache)
	cartSvc := services.NewCartService(cartRepo, prodRepo, invRepo)
	orderSvc := services.NewOrderService(tx, orderRepo, cartRepo, prodRepo, userRepo, opts.Events, mailer)
	userSvc := services.NewUserService(userRepo, tokenRepo, tx)
	reviewSvc := services.NewReviewService(tx, reviewRepo, prodRepo, opts.Cache)
	wishSvc := services.NewWishlistService(wishRepo, prodRepo)
	uploadSvc := services.NewUploadService(cfg.MediaDir, int64(cfg.UploadMaxBytes))

	return &Deps{
		DB:      db,
		Auth:    authSvc,
		Started: time.Now(),

		AuthHandler:      &AuthHandler{Auth: authSvc, Secure: cfg.IsProduction()},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		CartHandler:      &CartHandler{Cart: cartSvc},
		OrderHandler:     &OrderHandler{Orders: orderSvc},
		ProfileHandler:   &ProfileHandler{Users: userSvc},
		AdminHandler:     &AdminHandler{Users: userSvc},
		ReviewHandler:    &ReviewHandler{Reviews: reviewSvc},
		WishlistHandler:  &WishlistHandler{Wish: wishSvc},
		UploadHandler:    &UploadHandler{Uploads: uploadSvc},
	}, nil
}
