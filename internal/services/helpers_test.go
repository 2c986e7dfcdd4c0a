package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	"storefront/internal/mail"
	"storefront/internal/repos"
	"storefront/internal/services"
)

type env struct {
	db      *sqlx.DB
	outbox  *mail.Outbox
	catalog *services.CatalogService
	inv     *services.InventoryService
	cart    *services.CartService
	orders  *services.OrderService
	users   *services.UserService
	auth    *services.AuthService
	reviews *services.ReviewService
	wish    *services.WishlistService
	catID   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, repos.EnsureRoles(context.Background(), db))

	outbox := &mail.Outbox{}
	mailer, err := mail.New(outbox)
	require.NoError(t, err)

	tx := repos.NewTxRunner(db)
	cats := repos.NewCategoryRepo(db)
	prods := repos.NewProductRepo(db)
	inv := repos.NewInventoryRepo(db)
	carts := repos.NewCartRepo(db)
	orders := repos.NewOrderRepo(db)
	users := repos.NewUserRepo(db)
	tokens := repos.NewTokenRepo(db)

	e := &env{db: db, outbox: outbox}
	e.catalog = services.NewCatalogService(cats, prods, nil)
	e.inv = services.NewInventoryService(inv, prods, nil)
	e.cart = services.NewCartService(carts, prods, inv)
	e.orders = services.NewOrderService(tx, orders, carts, prods, users, nil, mailer)
	e.users = services.NewUserService(users, tokens, tx)
	e.users.Cost = bcrypt.MinCost
	e.auth = services.NewAuthService(users, tokens, tx, mailer, services.AuthConfig{
		AccessSecret: "access-test", RefreshSecret: "refresh-test",
		AccessTTL: 15 * time.Minute, RefreshTTL: 24 * time.Hour, BaseURL: "http://shop.test",
	})
	e.auth.Cost = bcrypt.MinCost
	e.reviews = services.NewReviewService(tx, repos.NewReviewRepo(db), prods, nil)
	e.wish = services.NewWishlistService(repos.NewWishlistRepo(db), prods)

	c, err := e.catalog.CreateCategory(context.Background(), services.CategoryInput{Name: "Retro Consoles"})
	require.NoError(t, err)
	e.catID = c.ID
	return e
}

// product creates an active product with the given stock and price.
func (e *env) product(t *testing.T, name string, stock int, price string) domain.Product {
	t.Helper()
	d := decimal.RequireFromString(price)
	p, err := e.catalog.CreateProduct(context.Background(), services.ProductInput{
		CategoryID: e.catID, Name: name, Price: &d, Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func (e *env) user(t *testing.T, role string) *domain.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), services.CreateUserInput{
		Email: uuid.NewString()[:8] + "@example.com", Password: "Passw0rd!", Name: "Test User", Role: role,
	})
	require.NoError(t, err)
	return u
}
