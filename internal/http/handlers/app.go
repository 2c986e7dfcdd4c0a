package handlers

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"storefront/internal/apperr"
	"storefront/internal/config"
	applog "storefront/internal/log"
)

const (
	Version = "1.0.0"

	// maxBody applies to every route except uploads.
	maxBody    = 1 << 20
	uploadPath = "/api/upload"
)

// NewApp builds the Fiber app with the middleware chain and every route.
func NewApp(cfg config.Config, d *Deps) *fiber.App {
	bodyLimit := maxBody
	if cfg.UploadMaxBytes+maxBody > bodyLimit {
		// Room for the multipart framing around the file.
		bodyLimit = cfg.UploadMaxBytes + maxBody
	}
	app := fiber.New(fiber.Config{
		AppName:               "storefront",
		ErrorHandler:          ErrorHandler(cfg.IsProduction()),
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(accessLog())
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigin,
		AllowCredentials: cfg.CORSOrigin != "*",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return cfg.RateLimitMax <= 0 || p == "/health" || strings.HasPrefix(p, "/media/")
		},
		LimitReached: limitReached("rate.global.hit"),
	}))
	app.Use(limitBody(maxBody, uploadPath))
	app.Use(Authenticate(d.Auth))

	app.Get("/health", d.health)
	app.Get("/api", func(c *fiber.Ctx) error {
		return ok(c, fiber.Map{"name": "storefront", "version": Version, "env": cfg.Env})
	})
	app.Get("/media/*", media(cfg.MediaDir))

	api := app.Group("/api")
	authLimit := limiter.New(limiter.Config{
		Max:          cfg.AuthRateMax,
		Expiration:   cfg.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() + "|auth" },
		Next:         func(*fiber.Ctx) bool { return cfg.AuthRateMax <= 0 },
		LimitReached: limitReached("rate.auth.hit"),
	})
	user := RequireUser()
	admin := RequireAdmin()

	a := d.AuthHandler
	auth := api.Group("/auth")
	auth.Post("/register", authLimit, a.Register)
	auth.Post("/login", authLimit, a.Login)
	auth.Post("/refresh", a.Refresh)
	auth.Post("/logout", a.Logout)
	auth.Get("/me", user, a.Me)
	auth.Post("/password/forgot", authLimit, a.ForgotPassword)
	auth.Post("/password/reset", authLimit, a.ResetPassword)
	auth.Post("/password/otp", authLimit, a.RequestOTP)
	auth.Post("/password/otp/verify", authLimit, a.VerifyOTP)

	cat := d.CategoryHandler
	api.Get("/categories", cat.List)
	api.Get("/categories/:id", cat.Get)
	api.Post("/categories", admin, cat.Create)
	api.Put("/categories/:id", admin, cat.Update)
	api.Delete("/categories/:id", admin, cat.Delete)

	p, inv := d.ProductHandler, d.InventoryHandler
	search := limiter.New(limiter.Config{
		Max:          60,
		Expiration:   time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() + "|search" },
		Next:         func(c *fiber.Ctx) bool { return strings.TrimSpace(c.Query("q")) == "" },
		LimitReached: limitReached("rate.search.hit"),
	})
	api.Get("/products", search, p.List)
	api.Get("/products/:id", p.Get)
	api.Post("/products", admin, p.Create)
	api.Put("/products/:id", admin, p.Update)
	api.Delete("/products/:id", admin, p.Delete)
	api.Post("/products/:id/variants", admin, p.CreateVariant)
	api.Delete("/products/:id/variants/:variantId", admin, p.DeleteVariant)
	api.Get("/products/:id/inventory", inv.Availability)
	api.Post("/products/:id/inventory/:op", admin, inv.Adjust)
	api.Get("/inventory/low", admin, inv.LowStock)

	cart := d.CartHandler
	api.Get("/cart", user, cart.View)
	api.Delete("/cart", user, cart.Clear)
	api.Post("/cart/items", user, cart.Add)
	api.Put("/cart/items/:itemId", user, cart.Update)
	api.Delete("/cart/items/:itemId", user, cart.Remove)

	o := d.OrderHandler
	api.Get("/orders", user, o.List)
	api.Post("/orders", user, o.Create)
	api.Post("/orders/checkout", user, o.Checkout)
	api.Get("/orders/:id", user, o.Get)
	api.Post("/orders/:id/cancel", user, o.Cancel)
	api.Put("/orders/:id", admin, o.Update)
	api.Patch("/orders/:id/status", admin, o.UpdateStatus)
	api.Delete("/orders/:id", admin, o.Delete)

	prof, adm := d.ProfileHandler, d.AdminHandler
	api.Get("/users/profile", user, prof.Get)
	api.Put("/users/profile", user, prof.Update)
	api.Put("/users/profile/password", user, prof.ChangePassword)
	api.Get("/users/roles", admin, adm.Roles)
	api.Get("/users", admin, adm.ListUsers)
	api.Get("/users/:id", admin, adm.GetUser)
	api.Post("/users", admin, adm.CreateUser)
	api.Put("/users/:id", admin, adm.UpdateUser)
	api.Delete("/users/:id", admin, adm.DeleteUser)

	rv := d.ReviewHandler
	api.Get("/reviews/product/:productId", rv.ListByProduct)
	api.Post("/reviews", user, rv.Create)
	api.Delete("/reviews/:id", user, rv.Delete)

	w := d.WishlistHandler
	api.Get("/wishlist", user, w.List)
	api.Post("/wishlist", user, w.Add)
	api.Put("/wishlist/:productId", user, w.Update)
	api.Delete("/wishlist/:productId", user, w.Remove)

	app.Post(uploadPath, admin, d.UploadHandler.Upload)

	app.Use(func(c *fiber.Ctx) error { return apperr.NotFound("route") })
	return app
}

// accessLog writes one line per request. Errors are rendered here, ahead
// of the app's own handling, so the line carries the final status.
func accessLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		applog.Access(c, time.Since(start))
		return nil
	}
}

func limitReached(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		applog.Security(c, action, nil)
		return c.Status(fiber.StatusTooManyRequests).JSON(envelope{Message: "Too many requests, please try again later."})
	}
}

// limitBody enforces max on every path but except.
func limitBody(max int, except string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() != except && len(c.Body()) > max {
			applog.Security(c, "request.too_large", map[string]any{"bytes": len(c.Body())})
			return fiber.ErrRequestEntityTooLarge
		}
		return c.Next()
	}
}

func (d *Deps) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	data := fiber.Map{
		"status":   "ok",
		"database": "up",
		"uptime":   time.Since(d.Started).Round(time.Second).String(),
	}
	if err := d.DB.PingContext(ctx); err != nil {
		applog.Error(c, "health.db", err, nil)
		data["status"], data["database"] = "degraded", "down"
		return c.Status(fiber.StatusServiceUnavailable).JSON(envelope{Data: data})
	}
	return ok(c, data)
}

// media serves files under dir and refuses anything that could escape it.
func media(dir string) fiber.Handler {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return func(c *fiber.Ctx) error {
		path := c.Params("*")
		raw := strings.ToLower(path)
		if strings.Contains(raw, "..") || strings.Contains(raw, "%2e") || strings.Contains(raw, "\x00") {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return fiber.ErrNotFound
		}
		clean := filepath.Clean(path)
		if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return fiber.ErrNotFound
		}
		return c.SendFile(filepath.Join(dir, clean), true)
	}
}
