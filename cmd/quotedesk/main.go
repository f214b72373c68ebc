package main

import (
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/redis/go-redis/v9"

	"quotedesk/internal/config"
	"quotedesk/internal/dedupe"
	"quotedesk/internal/gateway"
	"quotedesk/internal/http/handlers"
	applog "quotedesk/internal/log"
	"quotedesk/internal/repos"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	// Webhook dedupe: shared cache when Redis is configured, otherwise
	// a per-process one. Single-instance deploys lose nothing either way.
	var dd dedupe.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		dd = dedupe.NewRedis(rdb)
		log.Printf("[dedupe] redis at %s", cfg.RedisAddr)
	} else {
		dd = dedupe.NewMemory()
		log.Printf("[dedupe] in-process cache")
	}

	gw := gateway.NewMercadoPago(
		cfg.GatewayBaseURL,
		cfg.GatewayAccessToken,
		cfg.PublicBaseURL+"/webhooks/payments",
		cfg.GatewayTimeout,
	)

	// Templates & app
	engine := html.New("./web/templates", ".html")

	app := fiber.New(fiber.Config{
		Views: engine,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		},
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			// Gateway retries must never be throttled away.
			return c.Path() == "/webhooks/payments"
		},
	}))

	deps := handlers.NewDeps(db, cfg, gw, dd)

	// ---------- API ----------
	api := app.Group("/api/v1")

	api.Post("/quotes", deps.QuoteHandler.Create)
	api.Get("/quotes", deps.QuoteHandler.List)
	api.Get("/quotes/:id", deps.QuoteHandler.Get)
	api.Post("/quotes/:id/cancel", deps.QuoteHandler.Cancel)
	api.Post("/quotes/:id/payment", deps.PaymentHandler.Create)

	api.Get("/payments/:id", deps.PaymentHandler.Get)
	api.Post("/payments/:id/cancel", deps.PaymentHandler.Cancel)

	api.Get("/products", deps.ProductHandler.List)
	api.Get("/products/:id", deps.ProductHandler.Get)
	availLimiter := limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/availability", availLimiter, deps.ProductHandler.Availability)

	// Gateway notifications
	app.Post("/webhooks/payments", deps.WebhookHandler.Handle)

	// Admin
	admin := app.Group("/admin")
	admin.Post("/stock", deps.AdminHandler.AdjustStock)

	// Printable quote page
	app.Get("/quote/:id", deps.QuoteHandler.View)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})

	// ---------- Expiry sweeper ----------
	stopSweep := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.ExpireSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := deps.Quotes.ExpireDue(time.Now())
				if err != nil {
					log.Printf("[sweep] expire failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("[sweep] expired %d quote(s)", n)
				}
			case <-stopSweep:
				return
			}
		}
	}()

	// ---------- Serve with graceful shutdown ----------
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[shutdown] draining connections")
	close(stopSweep)
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("[shutdown] forced: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("[shutdown] db close: %v", err)
	}
	log.Println("[shutdown] done")
}
