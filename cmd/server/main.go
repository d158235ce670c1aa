package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"restopos-backend/internal/apperr"
	"restopos-backend/internal/audit"
	"restopos-backend/internal/auth"
	"restopos-backend/internal/cai"
	"restopos-backend/internal/cashregister"
	"restopos-backend/internal/catalog"
	"restopos-backend/internal/clock"
	"restopos-backend/internal/config"
	"restopos-backend/internal/correlative"
	"restopos-backend/internal/database"
	"restopos-backend/internal/invoicing"
	"restopos-backend/internal/logger"
	"restopos-backend/internal/metrics"
	"restopos-backend/internal/models"
	"restopos-backend/internal/notify"
	"restopos-backend/internal/orders"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync() //nolint:errcheck

	db, err := database.Open(cfg, zl)
	if err != nil {
		zl.Fatal("database", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Local SSE subscribers always get events; Redis and Telegram are optional sinks.
	hub := notify.NewHub()
	sinks := notify.Multi{hub}
	var queues []*notify.Async

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()

		origin := uuid.NewString()
		publisher := notify.NewAsync(notify.NewRedisPublisher(rdb, cfg.RedisChannelPrefix, origin), "redis", 512, zl)
		publisher.OnFailure = m.NotifyFailed
		queues = append(queues, publisher)
		sinks = append(sinks, publisher)

		go func() {
			if err := notify.Bridge(ctx, rdb, cfg.RedisChannelPrefix, origin, hub, zl.Named("notify.bridge")); err != nil {
				zl.Error("redis bridge stopped", zap.Error(err))
			}
		}()
	}

	if cfg.TelegramBotToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			zl.Warn("telegram disabled", zap.Error(err))
		} else {
			tg := notify.NewAsync(notify.NewTelegram(bot, cfg.TelegramChatID), "telegram", 128, zl)
			tg.OnFailure = m.NotifyFailed
			queues = append(queues, tg)
			sinks = append(sinks, tg)
		}
	}

	clk := clock.System{}
	catalogRepo := catalog.NewRepository(db)
	orderSvc := orders.NewService(db, catalogRepo, correlative.NewAllocator(), orders.Options{
		Clock:    clk,
		Location: cfg.Location,
		Notifier: sinks,
		Metrics:  m,
		Logger:   zl,
	})
	issuer := invoicing.NewIssuer(db, invoicing.Options{
		Clock:    clk,
		Location: cfg.Location,
		Notifier: sinks,
		Metrics:  m,
		Logger:   zl,
	})
	cashSvc := cashregister.NewService(db, clk, cfg.Location, sinks, m, zl)
	caiSvc := cai.NewService(db, clk, cfg.Location, sinks, zl)

	app := fiber.New(fiber.Config{
		AppName:               "restopos",
		ErrorHandler:          apperr.FiberErrorHandler(zl),
		DisableStartupMessage: cfg.IsProduction(),
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
	app.Use(logger.RequestLogger(zl))

	app.Get("/metrics", metrics.Handler(registry))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(db))
	api.Post("/auth/login", auth.LoginHandler(db, cfg.JWTSecret))

	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))

	elevated := []models.UserRole{models.RoleAdmin, models.RoleSupervisor}
	withRoles := func(extra ...models.UserRole) fiber.Handler {
		return auth.RequireRole(append(append([]models.UserRole{}, elevated...), extra...)...)
	}

	protected.Get("/auth/me", auth.MeHandler(db))
	protected.Post("/usuarios", auth.RequireRole(models.RoleAdmin), auth.CreateUserHandler(db))

	protected.Get("/productos", catalog.ListProductsHandler(catalogRepo))

	// Orders
	protected.Post("/ordenes", withRoles(models.RoleCashier), orders.CreateOrderHandler(orderSvc))
	protected.Post("/ordenes/:id/items", withRoles(models.RoleWaiter), orders.AddItemsHandler(orderSvc))
	protected.Patch("/ordenes/:id/estado", withRoles(models.RoleCashier, models.RoleKitchen), orders.ChangeStatusHandler(orderSvc))
	protected.Patch("/ordenes/:id/entregar", withRoles(models.RoleCashier), orders.DeliverHandler(orderSvc))
	protected.Get("/ordenes", orders.ListOrdersHandler(orderSvc))
	protected.Get("/ordenes/:id", orders.GetOrderHandler(orderSvc))

	// Invoicing
	protected.Post("/pos/cobrar", invoicing.IssueHandler(issuer))
	protected.Get("/facturas/:id", invoicing.GetHandler(issuer))
	protected.Post("/facturas/:id/reimprimir", invoicing.ReprintHandler(issuer))

	// Cash sessions
	protected.Post("/caja/abrir", cashregister.OpenHandler(cashSvc))
	protected.Post("/caja/cerrar", cashregister.CloseHandler(cashSvc))
	protected.Get("/caja/sesion-activa", cashregister.ActiveHandler(cashSvc))

	// Fiscal authorizations
	adminOnly := auth.RequireRole(models.RoleAdmin)
	protected.Get("/cai", adminOnly, cai.ListHandler(caiSvc))
	protected.Post("/cai", adminOnly, cai.CreateHandler(caiSvc))
	protected.Patch("/cai/:id/activar", adminOnly, cai.ActivateHandler(caiSvc))

	protected.Get("/eventos", notify.StreamHandler(hub))
	protected.Get("/auditoria", withRoles(), audit.ListAuditLogsHandler(db))

	go func() {
		<-ctx.Done()
		zl.Info("shutting down")
		hub.Close()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zl.Error("http shutdown", zap.Error(err))
		}
	}()

	zl.Info("server listening", zap.String("port", cfg.HTTPPort), zap.String("environment", cfg.Environment))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		zl.Error("http server", zap.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, q := range queues {
		if err := q.Close(drainCtx); err != nil {
			zl.Warn("notification queue not drained", zap.Error(err))
		}
	}
}
