package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"

	"coursesync/docs"
	"coursesync/internal/bootstrap"
	"coursesync/internal/config"
	handlers "coursesync/internal/http/handler"
	"coursesync/internal/http/middleware"
	"coursesync/internal/logging"
	"coursesync/internal/otel"
	"coursesync/internal/scheduler"
)

// @title Course Sync API
// @version 1.0
// @BasePath /
func main() {
	cfg := config.Load()
	loc := cfg.Location()
	logger := logging.New(loc, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, loc)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer app.Close()

	promMiddleware, err := middleware.NewPrometheusMiddleware(app.Registry)
	if err != nil {
		log.Fatalf("failed to register http metrics: %v", err)
	}

	if cfg.Sync.RefreshInterval > 0 {
		sched, err := scheduler.New(loc)
		if err != nil {
			log.Fatalf("failed to create scheduler: %v", err)
		}
		if _, err := sched.SchedulePeriodicRefresh(ctx, cfg.Sync.RefreshInterval, app.Sync); err != nil {
			log.Fatalf("failed to schedule refresh: %v", err)
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Error("scheduler_stop_failed", logging.Fields{"error": err})
			}
		}()
	}

	server := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	server.Use(otelfiber.Middleware())
	server.Use(middleware.RequestID())
	server.Use(middleware.Logger(loc))
	server.Use(promMiddleware.Handler())

	handlers.RegisterRoutes(server, handlers.Dependencies{
		DB:         app.DB,
		Sync:       app.Sync,
		Courses:    app.Courses,
		RefreshKey: cfg.RefreshKey,
		Gatherer:   app.Registry,
		StaticDir:  cfg.StaticDir,
	})

	// Swagger UI with dynamic host and scheme
	server.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server_shutdown_failed", logging.Fields{"error": err})
		}
	}()

	if cfg.RefreshKey == "" {
		logger.Warn("refresh_disabled", logging.Fields{"reason": "REFRESH_KEY is empty"})
	}
	logger.Info("server_starting", logging.Fields{"port": cfg.Port, "source_root": cfg.Sync.SourceRoot, "engine": cfg.Sync.Engine})

	if err := server.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
