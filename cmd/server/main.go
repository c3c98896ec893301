package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/imranmit2020/pro-login-flow-sub000/common/id"
	"github.com/imranmit2020/pro-login-flow-sub000/common/logger"
	"github.com/imranmit2020/pro-login-flow-sub000/common/otel"
	"github.com/imranmit2020/pro-login-flow-sub000/core/config"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/app"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/middleware"
	httprouter "github.com/imranmit2020/pro-login-flow-sub000/internal/http/router"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/queue"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "inbox starting",
		"env", cfg.Env,
		"service", cfg.OTel.ServiceName,
		"facebook_pages", len(cfg.Facebook.Pages),
		"instagram", cfg.Instagram.Enabled(),
		"gmail", cfg.Gmail.Enabled())

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := app.ConnectDB(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	if database != nil {
		defer database.Close()
		slog.InfoContext(ctx, "database connected")
	} else {
		slog.WarnContext(ctx, "no database configured, messages are kept in memory")
	}

	redisClient, err := app.ConnectRedis(ctx, cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}

	var producer queue.Producer
	if redisClient != nil {
		producer = queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
		defer producer.Close()
		slog.InfoContext(ctx, "redis connected, auto-replies go to the worker", "stream", cfg.Pipeline.RedisStream)
	} else {
		slog.InfoContext(ctx, "redis disabled, auto-replies run in-process")
	}

	services, err := app.NewServices(ctx, cfg, app.Deps{
		DB:       database,
		Redis:    redisClient,
		Producer: producer,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to build services", "error", err)
		os.Exit(1)
	}

	syncCtx, stopSync := context.WithCancel(ctx)
	defer stopSync()
	if cfg.Sync.AutoStart {
		services.StartSync(syncCtx, cfg.Sync.Interval)
		slog.InfoContext(ctx, "periodic sync started", "interval", cfg.Sync.Interval)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	stopSync()
	if err := services.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "background work did not finish", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		SendRPS:            cfg.HTTP.SendRPS,
		SendBurst:          cfg.HTTP.SendBurst,
		WebhookVerifyToken: cfg.Facebook.WebhookVerifyToken,
		AppSecret:          cfg.Facebook.AppSecret,
	})

	return router
}

const banner = `
██╗███╗   ██╗██████╗  ██████╗ ██╗  ██╗
██║████╗  ██║██╔══██╗██╔═══██╗╚██╗██╔╝
██║██╔██╗ ██║██████╔╝██║   ██║ ╚███╔╝
██║██║╚██╗██║██╔══██╗██║   ██║ ██╔██╗
██║██║ ╚████║██████╔╝╚██████╔╝██╔╝ ██╗
╚═╝╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝
`
