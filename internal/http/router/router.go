package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/handler"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/handler/webhook"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/middleware"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

type RouterConfig struct {
	SendRPS   float64
	SendBurst int
	// WebhookVerifyToken and AppSecret together enable /webhooks/meta.
	WebhookVerifyToken string
	AppSecret          string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sendLimit := middleware.RateLimit(cfg.SendRPS, cfg.SendBurst)

	api := router.Group("/api")
	{
		InboxRouter(api.Group("/inbox"), handler.NewInboxHandler(services))
		SyncRouter(api.Group("/sync"), handler.NewSyncHandler(services))
		AutoReplyRouter(api.Group("/ai"), handler.NewAutoReplyHandler(services))
		MessagesRouter(api.Group("/:platform"), handler.NewMessagesHandler(services), sendLimit)
	}

	switch {
	case cfg.WebhookVerifyToken != "" && cfg.AppSecret != "":
		WebhookRouter(router.Group("/webhooks"),
			webhook.NewMetaWebhookHandler(cfg.WebhookVerifyToken, cfg.AppSecret, services))
	case cfg.WebhookVerifyToken != "":
		slog.Warn("meta webhook disabled: FACEBOOK_APP_SECRET is required to verify event signatures")
	}
}

func MessagesRouter(router *gin.RouterGroup, h *handler.MessagesHandler, sendLimit gin.HandlerFunc) {
	router.GET("/messages", h.List)
	router.POST("/messages", sendLimit, h.Send)
	router.PUT("/messages", h.Update)
}

func InboxRouter(router *gin.RouterGroup, h *handler.InboxHandler) {
	router.GET("/feed", h.Feed)
	router.GET("/summary", h.Summary)
}

func SyncRouter(router *gin.RouterGroup, h *handler.SyncHandler) {
	router.GET("/status", h.Status)
	router.POST("/:platform", h.Trigger)
}

func AutoReplyRouter(router *gin.RouterGroup, h *handler.AutoReplyHandler) {
	router.GET("/auto-reply", h.Get)
	router.PUT("/auto-reply", h.Set)
	router.POST("/catch-up", h.CatchUp)
}

func WebhookRouter(router *gin.RouterGroup, h *webhook.MetaWebhookHandler) {
	router.GET("/meta", h.Verify)
	router.POST("/meta", h.HandleEvent)
}
