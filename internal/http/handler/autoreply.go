package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/dto"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

type AutoReplyProvider interface {
	AutoReply() service.AutoReplyService
	Enqueuer() service.Enqueuer
}

type AutoReplyHandler struct {
	services AutoReplyProvider
}

func NewAutoReplyHandler(services AutoReplyProvider) *AutoReplyHandler {
	return &AutoReplyHandler{services: services}
}

func (h *AutoReplyHandler) Get(c *gin.Context) {
	enabled := h.services.AutoReply().Enabled(c.Request.Context())
	c.JSON(http.StatusOK, dto.AutoReplyStatus{Success: true, Enabled: enabled})
}

// Set flips the toggle. Turning it on also queues a catch-up over the backlog.
func (h *AutoReplyHandler) Set(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AutoReplyToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	autoReply := h.services.AutoReply()
	wasEnabled := autoReply.Enabled(ctx)
	if err := autoReply.SetEnabled(ctx, *req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	slog.InfoContext(ctx, "auto-reply toggled", "enabled", *req.Enabled)

	if *req.Enabled && !wasEnabled {
		if err := h.services.Enqueuer().EnqueueCatchUp(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to queue catch-up", "error", err)
		}
	}
	c.JSON(http.StatusOK, dto.AutoReplyStatus{Success: true, Enabled: *req.Enabled})
}

func (h *AutoReplyHandler) CatchUp(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.services.AutoReply().Enabled(ctx) {
		respondError(c, service.ErrAutoReplyDisabled)
		return
	}
	if err := h.services.Enqueuer().EnqueueCatchUp(ctx); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.AcceptedResponse{Success: true, Message: "catch-up queued"})
}
