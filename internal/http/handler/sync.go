package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/dto"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

type SyncProvider interface {
	Sync(p model.Platform) (service.SyncService, error)
	Background() *service.Background
}

type SyncHandler struct {
	services SyncProvider
}

func NewSyncHandler(services SyncProvider) *SyncHandler {
	return &SyncHandler{services: services}
}

func (h *SyncHandler) Status(c *gin.Context) {
	statuses := make([]service.SyncStatus, 0, len(model.SocialPlatforms))
	for _, p := range model.SocialPlatforms {
		svc, err := h.services.Sync(p)
		if err != nil {
			continue
		}
		statuses = append(statuses, svc.Status())
	}
	c.JSON(http.StatusOK, dto.SyncStatusResponse{Success: true, Platforms: statuses})
}

// Trigger starts a sync pass in the background and answers 202 at once.
// The pass result shows up in Status as LastResult.
func (h *SyncHandler) Trigger(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	if !p.IsSocial() {
		badRequest(c, fmt.Errorf("%s has no stored history to sync", p))
		return
	}
	svc, err := h.services.Sync(p)
	if err != nil {
		respondError(c, err)
		return
	}

	h.services.Background().FireAndForget(c.Request.Context(), "sync."+string(p), func(ctx context.Context) error {
		_, err := svc.SyncMessages(ctx)
		return err
	})
	c.JSON(http.StatusAccepted, dto.AcceptedResponse{Success: true, Message: fmt.Sprintf("%s sync started", p)})
}
