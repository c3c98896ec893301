package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/dto"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

type FeedProvider interface {
	Feed() service.FeedService
}

type InboxHandler struct {
	services FeedProvider
}

func NewInboxHandler(services FeedProvider) *InboxHandler {
	return &InboxHandler{services: services}
}

func (h *InboxHandler) Feed(c *gin.Context) {
	limit, err := queryLimit(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	feed, err := h.services.Feed().Feed(c.Request.Context(), service.FeedParams{Limit: limit})
	if err != nil {
		respondError(c, err)
		return
	}
	feed.Messages = nonNil(feed.Messages)
	c.JSON(http.StatusOK, dto.FeedResponse{Success: true, FeedResult: feed})
}

func (h *InboxHandler) Summary(c *gin.Context) {
	summaries, err := h.services.Feed().Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SummaryResponse{Success: true, Platforms: nonNil(summaries)})
}
