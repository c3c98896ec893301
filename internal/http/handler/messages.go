package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/dto"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
)

// MessagesProvider resolves the per-platform services. *service.Services satisfies it.
type MessagesProvider interface {
	Messages(p model.Platform) (service.MessagesService, error)
	Gmail() service.GmailService
}

// MessagesHandler serves /api/:platform/messages for every platform.
// Gmail is live-only and takes a different body shape on writes.
type MessagesHandler struct {
	services MessagesProvider
}

func NewMessagesHandler(services MessagesProvider) *MessagesHandler {
	return &MessagesHandler{services: services}
}

func (h *MessagesHandler) List(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if p == model.PlatformGmail {
		limit, err := queryLimit(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		msgs, err := h.services.Gmail().List(ctx, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.GmailMessagesResponse{Success: true, Messages: msgs})
		return
	}

	svc, err := h.services.Messages(p)
	if err != nil {
		respondError(c, err)
		return
	}

	if conversationID := c.Query("conversationId"); conversationID != "" {
		thread, err := svc.ConversationMessages(ctx, conversationID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.ConversationMessagesResponse{
			Success:        true,
			Platform:       thread.Platform,
			Source:         thread.Source,
			ConversationID: thread.ConversationID,
			Messages:       nonNil(thread.Messages),
		})
		return
	}

	list, err := svc.ListConversations(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ConversationListResponse{
		Success:       true,
		Platform:      list.Platform,
		Source:        list.Source,
		Conversations: nonNil(list.Conversations),
	})
}

func (h *MessagesHandler) Send(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if p == model.PlatformGmail {
		var req dto.GmailReplyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		id, err := h.services.Gmail().Reply(ctx, platform.GmailReplyParams{
			ThreadID: req.ThreadID,
			To:       req.To,
			Subject:  req.Subject,
			Body:     req.Body,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.SendMessageResponse{Success: true, MessageID: id})
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	svc, err := h.services.Messages(p)
	if err != nil {
		respondError(c, err)
		return
	}
	result, err := svc.Send(ctx, service.SendParams{
		RecipientID:      req.RecipientID,
		Message:          req.Message,
		ReplyToMessageID: req.ReplyToMessageID,
		AccountID:        req.AccountID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SendMessageResponse{Success: true, MessageID: result.MessageID})
}

func (h *MessagesHandler) Update(c *gin.Context) {
	p, ok := platformParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var req dto.MessageActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if p == model.PlatformGmail {
		if req.Action != dto.ActionMarkRead {
			badRequest(c, fmt.Errorf("unsupported gmail action %q", req.Action))
			return
		}
		if err := h.services.Gmail().MarkRead(ctx, req.MessageID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.MessageActionResponse{Success: true, Action: req.Action, Updated: 1})
		return
	}

	svc, err := h.services.Messages(p)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.ConversationID == "" {
		badRequest(c, fmt.Errorf("conversationId is required"))
		return
	}

	switch req.Action {
	case dto.ActionMarkRead:
		n, err := svc.MarkConversationRead(ctx, req.ConversationID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.MessageActionResponse{Success: true, Action: req.Action, Updated: n})
	case dto.ActionSyncConversation:
		svc.RequestSync(ctx, req.ConversationID)
		slog.InfoContext(ctx, "conversation sync requested", "platform", p, "conversation_id", req.ConversationID)
		c.JSON(http.StatusAccepted, dto.MessageActionResponse{Success: true, Action: req.Action, Queued: true})
	default:
		badRequest(c, fmt.Errorf("unsupported action %q", req.Action))
	}
}

func queryLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return limit, nil
}

// nonNil keeps empty listings encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
