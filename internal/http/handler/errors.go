package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/http/dto"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

// statusFor maps service and platform errors onto an HTTP status.
func statusFor(err error) int {
	if status, ok := platform.StatusFor(err); ok {
		return status
	}
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrUnsupportedPlatform),
		errors.Is(err, platform.ErrInvalidHeader):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAutoReplyDisabled):
		return http.StatusConflict
	case errors.Is(err, platform.ErrNoClient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "error", err, "status", status)
	} else {
		slog.WarnContext(ctx, "request rejected", "error", err, "status", status)
	}
	c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	slog.WarnContext(c.Request.Context(), "invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
}

// platformParam reads :platform from the route.
func platformParam(c *gin.Context) (model.Platform, bool) {
	p, err := model.ParsePlatform(c.Param("platform"))
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return p, true
}
