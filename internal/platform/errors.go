package platform

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

// ErrInvalidHeader rejects a mail header value that could inject further headers.
var ErrInvalidHeader = errors.New("invalid mail header")

// Error is an upstream platform failure with the vendor message preserved.
type Error struct {
	Platform model.Platform
	Status   int
	Code     int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s api error (code %d): %s", e.Platform, e.Code, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Platform, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the upstream failure to the status the inbox API returns.
func (e *Error) HTTPStatus() int {
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return e.Status
	}
	// Graph permission and capability codes arrive with a 400/500 transport status.
	switch e.Code {
	case 10, 200, 230, 551:
		return http.StatusForbidden
	case 190:
		return http.StatusUnauthorized
	case 100:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// StatusFor returns the HTTP status for err when it carries a platform Error.
func StatusFor(err error) (int, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.HTTPStatus(), true
	}
	return 0, false
}
