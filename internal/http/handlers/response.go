// Package handlers provides the HTTP handlers of the support API.
//
// This file holds the response helpers every endpoint goes through. Errors
// always use the ErrorResponse envelope with a stable code; service errors
// are mapped onto status and code in one table so the widget sees the same
// answer for the same condition on every route.
//
// Example error response:
//
//	HTTP/1.1 403 Forbidden
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "restricted",
//	  "message": "messaging is temporarily restricted"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-livechat/internal/http/middleware"
	"github.com/tbourn/go-livechat/internal/services"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching client reports to server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message, safe to show to customers
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with the envelope. 5xx answers are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, code, msg, nil)
}

// failWith is fail with the underlying cause attached to the 5xx log line.
// The cause never reaches the client.
func failWith(c *gin.Context, status int, code, msg string, cause error) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg)
		if cause != nil {
			ev = ev.Err(cause)
		}
		ev.Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's fallback routes.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// serviceErrors maps service sentinels to their HTTP answer. Order matters
// only for errors wrapping several sentinels; the first match wins.
var serviceErrors = []struct {
	target error
	status int
	code   string
	msg    string
}{
	{services.ErrInvalidConversation, http.StatusBadRequest, ErrCodeBadRequest, "invalid conversation id"},
	{services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeBadRequest, "body required"},
	{services.ErrTooLong, http.StatusBadRequest, ErrCodeBadRequest, "body too long"},
	{services.ErrInvalidRestriction, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{services.ErrInvalidStatus, http.StatusBadRequest, ErrCodeBadRequest, "status must be online, away or offline"},
	{services.ErrConversationNotFound, http.StatusNotFound, ErrCodeNotFound, "conversation not found"},
	{services.ErrNotRestricted, http.StatusNotFound, ErrCodeNotFound, "conversation not restricted"},
	{services.ErrConversationClosed, http.StatusConflict, ErrCodeConversationClosed, "conversation closed"},
	{services.ErrRestricted, http.StatusForbidden, ErrCodeRestricted, "messaging is temporarily restricted"},
}

// failService answers a service error. Unknown errors become a 500 with
// fallbackCode; an empty table message means err's own text is safe to show.
func failService(c *gin.Context, err error, fallbackCode string) {
	for _, m := range serviceErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		msg := m.msg
		if msg == "" {
			msg = err.Error()
		}
		fail(c, m.status, m.code, msg)
		return
	}
	failWith(c, http.StatusInternalServerError, fallbackCode, "internal error", err)
}
