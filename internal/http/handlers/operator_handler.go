// Operator HTTP handlers.
//
// Back-office endpoints, mounted behind middleware.RequireOperator:
//   - POST   /operator/conversations/{id}/replies
//   - POST   /operator/conversations/{id}/close
//   - PUT    /operator/conversations/{id}/restriction
//   - DELETE /operator/conversations/{id}/restriction
//   - GET    /operator/conversations/{id}/transcript
//   - PUT    /operator/channel/status
//
// The transcript is paginated and supports conditional GETs through a weak
// ETag derived from the message count and newest timestamp.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-livechat/internal/domain"
	"github.com/tbourn/go-livechat/internal/http/middleware"
	"github.com/tbourn/go-livechat/internal/repo"
	"github.com/tbourn/go-livechat/internal/services"
)

//
// DTOs
//

// ReplyRequest is the payload of an operator reply.
type ReplyRequest struct {
	Body string `json:"body" binding:"required" example:"Your parcel ships tomorrow."`
	// SenderName overrides the name from the operator token.
	SenderName string `json:"sender_name,omitempty" example:"Grace"`
}

// CloseRequest is the optional payload of a closure.
type CloseRequest struct {
	// Note replaces the default closure text shown to the customer.
	Note string `json:"note,omitempty" example:"Thanks for chatting with us!"`
}

// RestrictRequest imposes a restriction. Until wins over DurationSeconds;
// with neither the restriction has no announced end.
type RestrictRequest struct {
	Until           *time.Time `json:"until,omitempty" example:"2025-03-01T12:00:00Z"`
	DurationSeconds int        `json:"duration_seconds,omitempty" example:"900"`
	Reason          string     `json:"reason,omitempty" example:"abusive language"`
}

// SetChannelStatusRequest changes the channel availability.
type SetChannelStatusRequest struct {
	Status domain.ChannelStatus `json:"status" binding:"required" example:"away" enums:"online,away,offline"`
}

// TranscriptResponse is a page of a conversation transcript.
type TranscriptResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Handlers
//

// PostReply godoc
// @ID          postReply
// @Summary     Reply to a conversation as an operator
// @Tags        Operator
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Conversation ID"
// @Param       body  body  handlers.ReplyRequest  true  "Reply payload"
// @Success     201  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Conversation closed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /operator/conversations/{id}/replies [post]
func (h *Handlers) PostReply(c *gin.Context) {
	var req ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}

	name := req.SenderName
	if name == "" {
		if claims, found := middleware.ClaimsFrom(c); found {
			name = claims.Name
		}
	}

	m, err := h.operator.PostOperatorReply(c.Request.Context(), c.Param("id"), name, sanitizeBody(req.Body))
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}
	ok(c, http.StatusCreated, MessageResponse{Message: m})
}

// CloseConversation godoc
// @ID          closeConversation
// @Summary     Close a conversation
// @Description Appends a system message; the widget starts its cooldown when it sees it.
// @Tags        Operator
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true   "Conversation ID"
// @Param       body  body  handlers.CloseRequest  false  "Optional closing note"
// @Success     201  {object}  handlers.MessageResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already closed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /operator/conversations/{id}/close [post]
func (h *Handlers) CloseConversation(c *gin.Context) {
	var req CloseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	m, err := h.operator.CloseConversation(c.Request.Context(), c.Param("id"), sanitizeBody(req.Note))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusCreated, MessageResponse{Message: m})
}

// RestrictConversation godoc
// @ID          restrictConversation
// @Summary     Restrict a conversation
// @Description Blocks customer sends until `until` (or for `duration_seconds`).
// @Description Without either the restriction lasts until lifted.
// @Tags        Operator
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Conversation ID"
// @Param       body  body  handlers.RestrictRequest  true  "Restriction"
// @Success     200  {object}  domain.RestrictionStatus
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /operator/conversations/{id}/restriction [put]
func (h *Handlers) RestrictConversation(c *gin.Context) {
	var req RestrictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.DurationSeconds < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "duration_seconds must be positive")
		return
	}

	until := req.Until
	if until == nil && req.DurationSeconds > 0 {
		t := h.now().UTC().Add(time.Duration(req.DurationSeconds) * time.Second)
		until = &t
	}

	r, err := h.operator.Restrict(c.Request.Context(), c.Param("id"), until, req.Reason)
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, domain.RestrictionStatus{Restricted: true, Until: r.Until, Reason: r.Reason})
}

// LiftRestriction godoc
// @ID          liftRestriction
// @Summary     Lift a restriction
// @Tags        Operator
// @Security    BearerAuth
// @Param       id  path  string  true  "Conversation ID"
// @Success     204  "Lifted"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Not restricted"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /operator/conversations/{id}/restriction [delete]
func (h *Handlers) LiftRestriction(c *gin.Context) {
	if err := h.operator.Lift(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// SetChannelStatus godoc
// @ID          setChannelStatus
// @Summary     Change the support channel availability
// @Tags        Operator
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.SetChannelStatusRequest  true  "New status"
// @Success     200  {object}  handlers.ChannelStatusResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Router      /operator/channel/status [put]
func (h *Handlers) SetChannelStatus(c *gin.Context) {
	var req SetChannelStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	if err := h.operator.SetChannelStatus(req.Status); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	middleware.LoggerFrom(c).Info().Str("status", string(req.Status)).Msg("channel status changed")
	ok(c, http.StatusOK, ChannelStatusResponse{Status: req.Status})
}

// GetTranscript godoc
// @ID          getTranscript
// @Summary     Page through a conversation transcript
// @Tags        Operator
// @Produce     json
// @Security    BearerAuth
// @Param       id             path    string  true   "Conversation ID"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "ETag of a previous answer"
// @Success     200  {object}  handlers.TranscriptResponse
// @Success     304  "Not modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse  "Forbidden"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /operator/conversations/{id}/transcript [get]
func (h *Handlers) GetTranscript(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("id")
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if db := h.statsDB(); db != nil {
		count, maxTS, err := repo.MessagesStats(ctx, db, convID)
		if err == nil && count > 0 {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixMilli()
			}
			etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, convID, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.operator.Transcript(ctx, convID, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, TranscriptResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// statsDB returns the database behind the concrete SupportService, or nil
// when the handlers run over another implementation.
func (h *Handlers) statsDB() *gorm.DB {
	if svc, isConcrete := h.operator.(*services.SupportService); isConcrete {
		return svc.DB
	}
	return nil
}
