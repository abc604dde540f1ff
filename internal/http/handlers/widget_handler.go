// Widget HTTP handlers.
//
// These endpoints serve the storefront chat widget:
//   - GET  /customer/me                          (who is logged in, if anyone)
//   - GET  /channel/status                       (online / away / offline)
//   - GET  /conversations/{id}/messages?after=   (incremental poll)
//   - POST /conversations/{id}/messages          (customer send)
//   - GET  /conversations/{id}/restriction       (operator restriction check)
//
// Sends are idempotent: the widget passes its temporary message id as the
// Idempotency-Key header, and a retried send answers 200 with the stored
// message and `Idempotency-Replayed: true` instead of 201.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-livechat/internal/domain"
	"github.com/tbourn/go-livechat/internal/http/middleware"
	"github.com/tbourn/go-livechat/internal/services"
	"github.com/tbourn/go-livechat/internal/utils"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload of a customer send.
type PostMessageRequest struct {
	// Body is the message text. It must be non-empty after trimming.
	Body string `json:"body" binding:"required" example:"Hi, where is my order?"`
	// SenderName is the display name; "Guest" when empty.
	SenderName string `json:"sender_name,omitempty" example:"Ada Lovelace"`
	// CustomerEmail is stored with the message but never echoed back.
	CustomerEmail string `json:"customer_email,omitempty" example:"ada@example.com"`
}

// MessageResponse wraps a single stored message.
type MessageResponse struct {
	Message *domain.Message `json:"message"`
}

// MessagesResponse is the answer of a poll.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

//
// Handlers
//

// GetCustomer godoc
// @ID          getCustomer
// @Summary     Resolve the current customer
// @Description Reports whether the request carries a valid storefront token and,
// @Description if so, the customer's display name and e-mail. Operator tokens are flagged.
// @Tags        Widget
// @Produce     json
// @Param       Authorization  header  string  false  "Bearer token"
// @Success     200  {object}  domain.CustomerLookup
// @Router      /customer/me [get]
func (h *Handlers) GetCustomer(c *gin.Context) {
	claims, found := middleware.ClaimsFrom(c)
	if !found {
		ok(c, http.StatusOK, domain.CustomerLookup{Authenticated: false})
		return
	}
	ok(c, http.StatusOK, domain.CustomerLookup{
		Authenticated: true,
		Name:          claims.Name,
		Email:         claims.Email,
		Operator:      claims.IsOperator(),
	})
}

// GetChannelStatus godoc
// @ID          getChannelStatus
// @Summary     Support channel availability
// @Tags        Widget
// @Produce     json
// @Success     200  {object}  handlers.ChannelStatusResponse
// @Router      /channel/status [get]
func (h *Handlers) GetChannelStatus(c *gin.Context) {
	ok(c, http.StatusOK, ChannelStatusResponse{Status: h.support.ChannelStatus()})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     Poll a conversation
// @Description Returns the conversation's messages created strictly after `after`,
// @Description oldest first. Without `after` the whole conversation is returned.
// @Description An unknown conversation yields an empty list.
// @Tags        Widget
// @Produce     json
// @Param       id     path   string  true   "Conversation ID"  example(conv_01J9ZK3X4YV7T8W2Q5R6S0N1M2)
// @Param       after  query  string  false  "RFC 3339 timestamp or unix milliseconds"
// @Success     200  {object}  handlers.MessagesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	after, err := utils.ParseTimeParam(c.Query("after"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "after must be an RFC 3339 timestamp")
		return
	}

	items, err := h.support.ListMessages(c.Request.Context(), c.Param("id"), after)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	ok(c, http.StatusOK, MessagesResponse{Messages: items})
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a customer message
// @Description Stores a customer message. Supports idempotent retries via the
// @Description Idempotency-Key header (same key in the same conversation → same message).
// @Tags        Widget
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Temporary message id"  example(tmp_01J9ZK3X4YV7T8W2Q5R6S0N1M2)
// @Param       id               path    string  true   "Conversation ID"
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
// @Success     201  {object}  handlers.MessageResponse  "Stored"
// @Success     200  {object}  handlers.MessageResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse    "Restricted"
// @Failure     409  {object}  handlers.ErrorResponse    "Conversation closed"
// @Failure     429  {object}  handlers.ErrorResponse    "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse    "Internal error"
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}

	in := services.CustomerMessage{
		ConversationID: c.Param("id"),
		Body:           sanitizeBody(req.Body),
		SenderName:     req.SenderName,
		CustomerEmail:  req.CustomerEmail,
	}
	if key, found := middleware.GetIdempotencyKey(c); found {
		in.IdempotencyKey = key
	}
	// A signed-in customer's token outranks whatever the client claims.
	if claims, found := middleware.ClaimsFrom(c); found && !claims.IsOperator() {
		if claims.Name != "" {
			in.SenderName = claims.Name
		}
		if claims.Email != "" {
			in.CustomerEmail = claims.Email
		}
	}

	m, replayed, err := h.support.PostCustomerMessage(c.Request.Context(), in)
	if err != nil {
		failService(c, err, ErrCodeSendFailed)
		return
	}
	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		ok(c, http.StatusOK, MessageResponse{Message: m})
		return
	}
	ok(c, http.StatusCreated, MessageResponse{Message: m})
}

// GetRestriction godoc
// @ID          getRestriction
// @Summary     Check whether a conversation is restricted
// @Tags        Widget
// @Produce     json
// @Param       id  path  string  true  "Conversation ID"
// @Success     200  {object}  domain.RestrictionStatus
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{id}/restriction [get]
func (h *Handlers) GetRestriction(c *gin.Context) {
	st, err := h.support.CheckRestriction(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, st)
}
