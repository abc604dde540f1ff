// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts the handlers depend on, the shared
// DTOs and small request helpers. The API has two audiences:
//   - the storefront widget (customer lookup, channel status, message polling,
//     sends and restriction checks), callable anonymously
//   - operators (replies, closures, restrictions, channel status and
//     transcripts), guarded by an operator bearer token in the router
package handlers

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-livechat/internal/domain"
	"github.com/tbourn/go-livechat/internal/services"
	"github.com/tbourn/go-livechat/internal/utils"
)

//
// Service contracts
//

// SupportService is the widget-facing slice of services.SupportService.
type SupportService interface {
	ChannelStatus() domain.ChannelStatus
	ListMessages(ctx context.Context, conversationID string, after time.Time) ([]domain.Message, error)
	PostCustomerMessage(ctx context.Context, in services.CustomerMessage) (*domain.Message, bool, error)
	CheckRestriction(ctx context.Context, conversationID string) (domain.RestrictionStatus, error)
}

// OperatorService is the back-office slice of services.SupportService.
type OperatorService interface {
	SetChannelStatus(status domain.ChannelStatus) error
	PostOperatorReply(ctx context.Context, conversationID, operatorName, body string) (*domain.Message, error)
	CloseConversation(ctx context.Context, conversationID, note string) (*domain.Message, error)
	Restrict(ctx context.Context, conversationID string, until *time.Time, reason string) (*domain.Restriction, error)
	Lift(ctx context.Context, conversationID string) error
	Transcript(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
}

// Handlers groups the HTTP handlers and their service dependencies.
type Handlers struct {
	support  SupportService
	operator OperatorService
	now      func() time.Time
}

// New constructs a Handlers value. Both arguments are usually the same
// *services.SupportService.
func New(support SupportService, operator OperatorService) *Handlers {
	return &Handlers{support: support, operator: operator, now: time.Now}
}

//
// DTOs
//

// Pagination describes the page returned by list endpoints.
type Pagination struct {
	Page       int   `json:"page"        example:"1"`
	PageSize   int   `json:"page_size"   example:"20"`
	Total      int64 `json:"total"       example:"42"`
	TotalPages int   `json:"total_pages" example:"3"`
	HasNext    bool  `json:"has_next"    example:"true"`
}

// ChannelStatusResponse carries the support channel availability.
type ChannelStatusResponse struct {
	Status domain.ChannelStatus `json:"status" example:"online" enums:"online,away,offline"`
}

//
// Helpers
//

// clampPagination reads page/page_size from the query with defaults and caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.PageParams(c.Query("page"), c.Query("page_size"))
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeBody normalizes message text:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two,
//   - trims surrounding whitespace.
func sanitizeBody(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
