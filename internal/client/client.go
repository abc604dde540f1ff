// Package client implements livechat.Backend over the support HTTP API
// served by cmd/supportd.
//
// Every call opens a client span and injects the W3C trace context into the
// outgoing headers, so widget activity and server work share one trace.
// Non-2xx answers are decoded into *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-livechat/internal/domain"
	"github.com/tbourn/go-livechat/internal/livechat"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerRequestID      = "X-Request-ID"

	userAgent = "go-livechat/1"

	// maxErrorBody caps how much of an error answer is read.
	maxErrorBody = 16 << 10
)

var _ livechat.Backend = (*Client)(nil)

// Client talks to the support API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New returns a Client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base url %q must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("client: base url %q has no host", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		tracer:  otel.Tracer("client/Backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

//
// Wire DTOs
//

type sendRequest struct {
	Body          string `json:"body"`
	SenderName    string `json:"sender_name,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

type messageResponse struct {
	Message *domain.Message `json:"message"`
}

type messagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

type channelStatusResponse struct {
	Status domain.ChannelStatus `json:"status"`
}

//
// livechat.Backend
//

// ResolveCustomer asks the API who the bearer token belongs to. Without a
// token the answer is an anonymous lookup.
func (c *Client) ResolveCustomer(ctx context.Context) (domain.CustomerLookup, error) {
	var out domain.CustomerLookup
	err := c.do(ctx, "ResolveCustomer", http.MethodGet, "/customer/me", nil, nil, &out)
	return out, err
}

// ChannelStatus reads the global availability of support.
func (c *Client) ChannelStatus(ctx context.Context) (domain.ChannelStatus, error) {
	var out channelStatusResponse
	if err := c.do(ctx, "ChannelStatus", http.MethodGet, "/channel/status", nil, nil, &out); err != nil {
		return "", err
	}
	if !out.Status.Valid() {
		return "", fmt.Errorf("client: unknown channel status %q", out.Status)
	}
	return out.Status, nil
}

// FetchMessages polls for messages created strictly after the given instant.
func (c *Client) FetchMessages(ctx context.Context, conversationID string, after time.Time) ([]domain.Message, error) {
	path := conversationPath(conversationID, "messages")
	if !after.IsZero() {
		path += "?" + url.Values{"after": {after.UTC().Format(time.RFC3339Nano)}}.Encode()
	}

	var out messagesResponse
	if err := c.do(ctx, "FetchMessages", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage posts a customer message. The idempotency key makes a retry
// return the message stored by the first attempt.
func (c *Client) SendMessage(ctx context.Context, msg domain.OutgoingMessage) (domain.Message, error) {
	var hdr http.Header
	if msg.IdempotencyKey != "" {
		hdr = http.Header{headerIdempotencyKey: {msg.IdempotencyKey}}
	}
	body := sendRequest{Body: msg.Body, SenderName: msg.SenderName, CustomerEmail: msg.CustomerEmail}

	var out messageResponse
	if err := c.do(ctx, "SendMessage", http.MethodPost, conversationPath(msg.ConversationID, "messages"), hdr, body, &out); err != nil {
		return domain.Message{}, err
	}
	if out.Message == nil {
		return domain.Message{}, errors.New("client: send answer has no message")
	}
	return *out.Message, nil
}

// CheckRestriction reports whether an operator suspended the conversation.
func (c *Client) CheckRestriction(ctx context.Context, conversationID string) (domain.RestrictionStatus, error) {
	var out domain.RestrictionStatus
	err := c.do(ctx, "CheckRestriction", http.MethodGet, conversationPath(conversationID, "restriction"), nil, nil, &out)
	return out, err
}

//
// Transport
//

// do performs one JSON round trip. in is encoded as the request body when
// non-nil; a 2xx answer is decoded into out.
func (c *Client) do(ctx context.Context, op, method, path string, hdr http.Header, in, out any) error {
	ctx, span := c.tracer.Start(ctx, "Backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, span, method, path, hdr, in, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, span trace.Span, method, path string, hdr http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// conversationPath escapes the id so it always stays one path segment.
func conversationPath(conversationID, leaf string) string {
	return "/conversations/" + url.PathEscape(conversationID) + "/" + leaf
}
