package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-livechat/internal/auth"
	"github.com/tbourn/go-livechat/internal/config"
	"github.com/tbourn/go-livechat/internal/domain"
	httpapi "github.com/tbourn/go-livechat/internal/http"
	"github.com/tbourn/go-livechat/internal/livechat"
	"github.com/tbourn/go-livechat/internal/repo"
	"github.com/tbourn/go-livechat/internal/services"
)

// recorded is one request seen by the fake server.
type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// fakeAPI answers every request with status and body and records it.
type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	body     string
	header   http.Header
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   string(b),
	})
	status, body, hdr := f.status, f.body, f.header
	f.mu.Unlock()

	for k, vs := range hdr {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeAPI) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests, "no request recorded")
	return f.requests[len(f.requests)-1]
}

func newFake(t *testing.T, status int, body string, opts ...Option) (*Client, *fakeAPI) {
	t.Helper()
	f := &fakeAPI{status: status, body: body}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api/v1/", opts...)
	require.NoError(t, err)
	return c, f
}

func TestNew_ValidatesBaseURL(t *testing.T) {
	for _, bad := range []string{"", "localhost:8080", "ftp://example.com", "http://", "://nope"} {
		_, err := New(bad)
		assert.Error(t, err, "base url %q", bad)
	}

	c, err := New(" https://support.example.com/api/v1/ ", WithTimeout(3*time.Second), WithHTTPClient(nil))
	require.NoError(t, err)
	assert.Equal(t, "https://support.example.com/api/v1", c.baseURL)
	assert.Equal(t, 3*time.Second, c.http.Timeout)
}

func TestResolveCustomer_SendsBearerAndDecodes(t *testing.T) {
	c, f := newFake(t, http.StatusOK, `{"authenticated":true,"name":"Ada","email":"ada@example.com"}`, WithToken(" tok "))

	got, err := c.ResolveCustomer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerLookup{Authenticated: true, Name: "Ada", Email: "ada@example.com"}, got)

	req := f.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/v1/customer/me", req.Path)
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, userAgent, req.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get("Content-Type"))
}

func TestResolveCustomer_NoTokenNoAuthorization(t *testing.T) {
	c, f := newFake(t, http.StatusOK, `{"authenticated":false}`)

	got, err := c.ResolveCustomer(context.Background())
	require.NoError(t, err)
	assert.False(t, got.Authenticated)
	assert.Empty(t, f.last(t).Header.Get("Authorization"))
}

func TestChannelStatus(t *testing.T) {
	c, _ := newFake(t, http.StatusOK, `{"status":"away"}`)
	st, err := c.ChannelStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelAway, st)

	c, _ = newFake(t, http.StatusOK, `{"status":"busy"}`)
	_, err = c.ChannelStatus(context.Background())
	assert.ErrorContains(t, err, "unknown channel status")
}

func TestFetchMessages_AfterAndEscaping(t *testing.T) {
	c, f := newFake(t, http.StatusOK, `{"messages":[{"id":"m1","conversation_id":"conv/1","body":"hi","sender_type":"admin","created_at":"2030-01-01T10:00:00Z"}]}`)

	after := time.Date(2030, 1, 1, 9, 59, 59, 123456789, time.FixedZone("X", 3600))
	msgs, err := c.FetchMessages(context.Background(), "conv/1", after)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.SenderAdmin, msgs[0].SenderType)

	req := f.last(t)
	assert.Equal(t, "/api/v1/conversations/conv%2F1/messages", req.Path)
	assert.Equal(t, "after=2030-01-01T08%3A59%3A59.123456789Z", req.Query)

	_, err = c.FetchMessages(context.Background(), "conv_1", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, f.last(t).Query, "zero after fetches everything")
}

func TestSendMessage_PayloadAndIdempotencyKey(t *testing.T) {
	c, f := newFake(t, http.StatusCreated, `{"message":{"id":"srv_1","conversation_id":"conv_1","body":"hello","sender_type":"customer","sender_name":"Ada"}}`)

	got, err := c.SendMessage(context.Background(), domain.OutgoingMessage{
		ConversationID: "conv_1",
		Body:           "hello",
		SenderName:     "Ada",
		CustomerEmail:  "ada@example.com",
		IdempotencyKey: "tmp_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "srv_1", got.ID)

	req := f.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/conversations/conv_1/messages", req.Path)
	assert.Equal(t, "tmp_1", req.Header.Get(headerIdempotencyKey))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"body":"hello","sender_name":"Ada","customer_email":"ada@example.com"}`, req.Body)
}

func TestSendMessage_MissingMessage(t *testing.T) {
	c, _ := newFake(t, http.StatusOK, `{}`)
	_, err := c.SendMessage(context.Background(), domain.OutgoingMessage{ConversationID: "conv_1", Body: "x"})
	assert.ErrorContains(t, err, "no message")
}

func TestCheckRestriction(t *testing.T) {
	c, f := newFake(t, http.StatusOK, `{"restricted":true,"until":"2030-01-01T10:15:00Z","reason":"spam"}`)

	st, err := c.CheckRestriction(context.Background(), "conv_1")
	require.NoError(t, err)
	require.NotNil(t, st.Until)
	assert.True(t, st.Restricted)
	assert.Equal(t, "spam", st.Reason)
	assert.True(t, st.Until.Equal(time.Date(2030, 1, 1, 10, 15, 0, 0, time.UTC)))
	assert.Equal(t, "/api/v1/conversations/conv_1/restriction", f.last(t).Path)
}

func TestAPIError_DecodesEnvelope(t *testing.T) {
	c, _ := newFake(t, http.StatusForbidden, `{"request_id":"req-1","code":"restricted","message":"conversation is restricted"}`)

	_, err := c.SendMessage(context.Background(), domain.OutgoingMessage{ConversationID: "conv_1", Body: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.True(t, IsRestricted(err))
	assert.False(t, IsClosed(err))
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, "support api: 403 restricted: conversation is restricted", err.Error())
}

func TestAPIError_NonJSONBody(t *testing.T) {
	f := &fakeAPI{
		status: http.StatusBadGateway,
		body:   "upstream unavailable\n<html>…</html>",
		header: http.Header{headerRequestID: {"req-gw"}},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.ChannelStatus(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Empty(t, apiErr.Code)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
	assert.Equal(t, "req-gw", apiErr.RequestID)
	assert.True(t, apiErr.Temporary())
	assert.Equal(t, "support api: 502 upstream unavailable", apiErr.Error())
}

func TestTransportErrorIsWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.ChannelStatus(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "GET /channel/status")
}

func TestTraceContextIsInjected(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	// The tracer is resolved at construction.
	c, f := newFake(t, http.StatusOK, `{"status":"online"}`)
	_, err := c.ChannelStatus(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`, f.last(t).Header.Get("traceparent"))
}

//
// Against the real router
//

func newSupportServer(t *testing.T) (*httptest.Server, *services.SupportService, config.Config) {
	t.Helper()
	dsn := fmt.Sprintf("file:client_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))

	cfg := config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        1000,
		RateBurst:      1000,
		ChannelStatus:  domain.ChannelOnline,
		IdempotencyTTL: time.Hour,
		MaxBodyRunes:   4000,
		JWTSecret:      "client-test-secret",
		OTEL:           config.OTELConfig{ServiceName: "client-test"},
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := httpapi.NewSupportService(db, nil, cfg)
	httpapi.RegisterRoutes(r, svc, cfg)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc, cfg
}

func TestClient_AgainstSupportAPI(t *testing.T) {
	srv, svc, cfg := newSupportServer(t)
	ctx := context.Background()

	tok, err := auth.NewJWTService(cfg.JWTSecret).Sign("cust-1", "Ada", "ada@example.com", auth.RoleCustomer, time.Hour)
	require.NoError(t, err)
	c, err := New(srv.URL+cfg.APIBasePath, WithToken(tok))
	require.NoError(t, err)

	who, err := c.ResolveCustomer(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerLookup{Authenticated: true, Name: "Ada", Email: "ada@example.com"}, who)

	st, err := c.ChannelStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ChannelOnline, st)

	out := domain.OutgoingMessage{ConversationID: "conv_e2e", Body: "where is my parcel?", IdempotencyKey: "tmp_e2e_1"}
	first, err := c.SendMessage(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, "Ada", first.SenderName)

	// A retried send returns the stored message.
	again, err := c.SendMessage(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	reply, err := svc.PostOperatorReply(ctx, "conv_e2e", "Grace", "it ships today")
	require.NoError(t, err)

	msgs, err := c.FetchMessages(ctx, "conv_e2e", first.CreatedAt)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, reply.ID, msgs[0].ID)

	msgs, err = c.FetchMessages(ctx, "conv_e2e", time.Time{})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = svc.Restrict(ctx, "conv_e2e", nil, "spam")
	require.NoError(t, err)
	rs, err := c.CheckRestriction(ctx, "conv_e2e")
	require.NoError(t, err)
	assert.Equal(t, domain.RestrictionStatus{Restricted: true, Reason: "spam"}, rs)

	_, err = c.SendMessage(ctx, domain.OutgoingMessage{ConversationID: "conv_e2e", Body: "hello?"})
	assert.True(t, IsRestricted(err), "got %v", err)

	require.NoError(t, svc.Lift(ctx, "conv_e2e"))
	_, err = svc.CloseConversation(ctx, "conv_e2e", "")
	require.NoError(t, err)
	_, err = c.SendMessage(ctx, domain.OutgoingMessage{ConversationID: "conv_e2e", Body: "hello?"})
	assert.True(t, IsClosed(err), "got %v", err)
}

func TestClient_InvalidTokenResolvesAnonymous(t *testing.T) {
	srv, _, cfg := newSupportServer(t)
	c, err := New(srv.URL+cfg.APIBasePath, WithToken("not-a-jwt"))
	require.NoError(t, err)

	who, err := c.ResolveCustomer(context.Background())
	require.NoError(t, err)
	assert.False(t, who.Authenticated)
}

func TestSession_OverHTTP(t *testing.T) {
	srv, svc, cfg := newSupportServer(t)
	c, err := New(srv.URL + cfg.APIBasePath)
	require.NoError(t, err)

	s, err := livechat.NewSession(c, livechat.NewMemoryStore(), livechat.Options{
		PollInterval:        20 * time.Millisecond,
		RestrictionInterval: 20 * time.Millisecond,
		CountdownInterval:   20 * time.Millisecond,
		Cooldown:            time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ctx := context.Background()
	require.NoError(t, s.Mount(ctx))
	s.Open()

	sent, err := s.Send(ctx, "  hi there  ")
	require.NoError(t, err)
	assert.False(t, livechat.IsTempID(sent.ID))
	conv := s.Snapshot().ConversationID

	_, err = svc.PostOperatorReply(ctx, conv, "Grace", "hello from support")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		for _, m := range s.Snapshot().Transcript {
			if m.SenderType == domain.SenderAdmin && m.Body == "hello from support" {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	_, err = svc.Restrict(ctx, conv, nil, "cool it")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, restricted := s.Snapshot().Phase.(livechat.PhaseRestricted)
		return restricted
	}, 3*time.Second, 10*time.Millisecond)
	_, err = s.Send(ctx, "let me talk")
	assert.ErrorIs(t, err, livechat.ErrSendBlocked)

	require.NoError(t, svc.Lift(ctx, conv))
	require.Eventually(t, func() bool {
		_, restricted := s.Snapshot().Phase.(livechat.PhaseRestricted)
		return !restricted
	}, 3*time.Second, 10*time.Millisecond)

	_, err = svc.CloseConversation(ctx, conv, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, cooling := s.Snapshot().Phase.(livechat.PhaseCooldown)
		return cooling
	}, 3*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, s.Snapshot().Countdown)
}

// Keep the envelope decoding aligned with the server's JSON field names.
func TestAPIError_FieldNames(t *testing.T) {
	raw, err := json.Marshal(&APIError{Status: 400, Code: "bad_request", Message: "m", RequestID: "r"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"request_id":"r"`))
	assert.NotContains(t, string(raw), "400")
}
