package httpapi

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-livechat/internal/auth"
	"github.com/tbourn/go-livechat/internal/config"
	"github.com/tbourn/go-livechat/internal/domain"
	"github.com/tbourn/go-livechat/internal/http/middleware"
	"github.com/tbourn/go-livechat/internal/repo"
	"github.com/tbourn/go-livechat/internal/search"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        100,
		RateBurst:      10,
		ChannelStatus:  domain.ChannelOnline,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, NewSupportService(newTestDB(t), nil, cfg), cfg)
	return r
}

func serve(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(t, baseConfig())

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	if w = serve(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w = serve(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}}
	r := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "https://shop.example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "https://evil.example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must not be echoed, got %q", got)
	}
}

func TestRegisterRoutes_WidgetFlow_ReplayBypassesRateLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 2
	r := newRouter(t, cfg)

	send := func(key string) *httptest.ResponseRecorder {
		return serve(r, http.MethodPost, "/api/v1/conversations/conv_1/messages", `{"body":"hello"}`,
			map[string]string{middleware.HeaderIdempotencyKey: key})
	}

	if w := send("tmp_1"); w.Code != http.StatusCreated {
		t.Fatalf("first send = %d %s", w.Code, w.Body.String())
	}
	// Replays are answered from the stored send and do not spend tokens.
	for i := 0; i < 3; i++ {
		w := send("tmp_1")
		if w.Code != http.StatusOK || w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
			t.Fatalf("replay %d = %d", i, w.Code)
		}
	}
	if w := send("tmp_2"); w.Code != http.StatusCreated {
		t.Fatalf("second send = %d", w.Code)
	}
	w := send("tmp_3")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", w.Code)
	}

	// Another conversation from the same IP has its own budget.
	w = serve(r, http.MethodGet, "/api/v1/conversations/conv_2/messages", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("other conversation poll = %d", w.Code)
	}
}

func TestRegisterRoutes_OperatorRoutesNeedOperatorToken(t *testing.T) {
	cfg := baseConfig()
	cfg.JWTSecret = "router-secret"
	r := newRouter(t, cfg)
	jwtSvc := auth.NewJWTService(cfg.JWTSecret)

	body := `{"status":"away"}`
	if w := serve(r, http.MethodPut, "/api/v1/operator/channel/status", body, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous operator call = %d", w.Code)
	}

	customer, err := jwtSvc.Sign("c1", "Ada", "ada@example.com", auth.RoleCustomer, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	w := serve(r, http.MethodPut, "/api/v1/operator/channel/status", body, map[string]string{"Authorization": "Bearer " + customer})
	if w.Code != http.StatusForbidden {
		t.Fatalf("customer operator call = %d", w.Code)
	}

	op, err := jwtSvc.Sign("o1", "Grace", "", auth.RoleOperator, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	w = serve(r, http.MethodPut, "/api/v1/operator/channel/status", body, map[string]string{"Authorization": "Bearer " + op})
	if w.Code != http.StatusOK {
		t.Fatalf("operator call = %d %s", w.Code, w.Body.String())
	}
	w = serve(r, http.MethodGet, "/api/v1/channel/status", "", nil)
	if !strings.Contains(w.Body.String(), `"away"`) {
		t.Fatalf("status not changed: %s", w.Body.String())
	}

	w = serve(r, http.MethodGet, "/api/v1/customer/me", "", map[string]string{"Authorization": "Bearer " + customer})
	if !strings.Contains(w.Body.String(), `"authenticated":true`) {
		t.Fatalf("customer lookup: %s", w.Body.String())
	}
}

func TestRegisterRoutes_WithoutSecretTokensAreIgnored(t *testing.T) {
	r := newRouter(t, baseConfig())

	tok, err := auth.NewJWTService("some-other-secret").Sign("c1", "Ada", "", auth.RoleOperator, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	w := serve(r, http.MethodGet, "/api/v1/customer/me", "", map[string]string{"Authorization": "Bearer " + tok})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"authenticated":false`) {
		t.Fatalf("expected anonymous lookup, got %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_GzipAndNoStore(t *testing.T) {
	r := newRouter(t, baseConfig())

	w := serve(r, http.MethodGet, "/api/v1/conversations/conv_1/messages", "", map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK {
		t.Fatalf("poll = %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, headers=%v", w.Header())
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	raw, _ := io.ReadAll(zr)
	if !strings.Contains(string(raw), `"messages":[]`) {
		t.Fatalf("unexpected body: %s", raw)
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "no-store") {
		t.Fatalf("poll answers must not be cached: %q", w.Header().Get("Cache-Control"))
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	if w := serve(newRouter(t, baseConfig()), http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}

	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	if w := serve(newRouter(t, cfg), http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/index.html = %d", w.Code)
	}
}

type fakeIndex struct{}

func (fakeIndex) TopK(string, int) []search.Result { return nil }
func (fakeIndex) Len() int                         { return 0 }

func TestNewSupportService_FromConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.ChannelStatus = domain.ChannelAway
	cfg.MaxBodyRunes = 300
	cfg.IdempotencyTTL = 2 * time.Hour

	svc := NewSupportService(newTestDB(t), fakeIndex{}, cfg)
	if svc.ChannelStatus() != domain.ChannelAway || svc.MaxBodyRunes != 300 || svc.IdempotencyTTL != 2*time.Hour {
		t.Fatalf("unexpected service: %+v", svc)
	}
	if svc.AutoReply != nil {
		t.Fatalf("auto-reply must be off unless enabled")
	}

	cfg.AutoReply = config.AutoReplyConfig{Enabled: true, Threshold: 0.4, Sender: "Helper"}
	svc = NewSupportService(newTestDB(t), fakeIndex{}, cfg)
	if svc.AutoReply == nil || svc.AutoReply.Threshold != 0.4 || svc.AutoReply.SenderName != "Helper" || svc.AutoReply.MaxReplyRunes != 300 {
		t.Fatalf("unexpected auto-responder: %+v", svc.AutoReply)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}
