package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "realty_leads_backend/internal/http"
	"realty_leads_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type httpCfg struct {
	origins []string
}

func (c httpCfg) GetHTTPAddr() string         { return ":0" }
func (c httpCfg) GetCORSAllowAll() bool       { return false }
func (c httpCfg) GetCORSOrigins() []string    { return c.origins }
func (c httpCfg) GetCORSAllowCreds() bool     { return true }
func (c httpCfg) GetSubmitRatePerMinute() int { return 1 }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/ping", ctx.SubmitLimiter.RateLimit(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

func newApp(health apphttp.HealthChecker) *apphttp.App {
	gin.SetMode(gin.TestMode)
	return &apphttp.App{
		Config:  httpCfg{origins: []string{"https://homes.example.com"}},
		Logger:  logger.Discard(),
		Health:  health,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		Modules: []apphttp.Module{pingModule{}},
	}
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(New(newApp(pinger{})), http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}

	rec = serve(New(newApp(pinger{err: errors.New("db down")})), http.MethodGet, "/api/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsAndModules(t *testing.T) {
	engine := New(newApp(nil))

	if rec := serve(engine, http.MethodGet, "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	if rec := serve(engine, http.MethodPost, "/api/v1/ping"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := serve(engine, http.MethodPost, "/api/v1/ping"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the limit is spent, got %d", rec.Code)
	}
}
