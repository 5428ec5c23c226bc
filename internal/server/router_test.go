package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"admissions-gateway/internal/common/config"
	"admissions-gateway/internal/common/database"
	"admissions-gateway/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, checks ...ReadinessCheck) http.Handler {
	registration := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	return NewRouter(Dependencies{
		Logger:         logger.NewTestLogger(t),
		AllowedOrigins: []string{"https://evenements.example.fr"},
		Registration:   registration,
		Readiness:      checks,
	})
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// ==========================
// Routing
// ==========================

func TestRouter_Register(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, http.MethodPost, "/register")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = serve(h, http.MethodGet, "/register")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"error":"METHOD_NOT_ALLOWED","message":"Méthode non autorisée","details":"GET"}`, rec.Body.String())
}

func TestRouter_Preflight(t *testing.T) {
	h := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/register", nil)
	req.Header.Set("Origin", "https://evenements.example.fr")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://evenements.example.fr", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Body.String())
}

func TestRouter_NotFound(t *testing.T) {
	rec := serve(newTestRouter(t), http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"NOT_FOUND"`)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h := newTestRouter(t)

	rec := serve(h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ==========================
// Readiness
// ==========================

func TestRouter_Ready(t *testing.T) {
	mr := miniredis.RunT(t)
	redis, err := database.NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redis.Close() })

	h := newTestRouter(t, ReadinessCheck{Name: "redis", Check: redis.Ping})

	rec := serve(h, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"redis":"ok"}}`, rec.Body.String())
}

func TestRouter_NotReady(t *testing.T) {
	failing := ReadinessCheck{Name: "zeebe", Check: func(ctx context.Context) error {
		return fmt.Errorf("broker unreachable")
	}}

	rec := serve(newTestRouter(t, failing), http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"not_ready","checks":{"zeebe":"broker unreachable"}}`, rec.Body.String())
}
