package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"admissions-gateway/internal/common/errors"
	"admissions-gateway/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

// ==========================
// CORS
// ==========================

func TestCORS_Preflight(t *testing.T) {
	h := CORS([]string{"https://evenements.example.fr"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/register", nil)
	req.Header.Set("Origin", "https://evenements.example.fr")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://evenements.example.fr", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Empty(t, rec.Body.String())
}

func TestCORS_UnknownOrigin(t *testing.T) {
	h := CORS([]string{"https://evenements.example.fr"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	h := CORS([]string{"*"})(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// ==========================
// Request logging
// ==========================

func TestRequestLogger_ScopesLogger(t *testing.T) {
	base := logger.NewTestLogger(t)
	var scoped logger.Logger

	h := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = logger.FromContext(r.Context(), nil)
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NotNil(t, scoped)
	assert.NotSame(t, base, scoped)
}

// ==========================
// Responses
// ==========================

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.NewInvalidFieldError("postalCode", "Code postal invalide", "Veuillez fournir un code postal français valide (5 chiffres)"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"INVALID_FIELD","message":"Code postal invalide","details":"Veuillez fournir un code postal français valide (5 chiffres)","field":"postalCode"}`, rec.Body.String())
}

func TestWriteError_UpstreamStatus(t *testing.T) {
	status := 503
	rec := httptest.NewRecorder()
	WriteError(rec, errors.NewUpstreamFailureError("registration", &status, nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stage":"registration"`)
	assert.Contains(t, rec.Body.String(), `"upstreamStatus":503`)
	assert.NotContains(t, rec.Body.String(), "details")
}
