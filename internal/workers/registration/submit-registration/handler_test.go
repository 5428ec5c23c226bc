package submitregistration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSnapshot struct {
	catalog *erp.Catalog
}

func (s staticSnapshot) Cached(context.Context) *erp.Catalog { return s.catalog }

// ==========================
// Handler Creation Tests
// ==========================

func TestNewHandler(t *testing.T) {
	f := newFakeERP(t)
	svc := newTestService(t, f.client(), nil)

	_, err := NewHandler(HandlerOptions{Service: svc})
	assert.NoError(t, err)

	_, err = NewHandler(HandlerOptions{})
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.MaxPayloadBytes = 0
	_, err = NewHandler(HandlerOptions{Service: svc, Config: bad})
	assert.Error(t, err)
}

func newTestHandler(t *testing.T, f *fakeERP, snapshot SnapshotSource) *Handler {
	h, err := NewHandler(HandlerOptions{
		Config:  testConfig(),
		Service: newTestService(t, f.client(), nil),
		Catalog: snapshot,
	})
	require.NoError(t, err)
	return h
}

func post(t *testing.T, h http.Handler, payload interface{}) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body)))
	return rec
}

// ==========================
// Responses
// ==========================

func TestHandler_Success(t *testing.T) {
	f := newFakeERP(t).on("/registrations", erpReply{Status: http.StatusCreated, Body: `{"id":"reg-1"}`})
	rec := post(t, newTestHandler(t, f, nil), validPayload())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Inscription réussie","data":{"id":"reg-1"}}`, rec.Body.String())
}

func TestHandler_TwoStepSuccess(t *testing.T) {
	f := newFakeERP(t).
		on("/candidates", erpReply{Status: http.StatusConflict, Body: `{"data":{"id":42}}`}).
		on("/candidate-meetings", erpReply{Status: http.StatusCreated, Body: `{"data":{"present":true}}`})
	rec := post(t, newTestHandler(t, f, nil), twoStepPayload())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Inscription réussie","data":{"candidate":{"id":42},"binding":{"data":{"present":true}}}}`, rec.Body.String())
}

func TestHandler_PartialSuccessIs207(t *testing.T) {
	f := newFakeERP(t).
		on("/candidates", erpReply{Status: http.StatusOK, Body: `{"data":{"id":42}}`}).
		on("/candidate-meetings", erpReply{Status: http.StatusInternalServerError})
	rec := post(t, newTestHandler(t, f, nil), twoStepPayload())

	assert.Equal(t, http.StatusMultiStatus, rec.Code)

	var body PartialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, PartialWarning, body.Warning)
	assert.JSONEq(t, `{"id":42}`, string(body.Data.Candidate))
	require.NotNil(t, body.Data.BindingError)
	assert.Equal(t, 500, *body.Data.BindingError.StatusCode)
}

func TestHandler_ValidationError(t *testing.T) {
	f := newFakeERP(t)
	payload := validPayload()
	payload["email"] = "jeanne@"

	rec := post(t, newTestHandler(t, f, nil), payload)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"INVALID_FIELD","message":"Email invalide","details":"Veuillez fournir une adresse email valide","field":"email"}`, rec.Body.String())
	assert.Empty(t, f.calls)
}

func TestHandler_MissingData(t *testing.T) {
	f := newFakeERP(t)
	payload := validPayload()
	delete(payload, "city")

	rec := post(t, newTestHandler(t, f, nil), payload)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"MISSING_DATA"`)
	assert.Contains(t, rec.Body.String(), `"message":"Tous les champs sont obligatoires"`)
}

func TestHandler_UpstreamFailureStatus(t *testing.T) {
	tests := []struct {
		name   string
		reply  erpReply
		status int
	}{
		{"propagates upstream status", erpReply{Status: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"missing id is 500", erpReply{Status: http.StatusCreated, Body: `{"data":{}}`}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeERP(t).on("/candidates", tt.reply)
			rec := post(t, newTestHandler(t, f, nil), twoStepPayload())

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"stage":"candidate"`)
			assert.Empty(t, f.callsTo("/candidate-meetings"))
		})
	}
}

func TestHandler_TransportFailureIs502(t *testing.T) {
	f := newFakeERP(t)
	cfg := f.erpConfig()
	cfg.RegistrationURL = "http://127.0.0.1:1/registrations"

	h, err := NewHandler(HandlerOptions{Config: testConfig(), Service: newTestService(t, erp.NewClient(cfg), nil)})
	require.NoError(t, err)

	rec := post(t, h, validPayload())
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "127.0.0.1")
}

func TestHandler_MissingAPIKey(t *testing.T) {
	f := newFakeERP(t)
	cfg := f.erpConfig()
	cfg.APIKey = ""

	h, err := NewHandler(HandlerOptions{Config: testConfig(), Service: newTestService(t, erp.NewClient(cfg), nil)})
	require.NoError(t, err)

	rec := post(t, h, map[string]interface{}{"email": "bad"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPSTREAM_CONFIG_MISSING")
	assert.NotContains(t, rec.Body.String(), "erp-secret")
}

// ==========================
// Payload guards
// ==========================

func TestHandler_OversizedByContentLength(t *testing.T) {
	f := newFakeERP(t)
	h := newTestHandler(t, f, nil)
	rejected := metrics.RegistrationsTotal.WithLabelValues("http", "unknown", string(OutcomeRejected))
	before := testutil.ToFloat64(rejected)

	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{}`))
	req.ContentLength = 60 * 1024
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
	assert.Empty(t, f.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(rejected))
}

func TestHandler_OversizedBody(t *testing.T) {
	f := newFakeERP(t)
	h := newTestHandler(t, f, nil)

	payload := validPayload()
	payload["origin"] = strings.Repeat("x", 60*1024)
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, f.calls)
}

func TestHandler_MalformedBody(t *testing.T) {
	f := newFakeERP(t)
	h := newTestHandler(t, f, nil)

	for _, body := range []string{`{"firstName":`, `[1,2]`, `{"a":1} trailing`, `{"a":1}{"b":2}`} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "MALFORMED_PAYLOAD", body)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_DATA")
}

func TestHandler_UsesSnapshot(t *testing.T) {
	f := newFakeERP(t).
		on("/candidates", erpReply{Status: http.StatusOK, Body: `{"data":{"id":1}}`}).
		on("/candidate-meetings", erpReply{Status: http.StatusOK})

	snapshot := staticSnapshot{catalog: &erp.Catalog{Events: []erp.Event{{
		ID:                    erp.ID(`"occ-7"`),
		TrainingOrganizations: []erp.TrainingOrganization{{Code: "ORG-NANTES"}},
	}}}}

	rec := post(t, newTestHandler(t, f, snapshot), twoStepPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	calls := f.callsTo("/candidates")
	require.Len(t, calls, 1)
	assert.Equal(t, "ORG-NANTES", calls[0].Body["orga"])
}
