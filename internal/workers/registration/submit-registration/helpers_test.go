package submitregistration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"admissions-gateway/internal/common/aws"
	"admissions-gateway/internal/common/config"
	"admissions-gateway/internal/common/erp"

	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2026, time.October, 14, 10, 30, 0, 0, time.UTC)

func nowFunc() time.Time { return fixedNow }

// ==========================
// Fake ERP
// ==========================

type recordedCall struct {
	Path string
	Auth string
	Body map[string]interface{}
}

type erpReply struct {
	Status int
	Body   string
	Delay  time.Duration
}

type fakeERP struct {
	t       *testing.T
	server  *httptest.Server
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string][]erpReply
}

func newFakeERP(t *testing.T) *fakeERP {
	f := &fakeERP{t: t, replies: make(map[string][]erpReply)}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeERP) on(path string, replies ...erpReply) *fakeERP {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = append(f.replies[path], replies...)
	return f
}

func (f *fakeERP) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]interface{}
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
	var reply erpReply
	if queue := f.replies[r.URL.Path]; len(queue) > 0 {
		reply = queue[0]
		if len(queue) > 1 {
			f.replies[r.URL.Path] = queue[1:]
		}
	} else {
		reply = erpReply{Status: http.StatusNotFound}
	}
	f.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	_, _ = w.Write([]byte(reply.Body))
}

func (f *fakeERP) callsTo(path string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeERP) erpConfig() config.ERPConfig {
	return config.ERPConfig{
		APIKey:               "erp-secret",
		EventsURL:            f.server.URL + "/meetings",
		FormationsURL:        f.server.URL + "/formations",
		RegistrationURL:      f.server.URL + "/registrations",
		CandidatesURL:        f.server.URL + "/candidates",
		CandidateMeetingsURL: f.server.URL + "/candidate-meetings",
		Timeout:              2000,
		DefaultSource:        "SiteInternet",
	}
}

func (f *fakeERP) client() *erp.Client {
	return erp.NewClient(f.erpConfig())
}

// ==========================
// Mock alerter
// ==========================

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) PublishPartialEnrollment(ctx context.Context, alert aws.PartialEnrollmentAlert) (string, error) {
	args := m.Called(ctx, alert)
	return args.String(0), args.Error(1)
}

// ==========================
// Fixtures
// ==========================

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"firstName":     "Jeanne",
		"lastName":      "Martin",
		"email":         "jeanne.martin@example.fr",
		"phone":         "06 12 34 56 78",
		"birthDate":     "2000-05-17",
		"sex":           "female",
		"address":       "12 rue de la Paix",
		"postalCode":    "75002",
		"city":          "Paris",
		"formationCode": "BTS-MCO",
	}
}

func twoStepPayload() map[string]interface{} {
	p := validPayload()
	p["occurrenceId"] = "occ-7"
	return p
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.CallTimeout = 2 * time.Second
	return cfg
}

func newTestService(t *testing.T, upstream Upstream, alerter Alerter) *Service {
	deps := ServiceDependencies{
		Upstream: upstream,
		Now:      nowFunc,
	}
	if alerter != nil {
		deps.Alerter = alerter
	}
	return NewService(deps, testConfig())
}
