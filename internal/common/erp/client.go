package erp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"admissions-gateway/internal/common/config"
	"admissions-gateway/internal/common/errors"
	commonhttp "admissions-gateway/internal/common/http"
	"admissions-gateway/internal/common/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation names one ERP endpoint. It doubles as the failure stage.
type Operation string

const (
	OpListEvents         Operation = "events"
	OpListFormations     Operation = "formations"
	OpCreateRegistration Operation = "registration"
	OpCreateCandidate    Operation = "candidate"
	OpBindCandidate      Operation = "binding"
)

const tracerName = "admissions-gateway/erp"

// Client talks to the ERP. The service credential is attached to every
// request from configuration; callers never see it.
type Client struct {
	cfg  config.ERPConfig
	http *commonhttp.Client
}

func NewClient(cfg config.ERPConfig, opts ...commonhttp.Option) *Client {
	authorization := cfg.APIKey
	if cfg.AuthScheme != "" && cfg.APIKey != "" {
		authorization = cfg.AuthScheme + " " + cfg.APIKey
	}

	allOpts := []commonhttp.Option{commonhttp.WithHeader("Authorization", authorization)}
	allOpts = append(allOpts, opts...)

	return &Client{
		cfg:  cfg,
		http: commonhttp.NewClient(config.GetDuration(cfg.Timeout), allOpts...),
	}
}

func (c *Client) endpoint(op Operation) (string, string) {
	switch op {
	case OpListEvents:
		return c.cfg.EventsURL, "erp.events_url"
	case OpListFormations:
		return c.cfg.FormationsURL, "erp.formations_url"
	case OpCreateRegistration:
		return c.cfg.RegistrationURL, "erp.registration_url"
	case OpCreateCandidate:
		return c.cfg.CandidatesURL, "erp.candidates_url"
	case OpBindCandidate:
		return c.cfg.CandidateMeetingsURL, "erp.candidate_meetings_url"
	}
	return "", "erp." + string(op)
}

// Configured returns an UPSTREAM_CONFIG_MISSING error when the API key or
// the endpoint of any listed operation is not set.
func (c *Client) Configured(ops ...Operation) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return errors.NewUpstreamConfigMissingError("erp.api_key")
	}
	for _, op := range ops {
		if url, setting := c.endpoint(op); strings.TrimSpace(url) == "" {
			return errors.NewUpstreamConfigMissingError(setting)
		}
	}
	return nil
}

func (c *Client) CreateRegistration(ctx context.Context, payload *CandidatePayload) (*commonhttp.Response, error) {
	return c.call(ctx, OpCreateRegistration, http.MethodPost, payload)
}

func (c *Client) CreateCandidate(ctx context.Context, payload *CandidatePayload) (*commonhttp.Response, error) {
	return c.call(ctx, OpCreateCandidate, http.MethodPost, payload)
}

func (c *Client) BindCandidate(ctx context.Context, binding *MeetingBinding) (*commonhttp.Response, error) {
	return c.call(ctx, OpBindCandidate, http.MethodPost, binding)
}

func (c *Client) ListEvents(ctx context.Context) (*commonhttp.Response, error) {
	return c.call(ctx, OpListEvents, http.MethodGet, nil)
}

func (c *Client) ListFormations(ctx context.Context) (*commonhttp.Response, error) {
	return c.call(ctx, OpListFormations, http.MethodGet, nil)
}

func (c *Client) call(ctx context.Context, op Operation, method string, payload interface{}) (*commonhttp.Response, error) {
	url, _ := c.endpoint(op)
	if err := c.Configured(op); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "erp."+string(op),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("erp.operation", string(op)),
			attribute.String("http.method", method),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.http.DoJSON(ctx, method, url, payload)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.UpstreamCallDuration.WithLabelValues(string(op), metrics.StatusClass(status)).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, fmt.Errorf("erp %s call failed: %w", op, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= 500 {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	return resp, nil
}
