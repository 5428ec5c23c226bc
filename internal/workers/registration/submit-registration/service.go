package submitregistration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"admissions-gateway/internal/common/aws"
	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/errors"
	commonhttp "admissions-gateway/internal/common/http"
	"admissions-gateway/internal/common/logger"
	"admissions-gateway/internal/common/metrics"
	"admissions-gateway/internal/common/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Upstream is the part of the ERP client used by registrations.
type Upstream interface {
	Configured(ops ...erp.Operation) error
	CreateRegistration(ctx context.Context, payload *erp.CandidatePayload) (*commonhttp.Response, error)
	CreateCandidate(ctx context.Context, payload *erp.CandidatePayload) (*commonhttp.Response, error)
	BindCandidate(ctx context.Context, binding *erp.MeetingBinding) (*commonhttp.Response, error)
}

// Alerter is notified when a candidate was created but not enrolled.
type Alerter interface {
	PublishPartialEnrollment(ctx context.Context, alert aws.PartialEnrollmentAlert) (string, error)
}

type ServiceDependencies struct {
	Upstream      Upstream
	Alerter       Alerter
	Observability *observability.Observability
	Logger        logger.Logger
	Now           func() time.Time
}

// Service runs submissions. It holds no per-request state.
type Service struct {
	upstream  Upstream
	alerter   Alerter
	obs       *observability.Observability
	logger    logger.Logger
	validator *Validator
	config    *Config
}

func NewService(deps ServiceDependencies, cfg *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		upstream:  deps.Upstream,
		alerter:   deps.Alerter,
		obs:       deps.Observability,
		logger:    log,
		validator: NewValidator(deps.Now),
		config:    cfg,
	}
}

// Configured checks the service credential.
func (s *Service) Configured() error {
	return s.upstream.Configured()
}

// submission carries one request through the state machine.
type submission struct {
	state   State
	raw     map[string]interface{}
	input   *Input
	payload *erp.CandidatePayload
	outcome *Outcome
	log     logger.Logger
	cause   error
}

// Submit validates payload and forwards it to the ERP. catalog is an optional
// read-only snapshot used to fill in the organization code.
//
// A nil Outcome with an error means the deployment is misconfigured; no
// upstream call was made.
func (s *Service) Submit(ctx context.Context, payload map[string]interface{}, catalog *erp.Catalog) (*Outcome, error) {
	start := time.Now()
	metrics.RegistrationsInFlight.Inc()
	defer metrics.RegistrationsInFlight.Dec()

	if err := s.upstream.Configured(); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("admissions-gateway/registration").Start(ctx, "registration.submit")
	defer span.End()

	sub := &submission{
		state:   StateValidating,
		raw:     payload,
		outcome: &Outcome{},
		log:     logger.FromContext(ctx, s.logger),
	}

	for !sub.state.Terminal() {
		var err error
		switch sub.state {
		case StateValidating:
			err = s.validate(sub, catalog)
		case StateRegistering:
			s.register(ctx, sub)
		case StateCreatingCandidate:
			s.createCandidate(ctx, sub)
		case StateBindingOccurrence:
			s.bindOccurrence(ctx, sub)
		default:
			return nil, errors.NewInternalError(fmt.Errorf("unexpected state %q", sub.state))
		}
		if err != nil {
			span.SetStatus(codes.Error, "misconfigured")
			return nil, err
		}
	}

	out := sub.outcome
	out.State = sub.state
	out.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("registration.mode", string(out.Mode)),
		attribute.String("registration.outcome", string(out.Kind)),
	)
	if out.Kind == OutcomeUpstreamFailure {
		span.SetStatus(codes.Error, string(out.Stage))
	}

	if out.Kind == OutcomePartialSuccess {
		s.alertPartial(ctx, sub)
	}
	s.logOutcome(sub)
	return out, nil
}

func (s *Service) validate(sub *submission, catalog *erp.Catalog) error {
	input, rejection := s.validator.Validate(sub.raw)
	if rejection != nil {
		metrics.RegistrationRejections.WithLabelValues(string(rejection.Code), rejection.Field()).Inc()
		sub.outcome.Kind = OutcomeRejected
		sub.outcome.Err = rejection
		sub.state = StateRejected
		return nil
	}
	sub.input = input
	sub.outcome.Mode = ModeFor(input)

	if sub.outcome.Mode == ModeTwoStep {
		if err := s.upstream.Configured(erp.OpCreateCandidate, erp.OpBindCandidate); err != nil {
			return err
		}
		sub.state = StateCreatingCandidate
	} else {
		if err := s.upstream.Configured(erp.OpCreateRegistration); err != nil {
			return err
		}
		sub.state = StateRegistering
	}

	sub.payload = s.candidatePayload(input, catalog)
	sub.log = sub.log.With(map[string]interface{}{
		"mode":  string(sub.outcome.Mode),
		"email": logger.MaskEmail(input.Email),
	})
	return nil
}

func (s *Service) register(ctx context.Context, sub *submission) {
	resp, err := s.call(ctx, erp.OpCreateRegistration, func(ctx context.Context) (*commonhttp.Response, error) {
		return s.upstream.CreateRegistration(ctx, sub.payload)
	})
	if err != nil {
		sub.fail(erp.OpCreateRegistration, nil, err)
		return
	}
	if !resp.IsSuccess() {
		sub.fail(erp.OpCreateRegistration, &resp.StatusCode, fmt.Errorf("registration rejected by ERP"))
		return
	}

	body, err := jsonBody(resp)
	if err != nil {
		sub.fail(erp.OpCreateRegistration, nil, err)
		return
	}
	sub.outcome.Registration = body
	sub.succeed()
}

func (s *Service) createCandidate(ctx context.Context, sub *submission) {
	if err := ctx.Err(); err != nil {
		sub.fail(erp.OpCreateCandidate, nil, err)
		return
	}

	resp, err := s.call(ctx, erp.OpCreateCandidate, func(ctx context.Context) (*commonhttp.Response, error) {
		return s.upstream.CreateCandidate(ctx, sub.payload)
	})
	if err != nil {
		sub.fail(erp.OpCreateCandidate, nil, err)
		return
	}

	// 409: the candidate already exists and the body carries its id.
	if !resp.IsSuccess() && resp.StatusCode != 409 {
		sub.fail(erp.OpCreateCandidate, &resp.StatusCode, fmt.Errorf("candidate rejected by ERP"))
		return
	}

	var data json.RawMessage
	var id erp.ID
	if strings.TrimSpace(string(resp.Body)) != "" {
		if data, id, err = erp.ParseCandidate(resp.Body); err != nil {
			sub.fail(erp.OpCreateCandidate, nil, err)
			return
		}
	}
	if id.IsZero() {
		missing := 500
		sub.fail(erp.OpCreateCandidate, &missing, fmt.Errorf("candidate response has no id (status %d)", resp.StatusCode))
		return
	}

	sub.outcome.CandidateID = id
	sub.outcome.Candidate = data
	sub.log = sub.log.With(map[string]interface{}{
		"candidateId":     id.String(),
		"candidateStatus": resp.StatusCode,
	})
	sub.state = StateBindingOccurrence
}

func (s *Service) bindOccurrence(ctx context.Context, sub *submission) {
	binding := &erp.MeetingBinding{
		MeetingID:   sub.input.OccurrenceID,
		CandidateID: sub.outcome.CandidateID,
		Present:     true,
	}

	resp, err := s.call(ctx, erp.OpBindCandidate, func(ctx context.Context) (*commonhttp.Response, error) {
		return s.upstream.BindCandidate(ctx, binding)
	})
	if err != nil {
		sub.partial(nil, "binding request failed", err)
		return
	}
	if !resp.IsSuccess() {
		sub.partial(&resp.StatusCode, fmt.Sprintf("binding rejected by ERP (status %d)", resp.StatusCode), nil)
		return
	}

	body, err := jsonBody(resp)
	if err != nil {
		sub.partial(nil, "malformed binding response", err)
		return
	}
	sub.outcome.Binding = body
	sub.succeed()
}

// call bounds one upstream call by the configured timeout and records its latency.
func (s *Service) call(ctx context.Context, stage erp.Operation, fn func(context.Context) (*commonhttp.Response, error)) (*commonhttp.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	start := time.Now()
	resp, err := fn(callCtx)
	if s.obs != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		s.obs.RecordUpstreamDuration(ctx, string(stage), status, time.Since(start))
	}
	return resp, err
}

func (s *Service) candidatePayload(in *Input, catalog *erp.Catalog) *erp.CandidatePayload {
	p := &erp.CandidatePayload{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Birthday:  in.BirthDate,
		Email:     in.Email,
		Phone:     in.Phone,
		Sexe:      in.Sex,
		Address:   in.Address,
		CP:        in.PostalCode,
		City:      in.City,
		Orga:      in.OrganizationCode,
		Source:    in.Source,
		Origine:   in.Origin,
	}
	if in.FormationCode != "" {
		p.Formation = []string{in.FormationCode}
	}
	if p.Source == "" {
		p.Source = s.config.DefaultSource
	}
	if p.Orga == "" {
		if event, ok := catalog.FindEvent(in.OccurrenceID); ok {
			p.Orga = event.OrganizationCode()
		}
	}
	return p
}

func (s *Service) alertPartial(ctx context.Context, sub *submission) {
	if s.alerter == nil {
		return
	}

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.AlertTimeout)
	defer cancel()

	alert := aws.PartialEnrollmentAlert{
		CandidateID:   sub.outcome.CandidateID.String(),
		OccurrenceID:  sub.input.OccurrenceID.String(),
		BindingStatus: sub.outcome.BindingError.StatusCode,
		BindingError:  sub.outcome.BindingError.Message,
		Email:         logger.MaskEmail(sub.input.Email),
	}
	if _, err := s.alerter.PublishPartialEnrollment(alertCtx, alert); err != nil {
		sub.log.Warn("Partial enrollment alert not published", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Service) logOutcome(sub *submission) {
	out := sub.outcome
	fields := map[string]interface{}{
		"outcome":    string(out.Kind),
		"state":      string(out.State),
		"durationMs": out.Duration.Milliseconds(),
	}

	switch out.Kind {
	case OutcomeSuccess:
		sub.log.Info("Registration succeeded", fields)
	case OutcomePartialSuccess:
		fields["bindingStatus"] = statusField(out.BindingError.StatusCode)
		fields["bindingError"] = out.BindingError.Message
		if sub.cause != nil {
			fields["details"] = sub.cause.Error()
		}
		sub.log.Warn("Candidate created but not enrolled", fields)
	case OutcomeRejected:
		fields["errorCode"] = string(out.Err.Code)
		fields["field"] = out.Err.Field()
		sub.log.Info("Registration rejected", fields)
	case OutcomeUpstreamFailure:
		fields["stage"] = string(out.Stage)
		fields["statusCode"] = statusField(out.StatusCode)
		fields["details"] = out.Err.Details
		fields["timeout"] = sub.cause != nil && commonhttp.IsTimeout(sub.cause)
		sub.log.Error("Registration failed upstream", fields)
	}
}

// Observe records a finished submission for the given transport.
func (s *Service) Observe(ctx context.Context, transport string, out *Outcome, elapsed time.Duration) {
	outcome, mode := "misconfigured", "unknown"
	if out != nil {
		outcome = string(out.Kind)
		if out.Mode != "" {
			mode = string(out.Mode)
		}
	}
	metrics.RegistrationsTotal.WithLabelValues(transport, mode, outcome).Inc()
	metrics.RegistrationDuration.WithLabelValues(mode, outcome).Observe(elapsed.Seconds())
	if s.obs != nil {
		s.obs.RecordSubmission(ctx, transport, outcome, elapsed)
	}
}

func (sub *submission) succeed() {
	sub.outcome.Kind = OutcomeSuccess
	sub.state = StateSucceeded
}

func (sub *submission) fail(stage erp.Operation, status *int, cause error) {
	sub.outcome.Kind = OutcomeUpstreamFailure
	sub.outcome.Stage = stage
	sub.outcome.StatusCode = status
	sub.outcome.Err = errors.NewUpstreamFailureError(string(stage), status, cause)
	sub.cause = cause
	sub.state = StateFailed
}

func (sub *submission) partial(status *int, message string, cause error) {
	sub.cause = cause
	sub.outcome.Kind = OutcomePartialSuccess
	sub.outcome.BindingError = &BindingError{StatusCode: status, Message: message}
	sub.state = StatePartial
}

// jsonBody accepts an empty body or valid JSON.
func jsonBody(resp *commonhttp.Response) (json.RawMessage, error) {
	if strings.TrimSpace(string(resp.Body)) == "" {
		return nil, nil
	}
	var data json.RawMessage
	if err := resp.DecodeJSON(&data); err != nil {
		return nil, fmt.Errorf("malformed ERP response body (status %d): %w", resp.StatusCode, err)
	}
	return data, nil
}

func statusField(status *int) interface{} {
	if status == nil {
		return nil
	}
	return *status
}
