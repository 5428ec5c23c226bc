package submitregistration

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"admissions-gateway/internal/common/camunda"
	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/errors"
	"admissions-gateway/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "registration.submit"

// JobHandler runs registrations submitted by a process instance.
type JobHandler struct {
	config       *Config
	service      *Service
	catalog      SnapshotSource
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	worker       *camunda.CamundaWorker
}

type JobHandlerOptions struct {
	Config  *Config
	Service *Service
	Catalog SnapshotSource
	Logger  logger.Logger
}

func NewJobHandler(opts JobHandlerOptions) (*JobHandler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("registration service is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &JobHandler{
		config:       cfg,
		service:      opts.Service,
		catalog:      opts.Catalog,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *JobHandler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	log := h.logger.With(map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
		"requestId":          uuid.NewString(),
	})
	ctx = logger.WithContext(ctx, log)

	log.Info("Processing registration job", nil)

	payload, err := h.parseVariables(job)
	if err != nil {
		h.service.Observe(ctx, "zeebe", nil, time.Since(start))
		h.throw(ctx, client, job, err)
		return
	}

	out, err := h.service.Submit(ctx, payload, h.snapshot(ctx))
	h.service.Observe(ctx, "zeebe", out, time.Since(start))
	if err != nil {
		h.throw(ctx, client, job, err)
		return
	}

	vars, failure := JobResult(out)
	if failure != nil {
		h.throw(ctx, client, job, failure)
		return
	}
	h.complete(ctx, client, job, vars, log)
}

func (h *JobHandler) snapshot(ctx context.Context) *erp.Catalog {
	if h.catalog == nil {
		return nil
	}
	return h.catalog.Cached(ctx)
}

// parseVariables applies the payload size guard to the serialized variables.
func (h *JobHandler) parseVariables(job entities.Job) (map[string]interface{}, error) {
	if size := int64(len(job.GetVariables())); size > h.config.MaxPayloadBytes {
		return nil, errors.NewPayloadTooLargeError(size, h.config.MaxPayloadBytes)
	}
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewMalformedPayloadError(err)
	}
	return variables, nil
}

// JobResult maps an outcome to completion variables, or to the error to throw.
func JobResult(out *Outcome) (JobVariables, *errors.StandardError) {
	switch out.Kind {
	case OutcomeSuccess:
		return JobVariables{
			RegistrationOutcome: string(OutcomeSuccess),
			CandidateID:         out.CandidateID.String(),
			BindingStatus:       bindingStatus(out),
		}, nil
	case OutcomePartialSuccess:
		return JobVariables{
			RegistrationOutcome: string(OutcomePartialSuccess),
			CandidateID:         out.CandidateID.String(),
			BindingStatus:       bindingStatus(out),
			RegistrationWarning: PartialWarning,
		}, nil
	}
	if out.Err != nil {
		return JobVariables{}, out.Err
	}
	return JobVariables{}, errors.NewInternalError(fmt.Errorf("outcome %q without error", out.Kind))
}

func bindingStatus(out *Outcome) string {
	switch {
	case out.Mode == ModeSingleStep:
		return "not_applicable"
	case out.BindingError == nil:
		return "bound"
	case out.BindingError.StatusCode == nil:
		return "failed"
	default:
		return strconv.Itoa(*out.BindingError.StatusCode)
	}
}

func (h *JobHandler) complete(ctx context.Context, client worker.JobClient, job entities.Job, vars JobVariables, log logger.Logger) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(vars.ToMap())
	if err != nil {
		log.Error("Failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		log.Error("Failed to complete job", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	log.Info("Registration job completed", map[string]interface{}{
		"outcome":       vars.RegistrationOutcome,
		"bindingStatus": vars.BindingStatus,
	})
}

func (h *JobHandler) throw(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	if sendErr := h.errorHandler.HandleJobError(ctx, client, job, err); sendErr != nil {
		logger.FromContext(ctx, h.logger).Error("Failed to send BPMN error to Camunda", map[string]interface{}{
			"error": sendErr.Error(),
		})
	}
}

// Register opens the job worker. A disabled worker is skipped.
func (h *JobHandler) Register(client *camunda.Client) error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", map[string]interface{}{
			"worker": TaskType,
		})
		return nil
	}
	if client == nil {
		return fmt.Errorf("camunda client is required for %s", TaskType)
	}

	h.worker = camunda.OpenWorker(client.GetClient(), camunda.WorkerOptions{
		TaskType:      TaskType,
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
		Handler:       h.Handle,
	}, h.logger)
	return nil
}

func (h *JobHandler) Close() {
	if h.worker != nil {
		h.worker.Stop()
		h.worker = nil
	}
}
