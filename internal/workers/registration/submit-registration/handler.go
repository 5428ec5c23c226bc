package submitregistration

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/errors"
	commonhttp "admissions-gateway/internal/common/http"
	"admissions-gateway/internal/common/logger"
)

// SnapshotSource hands out the current catalog snapshot without fetching it.
// A nil snapshot is fine.
type SnapshotSource interface {
	Cached(ctx context.Context) *erp.Catalog
}

// Handler serves POST /register.
type Handler struct {
	config  *Config
	service *Service
	catalog SnapshotSource
	logger  logger.Logger
}

type HandlerOptions struct {
	Config  *Config
	Service *Service
	Catalog SnapshotSource
	Logger  logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
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
	return &Handler{
		config:  cfg,
		service: opts.Service,
		catalog: opts.Catalog,
		logger:  log,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if r.ContentLength > h.config.MaxPayloadBytes {
		h.reject(w, r, start, errors.NewPayloadTooLargeError(r.ContentLength, h.config.MaxPayloadBytes))
		return
	}

	if err := h.service.Configured(); err != nil {
		h.service.Observe(ctx, "http", nil, time.Since(start))
		commonhttp.WriteError(w, err)
		return
	}

	payload, err := h.decode(w, r)
	if err != nil {
		h.reject(w, r, start, err)
		return
	}

	var snapshot *erp.Catalog
	if h.catalog != nil {
		snapshot = h.catalog.Cached(ctx)
	}

	out, err := h.service.Submit(ctx, payload, snapshot)
	h.service.Observe(ctx, "http", out, time.Since(start))
	if err != nil {
		logger.FromContext(ctx, h.logger).Error("Registration cannot be forwarded", map[string]interface{}{
			"error": err.Error(),
		})
		commonhttp.WriteError(w, err)
		return
	}

	switch out.Kind {
	case OutcomeSuccess:
		commonhttp.WriteJSON(w, http.StatusOK, out.ResponseBody())
	case OutcomePartialSuccess:
		commonhttp.WriteJSON(w, errors.HTTPStatus(errors.ErrCodePartialEnrollment), out.ResponseBody())
	default:
		commonhttp.WriteError(w, out.Err)
	}
}

// reject answers a request refused before it reaches the service.
func (h *Handler) reject(w http.ResponseWriter, r *http.Request, start time.Time, err error) {
	h.service.Observe(r.Context(), "http", &Outcome{Kind: OutcomeRejected, Err: errors.AsStandardError(err)}, time.Since(start))
	commonhttp.WriteError(w, err)
}

// decode reads at most MaxPayloadBytes and requires a JSON object.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (map[string]interface{}, error) {
	body := http.MaxBytesReader(w, r.Body, h.config.MaxPayloadBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.NewMissingDataError(RequiredFields)
		}
		return nil, h.decodeError(err)
	}
	if _, err := dec.Token(); !stderrors.Is(err, io.EOF) {
		if err == nil {
			err = fmt.Errorf("unexpected content after the JSON object")
		}
		return nil, h.decodeError(err)
	}
	if payload == nil {
		return nil, errors.NewMissingDataError(RequiredFields)
	}
	return payload, nil
}

func (h *Handler) decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.NewPayloadTooLargeError(tooLarge.Limit+1, h.config.MaxPayloadBytes)
	}
	return errors.NewMalformedPayloadError(err)
}
