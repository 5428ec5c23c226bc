package browsecatalog

import (
	"net/http"
	"strconv"

	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/errors"
	commonhttp "admissions-gateway/internal/common/http"
	"admissions-gateway/internal/common/logger"

	"github.com/go-chi/chi/v5"
)

// Handler serves the read-only catalog routes.
type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Handler{service: service, logger: log}
}

// Routes mounts GET /events, /events/{id}/occurrences and /formations.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/events/{id}/occurrences", h.ListOccurrences)
	r.Get("/formations", h.ListFormations)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := EventFilter{
		ParentsOnly: flag(r, "parentsOnly"),
		Month:       r.URL.Query().Get("month"),
	}
	if filter.Month != "" && !ValidMonth(filter.Month) {
		commonhttp.WriteError(w, errors.NewInvalidFieldError("month", "Mois invalide", "Format attendu : AAAA-MM"))
		return
	}

	events, err := h.service.Events(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, EventsResponse{Count: len(events), Events: events})
}

func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	id, err := erp.NewID(chi.URLParam(r, "id"))
	if err != nil || id.IsZero() {
		commonhttp.WriteError(w, errors.NewNotFoundError("event", chi.URLParam(r, "id")))
		return
	}

	occurrences, err := h.service.Occurrences(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, OccurrencesResponse{Count: len(occurrences), Occurrences: occurrences})
}

func (h *Handler) ListFormations(w http.ResponseWriter, r *http.Request) {
	formations, err := h.service.Formations(r.Context(), flag(r, "active"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, FormationsResponse{Success: true, Count: len(formations), Data: formations})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.AsStandardError(err)
	if !errors.IsClientError(stdErr.Code) {
		logger.FromContext(r.Context(), h.logger).Error("Catalog request failed", map[string]interface{}{
			"path":  r.URL.Path,
			"code":  string(stdErr.Code),
			"error": stdErr.Error(),
		})
	}
	commonhttp.WriteError(w, stdErr)
}

func flag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
