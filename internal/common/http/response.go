package http

import (
	"encoding/json"
	"net/http"

	"admissions-gateway/internal/common/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	Details        string `json:"details,omitempty"`
	Field          string `json:"field,omitempty"`
	Stage          string `json:"stage,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError writes err as an ErrorBody. Details are only exposed for
// client-fixable errors.
func WriteError(w http.ResponseWriter, err error) {
	stdErr := errors.AsStandardError(err)
	WriteJSON(w, stdErr.HTTPStatus(), NewErrorBody(stdErr))
}

func NewErrorBody(stdErr *errors.StandardError) ErrorBody {
	body := ErrorBody{
		Error:          string(stdErr.Code),
		Message:        stdErr.Message,
		Field:          stdErr.Field(),
		Stage:          stdErr.Stage(),
		UpstreamStatus: stdErr.UpstreamStatus(),
	}
	if errors.IsClientError(stdErr.Code) {
		body.Details = stdErr.Details
	}
	return body
}
