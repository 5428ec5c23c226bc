// Package errors provides the error taxonomy shared by the HTTP and workflow transports.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Client-fixable errors
const (
	ErrCodeMissingData      ErrorCode = "MISSING_DATA"
	ErrCodeInvalidField     ErrorCode = "INVALID_FIELD"
	ErrCodeMalformedPayload ErrorCode = "MALFORMED_PAYLOAD"
	ErrCodePayloadTooLarge  ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

// Deployment and upstream errors
const (
	ErrCodeUpstreamConfigMissing ErrorCode = "UPSTREAM_CONFIG_MISSING"
	ErrCodeUpstreamFailure       ErrorCode = "UPSTREAM_FAILURE"
	ErrCodePartialEnrollment     ErrorCode = "PARTIAL_ENROLLMENT"
	ErrCodeCatalogUnavailable    ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// Metadata keys
const (
	MetaField      = "field"
	MetaStage      = "stage"
	MetaStatusCode = "statusCode"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Field returns the offending field for validation errors.
func (e *StandardError) Field() string {
	if f, ok := e.Metadata[MetaField].(string); ok {
		return f
	}
	return ""
}

// Stage returns the upstream stage of an upstream error.
func (e *StandardError) Stage() string {
	if s, ok := e.Metadata[MetaStage].(string); ok {
		return s
	}
	return ""
}

// UpstreamStatus returns the upstream HTTP status carried by the error, or 0.
func (e *StandardError) UpstreamStatus() int {
	if s, ok := e.Metadata[MetaStatusCode].(int); ok {
		return s
	}
	return 0
}

// HTTPStatus returns the status the error is reported with.
// Upstream and catalog failures propagate the upstream status when one was received.
func (e *StandardError) HTTPStatus() int {
	if e.Code == ErrCodeUpstreamFailure || e.Code == ErrCodeCatalogUnavailable {
		if status := e.UpstreamStatus(); status >= 400 && status <= 599 {
			return status
		}
	}
	return HTTPStatus(e.Code)
}

func (e *StandardError) with(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the variables attached to a thrown BPMN error.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// BPMNErrorMapping maps internal codes to the error codes caught by boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeMissingData:           "REGISTRATION_REJECTED",
	ErrCodeInvalidField:          "REGISTRATION_REJECTED",
	ErrCodeMalformedPayload:      "REGISTRATION_REJECTED",
	ErrCodePayloadTooLarge:       "REGISTRATION_REJECTED",
	ErrCodeUpstreamConfigMissing: "REGISTRATION_MISCONFIGURED",
	ErrCodeUpstreamFailure:       "REGISTRATION_UPSTREAM_FAILED",
	ErrCodeInternal:              "REGISTRATION_INTERNAL_ERROR",
}

// ConvertToBPMNError converts a StandardError to a BPMNError.
// Registrations are attempted once, so retries are always zero.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for _, key := range []string{MetaField, MetaStage, MetaStatusCode} {
		if v, ok := stdErr.Metadata[key]; ok {
			vars[key] = v
		}
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      false,
		Retries:        0,
		ErrorVariables: vars,
	}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewMissingDataError reports absent required fields.
func NewMissingDataError(fields []string) *StandardError {
	e := &StandardError{
		Code:      ErrCodeMissingData,
		Message:   "Tous les champs sont obligatoires",
		Details:   "missing: " + strings.Join(fields, ", "),
		Timestamp: time.Now().UTC(),
	}
	if len(fields) > 0 {
		e.with(MetaField, fields[0])
		e.with("fields", fields)
	}
	return e
}

// NewInvalidFieldError reports a malformed field value.
func NewInvalidFieldError(field, message, details string) *StandardError {
	return (&StandardError{
		Code:      ErrCodeInvalidField,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}).with(MetaField, field)
}

// NewMalformedPayloadError reports a body that is not a JSON object.
func NewMalformedPayloadError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedPayload,
		Message:   "Requête invalide",
		Details:   err.Error(),
		Timestamp: time.Now().UTC(),
	}
}

// NewPayloadTooLargeError reports a payload above the accepted size.
func NewPayloadTooLargeError(size, limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadTooLarge,
		Message:   "La taille de la requête dépasse la limite autorisée",
		Details:   fmt.Sprintf("size %d exceeds limit %d", size, limit),
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamConfigMissingError reports a missing ERP setting.
func NewUpstreamConfigMissingError(setting string) *StandardError {
	return (&StandardError{
		Code:      ErrCodeUpstreamConfigMissing,
		Message:   "Configuration serveur incorrecte",
		Details:   setting + " is not configured",
		Timestamp: time.Now().UTC(),
	}).with("setting", setting)
}

// NewUpstreamFailureError reports a failed upstream stage. statusCode is nil
// for transport-level failures.
func NewUpstreamFailureError(stage string, statusCode *int, err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeUpstreamFailure,
		Message:   "Une erreur est survenue lors de l'enregistrement de votre inscription",
		Retryable: statusCode == nil,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		e.Details = err.Error()
	}
	e.with(MetaStage, stage)
	if statusCode != nil {
		e.with(MetaStatusCode, *statusCode)
	}
	return e
}

// NewCatalogUnavailableError reports a catalog that could not be loaded.
func NewCatalogUnavailableError(resource string, statusCode int, err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeCatalogUnavailable,
		Message:   "Erreur lors de la récupération des " + resource,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		e.Details = err.Error()
	}
	if statusCode > 0 {
		e.with(MetaStatusCode, statusCode)
	}
	return e
}

// NewNotFoundError reports an unknown resource.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Ressource introuvable",
		Details:   fmt.Sprintf("%s %q not found", resource, id),
		Timestamp: time.Now().UTC(),
	}
}

// NewMethodNotAllowedError reports a wrong HTTP method.
func NewMethodNotAllowedError(method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMethodNotAllowed,
		Message:   "Méthode non autorisée",
		Details:   method,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	e := &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Erreur interne du serveur",
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// ==========================
// 4. Utility Functions
// ==========================

// HTTPStatus returns the HTTP status for an error code.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeMissingData, ErrCodeInvalidField, ErrCodeMalformedPayload:
		return http.StatusBadRequest
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodePartialEnrollment:
		return http.StatusMultiStatus
	case ErrCodeUpstreamFailure, ErrCodeCatalogUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AsStandardError unwraps err into a StandardError, wrapping unknown errors as internal.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsClientError reports whether the code denotes a client-fixable problem.
func IsClientError(code ErrorCode) bool {
	return HTTPStatus(code) >= 400 && HTTPStatus(code) < 500
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "UPSTREAM") || code == ErrCodePartialEnrollment:
		return "UPSTREAM"
	case code == ErrCodeCatalogUnavailable:
		return "CATALOG"
	case IsClientError(code):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
