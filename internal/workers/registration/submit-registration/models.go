package submitregistration

import (
	"encoding/json"
	"time"

	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/errors"
)

// Input is a registration that passed validation.
type Input struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	BirthDate        string
	Sex              string
	Address          string
	PostalCode       string
	City             string
	FormationCode    string
	OrganizationCode string
	Source           string
	Origin           string
	OccurrenceID     erp.ID
}

// Mode is decided by the presence of an occurrence id.
type Mode string

const (
	ModeSingleStep Mode = "single_step"
	ModeTwoStep    Mode = "two_step"
)

func ModeFor(in *Input) Mode {
	if in.OccurrenceID.IsZero() {
		return ModeSingleStep
	}
	return ModeTwoStep
}

// State is a step of a submission.
type State string

const (
	StateValidating        State = "validating"
	StateRegistering       State = "registering"
	StateCreatingCandidate State = "creating_candidate"
	StateBindingOccurrence State = "binding_occurrence"

	StateSucceeded State = "succeeded"
	StatePartial   State = "partial"
	StateRejected  State = "rejected"
	StateFailed    State = "failed"
)

func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StatePartial, StateRejected, StateFailed:
		return true
	}
	return false
}

type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomePartialSuccess  OutcomeKind = "partial_success"
	OutcomeRejected        OutcomeKind = "rejected"
	OutcomeUpstreamFailure OutcomeKind = "upstream_failure"
)

// BindingError describes a failed occurrence binding. StatusCode is nil for
// transport failures.
type BindingError struct {
	StatusCode *int   `json:"statusCode"`
	Message    string `json:"message"`
}

// Outcome is the single result of a submission.
//
//	success:          Candidate (two-step) or Registration (single-step), Binding
//	partial_success:  Candidate, BindingError
//	rejected:         Err (MISSING_DATA / INVALID_FIELD)
//	upstream_failure: Stage, StatusCode, Err
type Outcome struct {
	Kind  OutcomeKind
	Mode  Mode
	State State

	CandidateID  erp.ID
	Candidate    json.RawMessage
	Registration json.RawMessage
	Binding      json.RawMessage
	BindingError *BindingError

	Stage      erp.Operation
	StatusCode *int

	Err *errors.StandardError

	Duration time.Duration
}

// ==========================
// HTTP response bodies
// ==========================

const (
	SuccessMessage = "Inscription réussie"
	PartialWarning = "Votre candidature a bien été enregistrée, mais l'inscription à la session n'a pas pu être finalisée. Notre équipe vous recontactera."
)

type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type EnrollmentData struct {
	Candidate json.RawMessage `json:"candidate"`
	Binding   json.RawMessage `json:"binding"`
}

type PartialResponse struct {
	Success bool        `json:"success"`
	Warning string      `json:"warning"`
	Data    PartialData `json:"data"`
}

type PartialData struct {
	Candidate    json.RawMessage `json:"candidate"`
	BindingError *BindingError   `json:"bindingError"`
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// ResponseBody renders a success or partial outcome.
func (o *Outcome) ResponseBody() interface{} {
	switch o.Kind {
	case OutcomePartialSuccess:
		return PartialResponse{
			Success: true,
			Warning: PartialWarning,
			Data: PartialData{
				Candidate:    rawOrNull(o.Candidate),
				BindingError: o.BindingError,
			},
		}
	case OutcomeSuccess:
		var data interface{} = rawOrNull(o.Registration)
		if o.Mode == ModeTwoStep {
			data = EnrollmentData{
				Candidate: rawOrNull(o.Candidate),
				Binding:   rawOrNull(o.Binding),
			}
		}
		return SuccessResponse{Success: true, Message: SuccessMessage, Data: data}
	}
	return nil
}

// ==========================
// Job variables
// ==========================

// JobVariables are set on the process when a job completes.
type JobVariables struct {
	RegistrationOutcome string `json:"registrationOutcome"`
	CandidateID         string `json:"candidateId,omitempty"`
	BindingStatus       string `json:"bindingStatus"`
	RegistrationWarning string `json:"registrationWarning,omitempty"`
}

func (v JobVariables) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"registrationOutcome": v.RegistrationOutcome,
		"bindingStatus":       v.BindingStatus,
	}
	if v.CandidateID != "" {
		m["candidateId"] = v.CandidateID
	}
	if v.RegistrationWarning != "" {
		m["registrationWarning"] = v.RegistrationWarning
	}
	return m
}
