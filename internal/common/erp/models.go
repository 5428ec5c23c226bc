package erp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ID is an ERP identifier kept in its wire form. The ERP mixes numeric and
// string identifiers, and whatever it sent is echoed back unchanged.
type ID json.RawMessage

// NewID encodes v as an ID.
func NewID(v interface{}) (ID, error) {
	switch t := v.(type) {
	case ID:
		return t, nil
	case json.Number:
		return ID(t.String()), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("invalid identifier: %w", err)
	}
	return ID(b), nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if len(id) == 0 {
		return []byte("null"), nil
	}
	return []byte(id), nil
}

func (id *ID) UnmarshalJSON(b []byte) error {
	*id = append((*id)[0:0], bytes.TrimSpace(b)...)
	return nil
}

// String returns the identifier without JSON quoting.
func (id ID) String() string {
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return s
	}
	if id.IsZero() {
		return ""
	}
	return string(id)
}

// IsZero reports an absent or unusable identifier: missing, null, "", 0 or false.
func (id ID) IsZero() bool {
	switch strings.TrimSpace(string(id)) {
	case "", "null", `""`, "0", "false":
		return true
	}
	return false
}

// Equal compares identifiers by their unquoted value, so 12 and "12" match.
func (id ID) Equal(other ID) bool {
	return !id.IsZero() && id.String() == other.String()
}

// Text decodes a JSON string or number as text.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

// Int decodes a JSON number or numeric string.
type Int struct {
	Value int
	Valid bool
}

func (i *Int) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*i = Int{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*i = Int{}
		return nil
	}
	*i = Int{Value: int(f), Valid: true}
	return nil
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(i.Value)), nil
}

// ==========================
// Registration wire types
// ==========================

// CandidatePayload is the body of the registration and candidate calls.
// It never carries an occurrence identifier.
type CandidatePayload struct {
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Birthday  string   `json:"birthday"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Sexe      string   `json:"sexe"`
	Address   string   `json:"address"`
	CP        string   `json:"cp"`
	City      string   `json:"city"`
	Formation []string `json:"formation,omitempty"`
	Orga      string   `json:"orga"`
	Source    string   `json:"source"`
	Origine   string   `json:"origine"`
}

// MeetingBinding enrolls a candidate in an event occurrence.
type MeetingBinding struct {
	MeetingID   ID   `json:"meeting_id"`
	CandidateID ID   `json:"candidate_id"`
	Present     bool `json:"present"`
}

// ParseCandidate returns the data object of a candidate response and its id.
func ParseCandidate(body []byte) (json.RawMessage, ID, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to decode candidate response: %w", err)
	}

	var record struct {
		ID ID `json:"id"`
	}
	if len(env.Data) > 0 && env.Data[0] == '{' {
		if err := json.Unmarshal(env.Data, &record); err != nil {
			return nil, nil, fmt.Errorf("failed to decode candidate record: %w", err)
		}
	}
	return env.Data, record.ID, nil
}

// ==========================
// Catalog wire types
// ==========================

type Event struct {
	ID                    ID                     `json:"id"`
	Title                 Text                   `json:"title"`
	DateStart             Text                   `json:"date_start"`
	TimeStart             Text                   `json:"time_start"`
	Format                Text                   `json:"format"`
	Location              Text                   `json:"location"`
	MeetingLink           Text                   `json:"metting_link"`
	MaxPerson             Int                    `json:"max_person"`
	NumberParticipants    Int                    `json:"number_participants"`
	ParentID              ID                     `json:"parent_id"`
	RecurrenceEnabled     bool                   `json:"recurrence_enabled"`
	Periodicity           Text                   `json:"periodicite"`
	Formations            []EventFormation       `json:"formations"`
	TrainingOrganizations []TrainingOrganization `json:"training_organizations"`
}

type EventFormation struct {
	Name   Text `json:"name"`
	Code   Text `json:"code"`
	Status Int  `json:"status"`
}

type TrainingOrganization struct {
	Code Text `json:"code"`
	City Text `json:"city"`
	CP   Text `json:"cp"`
}

type Formation struct {
	ID     ID   `json:"id"`
	Code   Text `json:"code"`
	Name   Text `json:"name"`
	Status Int  `json:"status"`
}

// ParseEvents accepts either a bare array or {"events": [...]}.
func ParseEvents(body []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
		return events, nil
	}

	var wrapped struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return wrapped.Events, nil
}

// ParseFormations reads {success, message, count, data: [...]}.
func ParseFormations(body []byte) ([]Formation, error) {
	var wrapped struct {
		Data []Formation `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode formations: %w", err)
	}
	return wrapped.Data, nil
}

// ==========================
// Catalog snapshot
// ==========================

// Catalog is a point-in-time copy of the ERP events and formations.
// It is shared read-only between requests.
type Catalog struct {
	Events     []Event     `json:"events"`
	Formations []Formation `json:"formations"`
	LoadedAt   time.Time   `json:"loadedAt"`
}

// FindEvent returns the event with the given id.
func (c *Catalog) FindEvent(id ID) (*Event, bool) {
	if c == nil || id.IsZero() {
		return nil, false
	}
	for i := range c.Events {
		if c.Events[i].ID.Equal(id) {
			return &c.Events[i], true
		}
	}
	return nil, false
}

// OrganizationCode is the code of the first training organization of an event.
func (e *Event) OrganizationCode() string {
	if e == nil || len(e.TrainingOrganizations) == 0 {
		return ""
	}
	return string(e.TrainingOrganizations[0].Code)
}
