package browsecatalog

import (
	"admissions-gateway/internal/common/erp"
)

// Event formats.
const (
	FormatOnSite = "physique"
	FormatOnline = "visio"
)

// Event is an ERP meeting shaped for the browsing UI.
type Event struct {
	ID                    erp.ID                     `json:"id"`
	Title                 string                     `json:"title"`
	Date                  string                     `json:"date"`
	Time                  string                     `json:"time"`
	Format                string                     `json:"format"`
	Description           string                     `json:"description"`
	Location              string                     `json:"location"`
	MaxPerson             erp.Int                    `json:"maxPerson"`
	Participants          erp.Int                    `json:"participants"`
	ParentID              erp.ID                     `json:"parentId"`
	RecurrenceEnabled     bool                       `json:"recurrenceEnabled"`
	Periodicity           string                     `json:"periodicity,omitempty"`
	RecurrenceLabel       *string                    `json:"recurrenceLabel"`
	Formations            []erp.EventFormation       `json:"formations"`
	TrainingOrganizations []erp.TrainingOrganization `json:"trainingOrganizations"`
}

// IsParent reports an event that is not an occurrence of another one.
func (e *Event) IsParent() bool {
	return e.ParentID.IsZero()
}

type Formation struct {
	ID     erp.ID  `json:"id"`
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Status erp.Int `json:"status"`
	Active bool    `json:"active"`
}

// EventFilter narrows GET /events.
type EventFilter struct {
	ParentsOnly bool
	Month       string // YYYY-MM
}

type EventsResponse struct {
	Count  int     `json:"count"`
	Events []Event `json:"events"`
}

type OccurrencesResponse struct {
	Count       int     `json:"count"`
	Occurrences []Event `json:"occurrences"`
}

type FormationsResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Count   int         `json:"count"`
	Data    []Formation `json:"data"`
}
