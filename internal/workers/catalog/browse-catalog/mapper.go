package browsecatalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"admissions-gateway/internal/common/erp"
)

const (
	unknownLocation = "Non spécifié"
	onlineLocation  = "En ligne"
	recurringLabel  = "Récurrent"
)

var weekdayNames = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}

// ConvertDate turns DD/MM/YYYY into YYYY-MM-DD. Anything else is returned trimmed.
func ConvertDate(raw string) string {
	cleaned := strings.TrimSpace(raw)
	parts := strings.Split(cleaned, "/")
	if len(parts) != 3 {
		return cleaned
	}
	day := pad2(strings.TrimSpace(parts[0]))
	month := pad2(strings.TrimSpace(parts[1]))
	year := strings.TrimSpace(parts[2])
	return year + "-" + month + "-" + day
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ConvertTime keeps HH:MM.
func ConvertTime(raw string) string {
	t := strings.TrimSpace(raw)
	if len(t) > 5 {
		return t[:5]
	}
	return t
}

// RecurrenceLabel describes how often a recurring event repeats, or nil
// when the event does not repeat.
func RecurrenceLabel(enabled bool, periodicity, date string) *string {
	if !enabled || periodicity == "" {
		return nil
	}

	label := recurringLabel
	switch periodicity {
	case "by_week":
		if d, err := time.Parse("2006-01-02", date); err == nil {
			label = fmt.Sprintf("Tous les %ss", weekdayNames[d.Weekday()])
		}
	case "by_day":
		label = "Tous les jours"
	case "by_month":
		label = "Tous les mois"
	}
	return &label
}

// MapEvent normalizes one ERP meeting.
func MapEvent(src erp.Event) Event {
	format := FormatOnline
	if string(src.Format) == "face_to_face" {
		format = FormatOnSite
	}

	location := eventLocation(src, format)

	names := make([]string, 0, len(src.Formations))
	for _, f := range src.Formations {
		if f.Name != "" {
			names = append(names, string(f.Name))
		}
	}

	date := ConvertDate(string(src.DateStart))
	formations := src.Formations
	if formations == nil {
		formations = []erp.EventFormation{}
	}
	organizations := src.TrainingOrganizations
	if organizations == nil {
		organizations = []erp.TrainingOrganization{}
	}

	return Event{
		ID:                    src.ID,
		Title:                 string(src.Title),
		Date:                  date,
		Time:                  ConvertTime(string(src.TimeStart)),
		Format:                format,
		Description:           strings.Join(names, ", "),
		Location:              location,
		MaxPerson:             src.MaxPerson,
		Participants:          src.NumberParticipants,
		ParentID:              src.ParentID,
		RecurrenceEnabled:     src.RecurrenceEnabled,
		Periodicity:           string(src.Periodicity),
		RecurrenceLabel:       RecurrenceLabel(src.RecurrenceEnabled, string(src.Periodicity), date),
		Formations:            formations,
		TrainingOrganizations: organizations,
	}
}

// eventLocation is the venue for on-site events and the meeting link for
// online ones, with fallbacks when the ERP left them blank.
func eventLocation(src erp.Event, format string) string {
	if format == FormatOnline {
		if link := strings.TrimSpace(string(src.MeetingLink)); link != "" {
			return link
		}
		return onlineLocation
	}

	if location := strings.TrimSpace(string(src.Location)); location != "" {
		return location
	}
	if len(src.TrainingOrganizations) > 0 {
		org := src.TrainingOrganizations[0]
		if venue := strings.TrimSpace(string(org.City) + " " + string(org.CP)); venue != "" {
			return venue
		}
	}
	return unknownLocation
}

func MapEvents(src []erp.Event) []Event {
	events := make([]Event, 0, len(src))
	for _, e := range src {
		events = append(events, MapEvent(e))
	}
	return events
}

// MapFormation normalizes one ERP formation. Status 1 is active.
func MapFormation(src erp.Formation) Formation {
	return Formation{
		ID:     src.ID,
		Code:   string(src.Code),
		Name:   string(src.Name),
		Status: src.Status,
		Active: src.Status.Valid && src.Status.Value == 1,
	}
}

// FilterEvents applies f, keeping the ERP order.
func FilterEvents(events []Event, f EventFilter) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if f.ParentsOnly && !e.IsParent() {
			continue
		}
		if f.Month != "" && !strings.HasPrefix(e.Date, f.Month+"-") {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Occurrences returns the dated sessions of parent. A non-recurring event
// is its own single occurrence; a recurring one yields itself plus every
// event pointing at it, ordered by date then time.
func Occurrences(events []Event, parent Event) []Event {
	if !parent.RecurrenceEnabled {
		return []Event{parent}
	}

	out := []Event{parent}
	for _, e := range events {
		if !e.IsParent() && e.ParentID.Equal(parent.ID) && !e.ID.Equal(parent.ID) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// ValidMonth reports a YYYY-MM month filter.
func ValidMonth(month string) bool {
	_, err := time.Parse("2006-01", month)
	return err == nil && len(month) == 7
}
