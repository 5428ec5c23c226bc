package validation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Field limits
const (
	MaxEmailLength   = 254
	MaxNameLength    = 100
	MaxAddressLength = 200
	MaxCityLength    = 100

	MinAge = 16
	MaxAge = 100
)

// Sex values accepted by the ERP.
const (
	SexMale   = "male"
	SexFemale = "female"
)

var (
	emailPattern       = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")
	phoneSeparators    = regexp.MustCompile(`[\s\x{00A0}\x{202F}.-]`)
	frenchPhonePattern = regexp.MustCompile(`^0[1-9][0-9]{8}$`)
	postalCodePattern  = regexp.MustCompile(`^[0-9]{5}$`)
)

var birthDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ValidEmail checks the simplified RFC 5322 shape and the 254 character limit.
func ValidEmail(s string) bool {
	return len(s) <= MaxEmailLength && emailPattern.MatchString(s)
}

// NormalizePhone strips spaces, dots and hyphens.
func NormalizePhone(s string) string {
	return phoneSeparators.ReplaceAllString(s, "")
}

// ValidFrenchPhone accepts 10 digits starting with 0 and a nonzero second digit,
// once separators are removed.
func ValidFrenchPhone(s string) bool {
	return frenchPhonePattern.MatchString(NormalizePhone(s))
}

func ValidFrenchPostalCode(s string) bool {
	return postalCodePattern.MatchString(s)
}

// ValidLength counts code points.
func ValidLength(s string, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= 1 && n <= max
}

func ValidSex(s string) bool {
	return s == SexMale || s == SexFemale
}

// ParseBirthDate parses a calendar date. A timestamp keeps the day of its
// own offset.
func ParseBirthDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range birthDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return calendarDay(t), true
		}
	}
	return time.Time{}, false
}

// ValidBirthDate requires a date no later than today and an age between 16
// and 100 inclusive, by calendar-year subtraction from today.
func ValidBirthDate(s string, now time.Time) bool {
	birth, ok := ParseBirthDate(s)
	if !ok {
		return false
	}

	today := truncateDay(now)
	if birth.After(today) {
		return false
	}

	youngest := today.AddDate(-MinAge, 0, 0)
	oldest := today.AddDate(-MaxAge, 0, 0)
	return !birth.After(youngest) && !birth.Before(oldest)
}

func truncateDay(t time.Time) time.Time {
	return calendarDay(t.UTC())
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ==========================
// Tag-based validator
// ==========================

// Tags registered on the FieldValidator.
const (
	TagEmail      = "registration_email"
	TagPhone      = "fr_phone"
	TagPostalCode = "fr_postal_code"
	TagBirthDate  = "birth_date"
	TagSex        = "sex"
)

// FieldValidator exposes the domain rules as validator tags so they compose
// with the built-in ones (min, max, required).
type FieldValidator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewFieldValidator builds a validator. now is consulted for every birth date
// check; nil means time.Now.
func NewFieldValidator(now func() time.Time) *FieldValidator {
	if now == nil {
		now = time.Now
	}
	fv := &FieldValidator{validate: validator.New(), now: now}

	rules := map[string]func(string) bool{
		TagEmail:      ValidEmail,
		TagPhone:      ValidFrenchPhone,
		TagPostalCode: ValidFrenchPostalCode,
		TagSex:        ValidSex,
		TagBirthDate: func(s string) bool {
			return ValidBirthDate(s, fv.now())
		},
	}
	for tag, rule := range rules {
		rule := rule
		// Registration only fails on an empty tag name.
		_ = fv.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return rule(fl.Field().String())
		})
	}
	return fv
}

// Check runs tag against value.
func (f *FieldValidator) Check(value string, tag string) bool {
	return f.validate.Var(value, tag) == nil
}
