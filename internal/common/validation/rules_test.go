package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2026, time.October, 14, 10, 30, 0, 0, time.UTC)

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"jean.dupont@example.fr", true},
		{"j+events@sub.example.co", true},
		{"a@b", true},
		{"no-at.example.fr", false},
		{"jean@-example.fr", false},
		{"jean@example..fr", false},
		{"jean@exa mple.fr", false},
		{"", false},
		{strings.Repeat("a", 250) + "@b.fr", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidEmail(tt.email))
		})
	}
}

func TestValidFrenchPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"0612345678", true},
		{"06 12 34 56 78", true},
		{"06-12-34-56-78", true},
		{"06.12.34.56.78", true},
		{"0512345678", true},
		{"01 23 45 67 89", true},
		{"00123456789", false},
		{"0012345678", false},
		{"061234567", false},
		{"06123456789", false},
		{"06123456a8", false},
		{"+33612345678", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidFrenchPhone(tt.phone))
		})
	}
}

func TestValidFrenchPostalCode(t *testing.T) {
	assert.True(t, ValidFrenchPostalCode("75001"))
	assert.True(t, ValidFrenchPostalCode("01000"))
	assert.False(t, ValidFrenchPostalCode("7500"))
	assert.False(t, ValidFrenchPostalCode("75001 "))
	assert.False(t, ValidFrenchPostalCode("750011"))
	assert.False(t, ValidFrenchPostalCode("ABCDE"))
	assert.False(t, ValidFrenchPostalCode("75 001"))
}

func TestValidLength(t *testing.T) {
	assert.False(t, ValidLength("", 100))
	assert.True(t, ValidLength("a", 1))
	assert.True(t, ValidLength(strings.Repeat("é", 100), 100))
	assert.False(t, ValidLength(strings.Repeat("é", 101), 100))
}

func TestValidSex(t *testing.T) {
	assert.True(t, ValidSex("male"))
	assert.True(t, ValidSex("female"))
	assert.False(t, ValidSex("Male"))
	assert.False(t, ValidSex("other"))
	assert.False(t, ValidSex(""))
}

func TestValidBirthDate(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"exactly 16 years", "2010-10-14", true},
		{"one day short of 16", "2010-10-15", false},
		{"exactly 100 years", "1926-10-14", true},
		{"one day past 100", "1926-10-13", false},
		{"adult", "1990-05-17", true},
		{"rfc3339", "1990-05-17T00:00:00Z", true},
		{"16th birthday late in a western offset", "2010-10-14T23:30:00-02:00", true},
		{"today", "2026-10-14", false},
		{"future", "2027-01-01", false},
		{"unparsable", "17/05/1990", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidBirthDate(tt.value, fixedNow))
		})
	}
}

func TestParseBirthDate_TruncatesToDay(t *testing.T) {
	got, ok := ParseBirthDate("1990-05-17T23:59:00+02:00")
	assert.True(t, ok)
	assert.Equal(t, time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC), got)

	got, ok = ParseBirthDate("2010-10-14T23:30:00-02:00")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2010, time.October, 14, 0, 0, 0, 0, time.UTC), got)
}

// ==========================
// FieldValidator
// ==========================

func TestFieldValidator_Tags(t *testing.T) {
	fv := NewFieldValidator(func() time.Time { return fixedNow })

	assert.True(t, fv.Check("jean@example.fr", TagEmail))
	assert.False(t, fv.Check("jean@", TagEmail))
	assert.True(t, fv.Check("06 12 34 56 78", TagPhone))
	assert.False(t, fv.Check("00 12 34 56 78", TagPhone))
	assert.True(t, fv.Check("75001", TagPostalCode))
	assert.False(t, fv.Check("ABCDE", TagPostalCode))
	assert.True(t, fv.Check("female", TagSex))
	assert.False(t, fv.Check("F", TagSex))
	assert.True(t, fv.Check("2010-10-14", TagBirthDate))
	assert.False(t, fv.Check("2010-10-15", TagBirthDate))
}

func TestFieldValidator_BuiltinLength(t *testing.T) {
	fv := NewFieldValidator(nil)

	assert.True(t, fv.Check("Jean", "min=1,max=100"))
	assert.False(t, fv.Check("", "min=1,max=100"))
	assert.False(t, fv.Check(strings.Repeat("a", 201), "min=1,max=200"))
	assert.True(t, fv.Check(strings.Repeat("ç", 200), "min=1,max=200"))
}
