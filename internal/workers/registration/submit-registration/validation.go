package submitregistration

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"admissions-gateway/internal/common/erp"
	"admissions-gateway/internal/common/errors"
	"admissions-gateway/internal/common/validation"
)

// RequiredFields must be present and truthy before any format rule runs.
var RequiredFields = []string{
	"firstName", "lastName", "email", "phone", "birthDate", "sex", "address", "postalCode", "city",
}

type fieldRule struct {
	Field   string
	Tag     string
	Label   string
	Details string
}

// fieldRules run in order; the first failure rejects the submission.
var fieldRules = []fieldRule{
	{Field: "firstName", Tag: lengthTag(validation.MaxNameLength), Label: "Prénom invalide"},
	{Field: "lastName", Tag: lengthTag(validation.MaxNameLength), Label: "Nom invalide"},
	{Field: "address", Tag: lengthTag(validation.MaxAddressLength), Label: "Adresse invalide"},
	{Field: "city", Tag: lengthTag(validation.MaxCityLength), Label: "Ville invalide"},
	{Field: "email", Tag: validation.TagEmail, Label: "Email invalide", Details: "Veuillez fournir une adresse email valide"},
	{Field: "phone", Tag: validation.TagPhone, Label: "Téléphone invalide", Details: "Veuillez fournir un numéro de téléphone français valide (10 chiffres)"},
	{Field: "birthDate", Tag: validation.TagBirthDate, Label: "Date de naissance invalide", Details: "Vous devez avoir entre 16 et 100 ans"},
	{Field: "postalCode", Tag: validation.TagPostalCode, Label: "Code postal invalide", Details: "Veuillez fournir un code postal français valide (5 chiffres)"},
	{Field: "sex", Tag: validation.TagSex, Label: "Sexe invalide", Details: `Le sexe doit être "male" ou "female"`},
}

func lengthTag(max int) string {
	return fmt.Sprintf("min=1,max=%d", max)
}

// payloadSchema checks value types only; presence and formats are handled by
// the ordered rules.
var payloadSchema = validation.MustCompileSchema(`{
	"type": "object",
	"properties": {
		"firstName":        {"type": "string"},
		"lastName":         {"type": "string"},
		"email":            {"type": "string"},
		"phone":            {"type": "string"},
		"birthDate":        {"type": "string"},
		"sex":              {"type": "string"},
		"address":          {"type": "string"},
		"postalCode":       {"type": "string"},
		"city":             {"type": "string"},
		"formationCode":    {"type": ["string", "number", "null"]},
		"organizationCode": {"type": ["string", "number", "null"]},
		"source":           {"type": ["string", "null"]},
		"origin":           {"type": ["string", "null"]},
		"occurrenceId":     {"type": ["string", "number", "null"]}
	}
}`)

// Validator turns an untrusted payload into an Input, or a rejection.
type Validator struct {
	fields *validation.FieldValidator
}

func NewValidator(now func() time.Time) *Validator {
	return &Validator{fields: validation.NewFieldValidator(now)}
}

// Validate runs the required-field precondition, the type check and then the
// field rules. The returned error is always a *errors.StandardError.
func (v *Validator) Validate(payload map[string]interface{}) (*Input, *errors.StandardError) {
	if missing := missingFields(payload); len(missing) > 0 {
		return nil, errors.NewMissingDataError(missing)
	}

	if result := payloadSchema.Validate(payload); !result.Valid {
		return nil, typeError(result)
	}

	for _, rule := range fieldRules {
		value, _ := payload[rule.Field].(string)
		if !v.fields.Check(value, rule.Tag) {
			return nil, errors.NewInvalidFieldError(rule.Field, rule.Label, rule.Details)
		}
	}

	return buildInput(payload)
}

func missingFields(payload map[string]interface{}) []string {
	var missing []string
	for _, field := range RequiredFields {
		if isFalsy(payload[field]) {
			missing = append(missing, field)
		}
	}
	return missing
}

// isFalsy treats absent, null, blank strings, false and zero as missing.
func isFalsy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	}
	return false
}

// typeError reports the type failure of the earliest field in rule order.
func typeError(result *validation.ValidationResult) *errors.StandardError {
	for _, rule := range fieldRules {
		if result.HasError(rule.Field) {
			return errors.NewInvalidFieldError(rule.Field, rule.Label, "type invalide")
		}
	}
	first := result.Errors[0]
	if first.Field == "(root)" {
		return errors.NewMalformedPayloadError(fmt.Errorf("%s", first.Message))
	}
	return errors.NewInvalidFieldError(first.Field, "Champ invalide", first.Message)
}

func buildInput(payload map[string]interface{}) (*Input, *errors.StandardError) {
	str := func(key string) string {
		s, _ := payload[key].(string)
		return s
	}

	in := &Input{
		FirstName:        str("firstName"),
		LastName:         str("lastName"),
		Email:            str("email"),
		Phone:            str("phone"),
		BirthDate:        str("birthDate"),
		Sex:              str("sex"),
		Address:          str("address"),
		PostalCode:       str("postalCode"),
		City:             str("city"),
		FormationCode:    scalarString(payload["formationCode"]),
		OrganizationCode: scalarString(payload["organizationCode"]),
		Source:           strings.TrimSpace(str("source")),
		Origin:           strings.TrimSpace(str("origin")),
	}

	if raw, ok := payload["occurrenceId"]; ok && !isFalsy(raw) {
		id, err := erp.NewID(raw)
		if err != nil {
			return nil, errors.NewInvalidFieldError("occurrenceId", "Session invalide", err.Error())
		}
		in.OccurrenceID = id
	}
	return in, nil
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}
