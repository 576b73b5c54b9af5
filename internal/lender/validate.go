package lender

// validate.go converts one raw CSV row into a lender candidate.
//
// Conversion happens in two stages:
//  1. Typed construction: numeric cells are parsed; a parse failure means no
//     candidate can be built at all.
//  2. Constraint validation: the built candidate is checked against the field
//     constraints (name length, code format, rate ranges) and every violation
//     is reported with a human-readable message.
//
// Both stages return errors as data; nothing here panics past the row boundary.

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Candidate is an unpersisted lender built from one CSV row or request body.
type Candidate struct {
	Name                  string  `json:"name" validate:"required,max=1024"`
	Code                  string  `json:"code" validate:"required,len=3,lender_code"`
	UpfrontCommissionRate float64 `json:"upfront_commission_rate" validate:"gte=0,lte=500"`
	TrialCommissionRate   float64 `json:"trial_commission_rate" validate:"gte=0,lte=500"`
	Active                bool    `json:"active"`
}

// CreateInput converts the candidate into store create parameters.
func (c *Candidate) CreateInput() CreateInput {
	return CreateInput{
		Name:                  c.Name,
		Code:                  c.Code,
		UpfrontCommissionRate: c.UpfrontCommissionRate,
		TrialCommissionRate:   c.TrialCommissionRate,
		Active:                c.Active,
	}
}

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Column/field name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors aggregates all violations found in one row.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("lender_code", validateLenderCode); err != nil {
		panic(err)
	}

	// Report errors under the wire/CSV field names, not Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateLenderCode permits capital ASCII letters only.
func validateLenderCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for i := 0; i < len(value); i++ {
		if value[i] < 'A' || value[i] > 'Z' {
			return false
		}
	}
	return true
}

// validationMessage returns a human-readable message for a validation error.
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "lender_code":
		return "only capital alphabets [A-Z] are allowed"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ParseStrictBool converts a raw cell to a boolean under the strict rule:
// the value, upper-cased, must equal exactly "TRUE" to yield true. Every
// other input yields false. No partial matches, no error on unrecognized
// input.
func ParseStrictBool(raw string) bool {
	return strings.ToUpper(raw) == "TRUE"
}

// ParseRow builds a lender candidate from one CSV row, given as a mapping of
// column name to raw cell value. Columns the row does not carry read as "".
//
// A numeric parse failure returns a nil candidate: no typed record could be
// built. A constraint violation returns the built candidate alongside the
// error so callers can still report its field values.
func ParseRow(row map[string]string) (*Candidate, error) {
	upfront, err := parseRate("upfront_commission_rate", row["upfront_commission_rate"])
	if err != nil {
		return nil, err
	}
	trial, err := parseRate("trial_commission_rate", row["trial_commission_rate"])
	if err != nil {
		return nil, err
	}

	cand := &Candidate{
		Name:                  row["name"],
		Code:                  row["code"],
		UpfrontCommissionRate: upfront,
		TrialCommissionRate:   trial,
		Active:                ParseStrictBool(row["active"]),
	}

	if err := cand.Validate(); err != nil {
		return cand, err
	}
	return cand, nil
}

// Validate checks the candidate against the lender field constraints.
// Returns ValidationErrors listing every violation, or nil.
func (c *Candidate) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: validationMessage(fe),
		})
	}
	return out
}

func parseRate(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, ValidationError{
			Field:   field,
			Value:   raw,
			Message: fmt.Sprintf("could not convert %q to float", raw),
		}
	}
	return v, nil
}
