// Package validator validates request structs with go-playground/validator
// and reports failures as ErrValidation with per-field details.
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	ierr "github.com/opensource-finance/brokerage/internal/errors"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// NewValidator returns the shared validator, creating it on first use.
// Field names in errors are the json names.
func NewValidator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate = v
	})
	return validate
}

// ValidateRequest validates req against its struct tags.
func ValidateRequest(req any) error {
	if err := NewValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, fe := range validateErrs {
				details[fe.Namespace()] = fe.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Field reports a single invalid field.
func Field(field, problem string) error {
	return ierr.NewErrorf("%s %s", field, problem).
		WithHintf("%s %s", field, problem).
		WithReportableDetails(map[string]any{field: problem}).
		Mark(ierr.ErrValidation)
}

// Positive requires d > 0.
func Positive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return Field(field, "must be greater than zero")
	}
	return nil
}

// NonNegative requires d >= 0.
func NonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return Field(field, "must not be negative")
	}
	return nil
}

var hundred = decimal.NewFromInt(100)

// Percentage requires 0 <= d <= 100.
func Percentage(field string, d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(hundred) {
		return Field(field, "must be between 0 and 100")
	}
	return nil
}

// Band requires from <= to.
func Band[T int | int64](field string, from, to T) error {
	if from > to {
		return Field(field, "from must not exceed to")
	}
	return nil
}

// DecimalBand requires from <= to.
func DecimalBand(field string, from, to decimal.Decimal) error {
	if from.GreaterThan(to) {
		return Field(field, "from must not exceed to")
	}
	return nil
}
