// Package validation checks domain records before they are persisted, using
// the validator/v10 struct tags declared on internal/domain types.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "small-library/internal/errors"
)

// Validator wraps go-playground/validator with API error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports JSON field names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Validator{v: v}
}

// Validate checks s and returns a BAD_USER_INPUT error describing every
// failing field, e.g. "Book validation failed: title: must be at least 5 characters".
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("validate: %w", err)
	}

	parts := make([]string, 0, len(validationErrs))
	fields := make(map[string]any, len(validationErrs))
	for _, e := range validationErrs {
		msg := friendlyMessage(e)
		parts = append(parts, e.Field()+": "+msg)
		fields[e.Field()] = msg
	}

	return apperrors.BadUserInputf("%s validation failed: %s", typeName(s), strings.Join(parts, ", ")).
		WithDetails(map[string]any{"fields": fields})
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	default:
		return "is invalid"
	}
}

func typeName(s any) string {
	t := reflect.TypeOf(s)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
