package repository

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned when no document matches the requested id.
var ErrNotFound = errors.New("not found")

// ValidationError reports bad or missing client input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// DuplicateError reports a second episode with the same number in one serial.
type DuplicateError struct {
	SerialID      string
	EpisodeNumber int
}

func (e *DuplicateError) Error() string {
	return "Episode number already exists for this serial"
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs struct tag validation and converts the first failure
// into a ValidationError.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "min":
		// min=1 on an optional update field means present but blank.
		return &ValidationError{Field: fe.Field(), Message: fe.Field() + " is required"}
	case "oneof":
		return &ValidationError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")),
		}
	}
	return &ValidationError{Field: fe.Field(), Message: fe.Field() + " is invalid"}
}
