package core

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports every invalid field at once.
// Err, when set, tells what kind of validation failed.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	if len(err.Fields) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fe := range err.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return "invalid fields: " + strings.Join(msgs, "; ")
}

// FieldNames returns the invalid field keys in reporting order.
func (err ValidationError) FieldNames() []string {
	names := make([]string, 0, len(err.Fields))
	for _, fe := range err.Fields {
		names = append(names, fe.Field)
	}
	return names
}

// HasField reports whether field is among the invalid fields.
func (err ValidationError) HasField(field string) bool {
	for _, fe := range err.Fields {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// AsValidationError returns the *ValidationError behind err, if any.
func AsValidationError(err error) (*ValidationError, bool) {
	vErr, ok := errors.Cause(err).(*ValidationError)
	return vErr, ok
}

// TranslateValidationErrors converts validator.ValidationErrors into a *ValidationError
// using the registered translations. Other errors are returned untouched.
func TranslateValidationErrors(err error) error {
	vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok {
		return err
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		flds = append(flds, FieldError{Field: vErr.Field(), Error: vErr.Translate(Translator)})
	}
	return &ValidationError{Fields: flds}
}

// MergeValidationErrors concatenates the fields of several validation errors.
// A non-validation error among errs is returned as is.
func MergeValidationErrors(errs ...error) error {
	var flds []FieldError
	for _, err := range errs {
		if err == nil {
			continue
		}
		vErr, ok := AsValidationError(err)
		if !ok {
			return err
		}
		flds = append(flds, vErr.Fields...)
	}
	if len(flds) == 0 {
		return nil
	}
	return &ValidationError{Fields: flds}
}
