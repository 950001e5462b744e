package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one failing field. Field is the JSON path of the value,
// for example "permissions[0].actions.delete".
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		messages = append(messages, f.Message)
	}
	return strings.Join(messages, "; ")
}

// Has reports whether field is among the failures.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func newValidationError(errs validator.ValidationErrors) *ValidationError {
	fields := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		path := fieldPath(fe.Namespace())
		fields = append(fields, FieldError{
			Field:   path,
			Rule:    fe.Tag(),
			Message: message(path, fe),
		})
	}
	return &ValidationError{Fields: fields}
}

// fieldPath drops the leading struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "eth_addr":
		return fmt.Sprintf("%s must be a valid wallet address", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "no_disposable_email":
		return fmt.Sprintf("%s must not use a disposable email domain", field)
	case "mongodb":
		return fmt.Sprintf("%s must be a valid object id", field)
	case "alphanum":
		return fmt.Sprintf("%s must contain only letters and digits", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
