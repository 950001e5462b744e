package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var disposableEmailDomains = []string{
	"10minutemail.com", "guerrillamail.com", "mailinator.com", "tempmail.org",
	"yopmail.com", "maildrop.cc", "temp-mail.org", "throwaway.email",
}

// Normalizer is implemented by request payloads that canonicalise their
// values (trimming, lowercasing) before validation.
type Normalizer interface {
	Normalize()
}

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Custom validators
	_ = v.RegisterValidation("no_disposable_email", validateNoDisposableEmail)

	return &Validator{validate: v}
}

// Validate normalizes i when it implements Normalizer and then checks its
// struct tags. Field failures are returned as *ValidationError.
func (v *Validator) Validate(i any) error {
	if n, ok := i.(Normalizer); ok {
		n.Normalize()
	}

	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		return newValidationError(errs)
	}
	return err
}

func validateNoDisposableEmail(fl validator.FieldLevel) bool {
	email := fl.Field().String()
	emailParts := strings.Split(email, "@")
	if len(emailParts) != 2 {
		return false
	}

	domain := strings.ToLower(emailParts[1])
	for _, disposableDomain := range disposableEmailDomains {
		if domain == disposableDomain {
			return false
		}
	}

	return true
}
