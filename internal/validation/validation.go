// Package validation holds the form checks shared by sign-up, phone sign-in,
// profile setup and the bill and payment inputs. Request structs declare
// their rules with `validate` tags and go through one shared validator.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/onebills/onebills/internal/apperr"
)

const (
	minPasswordLength = 8
	minPhoneDigits    = 10
	maxPhoneDigits    = 15
)

var validate *validator.Validate

// Assigned in init to break the initialization cycle through Password.
func init() { validate = newValidator() }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return Phone(fl.Field().String())
	})
	mustRegister(v, "password", func(fl validator.FieldLevel) bool {
		ok, _ := Password(fl.Field().String())
		return ok
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// Struct checks s against its `validate` tags. Failures come back as a
// VALIDATION_* application error describing the first failing field, with
// every failing field listed in Details.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return fmt.Errorf("validate %T: %w", s, err)
	}
	return fromFieldErrors(fields)
}

// Email reports whether email looks like an address.
func Email(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// Phone reports whether phone holds between 10 and 15 digits once
// formatting characters are removed.
func Phone(phone string) bool {
	n := len(digits(phone))
	return n >= minPhoneDigits && n <= maxPhoneDigits
}

// Password checks the password policy and returns the first failing rule.
func Password(password string) (bool, string) {
	if validate.Var(password, fmt.Sprintf("min=%d", minPasswordLength)) != nil {
		return false, fmt.Sprintf("Password must be at least %d characters", minPasswordLength)
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return false, "Password must contain at least one uppercase letter"
	}
	if !lower {
		return false, "Password must contain at least one lowercase letter"
	}
	if !digit {
		return false, "Password must contain at least one number"
	}
	return true, ""
}

// SanitizePhone strips everything but digits and '+'.
func SanitizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r == '+' || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, phone)
}

// FormatPhone returns phone in E.164 form: '+' followed by its digits.
func FormatPhone(phone string) string {
	return "+" + digits(phone)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func fromFieldErrors(fields validator.ValidationErrors) *apperr.AppError {
	details := make(map[string]string, len(fields))
	failed := make([]string, 0, len(fields))
	for _, fe := range fields {
		details[fe.Field()] = fe.Tag()
		failed = append(failed, fe.Field()+":"+fe.Tag())
	}
	first := fields[0]
	code, msg := describe(first)
	appErr := apperr.New(code, "invalid input: "+strings.Join(failed, ", "), msg)
	appErr.Details = details
	return appErr
}

func describe(fe validator.FieldError) (apperr.Code, string) {
	label := labelOf(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperr.ValidationRequired, label + " is required."
	case "email":
		return apperr.ValidationInvalidFormat, "Please enter a valid email address."
	case "phone":
		return apperr.ValidationInvalidFormat, "Please enter a valid phone number."
	case "password":
		_, rule := Password(fmt.Sprint(fe.Value()))
		return apperr.ValidationError, rule + "."
	case "gt":
		return apperr.ValidationError, fmt.Sprintf("%s must be greater than %s.", label, fe.Param())
	case "min":
		return apperr.ValidationError, fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "max":
		return apperr.ValidationError, fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "len":
		return apperr.ValidationInvalidFormat, fmt.Sprintf("%s must be exactly %s characters.", label, fe.Param())
	case "oneof":
		return apperr.ValidationInvalidFormat, fmt.Sprintf("%s must be one of: %s.", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "numeric", "alpha", "uuid", "uuid4":
		return apperr.ValidationInvalidFormat, label + " has an invalid format."
	}
	return apperr.ValidationError, label + " is invalid."
}

// labelOf turns a JSON field name into a sentence-case label.
func labelOf(field string) string {
	label := strings.ReplaceAll(field, "_", " ")
	if label == "" {
		return "Value"
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
