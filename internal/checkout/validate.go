package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"ms-storefront/internal/models"
)

// E.164: "+", a non-zero digit, then 1 to 14 more digits.
var intlPhonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("intlphone", func(fl validator.FieldLevel) bool {
		return intlPhonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("eventstatus", func(fl validator.FieldLevel) bool {
		return models.EventStatus(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

// Contact is what the checkout form collects.
type Contact struct {
	Phone string `json:"phone" validate:"required,intlphone"`
}

// FieldErrors maps a JSON field name to a user-facing message.
type FieldErrors map[string]string

type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid input: " + strings.Join(names, ", ")
}

// ValidateContact returns nil when the contact can be submitted.
func ValidateContact(c Contact) FieldErrors {
	return Validate(c)
}

// Validate checks any struct carrying validate tags and reports failures per field.
func Validate(v interface{}) FieldErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"_": err.Error()}
	}

	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	return fields
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "intlphone":
		return "must be an international number like +254712345678"
	case "eventstatus":
		return "must be one of: active postponed cancelled completed"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
