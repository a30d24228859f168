// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vulnscan/api/pkg/domain/event"
	"github.com/vulnscan/api/pkg/domain/finding"
	"github.com/vulnscan/api/pkg/domain/scan"
	"github.com/vulnscan/api/pkg/domain/target"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("scan_profile", validateScanProfile)
	_ = v.RegisterValidation("severity", validateSeverity)
	_ = v.RegisterValidation("category", validateCategory)
	_ = v.RegisterValidation("target_type", validateTargetType)
	_ = v.RegisterValidation("event_type", validateEventType)

	return &Validator{validate: v}
}

// Validate validates a struct and returns structured field errors.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Message: messageFor(fe),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "scan_profile":
		return "must be a valid scan profile"
	case "severity":
		return "must be a valid severity"
	case "category":
		return "must be a valid category"
	case "target_type":
		return "must be a valid target type"
	case "event_type":
		return "must be a valid event type"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func validateScanProfile(fl validator.FieldLevel) bool {
	return scan.Profile(fl.Field().String()).IsValid()
}

func validateSeverity(fl validator.FieldLevel) bool {
	return finding.Severity(fl.Field().String()).IsValid()
}

func validateCategory(fl validator.FieldLevel) bool {
	return finding.Category(fl.Field().String()).IsValid()
}

func validateTargetType(fl validator.FieldLevel) bool {
	return target.Type(fl.Field().String()).IsValid()
}

func validateEventType(fl validator.FieldLevel) bool {
	return event.Type(fl.Field().String()).IsValid()
}
