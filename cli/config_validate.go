package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidationFailed is returned when configuration validation fails.
var ErrValidationFailed = errors.New("validation failed")

var configValidator *validator.Validate

func init() {
	configValidator = validator.New()
}

// ValidateConfig validates a configuration struct using its struct tags.
func ValidateConfig(cfg interface{}) error {
	err := configValidator.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatValidationError(e))
	}
	return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(msgs, "; "))
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", e.Field(), e.Tag())
	}
}
