package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration values using go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("provider_kind", validateProviderKind)
	v.RegisterValidation("log_format", validateLogFormat)
	v.RegisterValidation("log_level", validateLogLevel)

	return &Validator{
		validate: v,
	}
}

// Validate validates a complete configuration
func (v *Validator) Validate(config *Config) error {
	if config.Version == "" {
		config.Version = "1.0"
	}

	if err := v.validate.Struct(config); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, e := range validationErrors {
				return ValidationError{
					Field:   e.Field(),
					Message: fmt.Sprintf("validation failed on tag '%s' with value '%v'", e.Tag(), e.Value()),
					Value:   e.Value(),
				}
			}
		}
		return err
	}

	// The active provider must resolve to a configured entry. An empty
	// credential is fine (the router falls back), an unknown name is not.
	if ap := config.Reply.ActiveProvider; ap != "" {
		if _, ok := config.Providers[ap]; !ok {
			return ValidationError{
				Field:   "ActiveProvider",
				Message: fmt.Sprintf("active provider '%s' has no configuration entry", ap),
				Value:   ap,
			}
		}
	}

	// Delay ranges must not be inverted.
	for _, d := range []DelayRangeConfig{config.Reply.PeerDelay, config.Reply.AgentDelay} {
		if d.MaxMs != 0 && d.MaxMs < d.MinMs {
			return ValidationError{
				Field:   "DelayRange",
				Message: fmt.Sprintf("delay range max %dms is below min %dms", d.MaxMs, d.MinMs),
				Value:   d,
			}
		}
	}

	return nil
}

// validateProviderKind validates provider wire dialect values
func validateProviderKind(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Allow empty, will be filled by defaults
	}
	return contains([]string{"openaichat", "gemini", "dashscope"}, value)
}

// validateLogFormat validates log format values
func validateLogFormat(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return contains([]string{"text", "json"}, value)
}

// validateLogLevel validates log level values
func validateLogLevel(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return contains([]string{"debug", "info", "warn", "warning", "error"}, value)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
