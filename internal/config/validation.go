package config

import (
	"fmt"
	"strings"

	"steward/internal/api"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// FormatValidationError creates a consistent validation error message
func FormatValidationError(entityType, entityName string, err error) error {
	if err == nil {
		return nil
	}

	if entityName != "" {
		return fmt.Errorf("validation failed for %s '%s': %w", entityType, entityName, err)
	}
	return fmt.Errorf("validation failed for %s: %w", entityType, err)
}

// Validate checks a fully loaded configuration.
func Validate(c StewardConfig) ValidationErrors {
	var errs ValidationErrors
	addErr := func(err error) {
		if ve, ok := err.(ValidationError); ok {
			errs = append(errs, ve)
		}
	}

	addErr(ValidateRequired("ssh.user", c.SSH.User, "remote access"))
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		errs.Add("ssh.port", "must be between 1 and 65535", c.SSH.Port)
	}
	if c.SSH.TimeoutSeconds < 0 {
		errs.Add("ssh.timeoutSeconds", "must not be negative", c.SSH.TimeoutSeconds)
	}
	if c.SSH.DialTimeoutSeconds < 0 {
		errs.Add("ssh.dialTimeoutSeconds", "must not be negative", c.SSH.DialTimeoutSeconds)
	}

	addErr(ValidateRequired("paths.remoteScriptsDir", c.Paths.RemoteScriptsDir, "deployments"))
	addErr(ValidateRequired("paths.stagingDir", c.Paths.StagingDir, "deployments"))
	addErr(ValidateRequired("paths.resourcesFile", c.Paths.ResourcesFile, "resource lookup"))

	if c.Bus.Enabled {
		addErr(ValidateRequired("bus.natsURL", c.Bus.NATSURL, "an enabled bus"))
	}
	if strings.ContainsAny(c.Bus.SubjectPrefix, " *>") {
		errs.Add("bus.subjectPrefix", "must not contain spaces or wildcards", c.Bus.SubjectPrefix)
	}

	if c.Metrics.Enabled {
		addErr(ValidateRequired("metrics.address", c.Metrics.Address, "an enabled metrics endpoint"))
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs.Add("metrics.path", "must start with /", c.Metrics.Path)
		}
	}

	if c.Control.StopTimeoutSeconds <= 0 {
		errs.Add("control.stopTimeoutSeconds", "must be positive", c.Control.StopTimeoutSeconds)
	}
	if c.Control.WaitTimeoutSeconds < 0 {
		errs.Add("control.waitTimeoutSeconds", "must not be negative", c.Control.WaitTimeoutSeconds)
	}

	validateTemplates(&errs, "deploy.archiveTemplates", c.Deploy.ArchiveTemplates)
	validateTemplates(&errs, "deploy.resourceFiles", c.Deploy.ResourceFiles)
	return errs
}

func validateTemplates(errs *ValidationErrors, field string, templates []FileTemplate) {
	for i, t := range templates {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if err := ValidateRequired(prefix+".template", t.Template, "a file template"); err != nil {
			*errs = append(*errs, err.(ValidationError))
		}
		if err := ValidateRequired(prefix+".path", t.Path, "a file template"); err != nil {
			*errs = append(*errs, err.(ValidationError))
		}
		for _, k := range t.Kinds {
			if _, err := api.ParseResourceKind(k); err != nil {
				errs.Add(prefix+".kinds", err.Error(), k)
			}
		}
	}
}
