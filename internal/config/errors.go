package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ConfigurationError describes why config.yaml could not be read or decoded.
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`
	FileName    string   `json:"fileName"`
	ErrorType   string   `json:"errorType"` // io or parse
	Message     string   `json:"message"`
	Details     string   `json:"details"`
	Suggestions []string `json:"suggestions"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FileName, ce.Message)
}

// DetailedError renders the error over several lines, including details
// and suggestions, for printing to a terminal.
func (ce ConfigurationError) DetailedError() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Configuration Error in %s\n", ce.FileName)
	fmt.Fprintf(&b, "  File: %s\n", ce.FilePath)
	fmt.Fprintf(&b, "  Type: %s\n", ce.ErrorType)
	fmt.Fprintf(&b, "  Error: %s", ce.Message)
	if ce.Details != "" {
		fmt.Fprintf(&b, "\n  Details: %s", ce.Details)
	}
	if len(ce.Suggestions) > 0 {
		b.WriteString("\n  Suggestions:")
		for _, s := range ce.Suggestions {
			fmt.Fprintf(&b, "\n    - %s", s)
		}
	}
	return b.String()
}

// NewConfigurationError creates a configuration error for filePath.
func NewConfigurationError(filePath, errorType, message string) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		ErrorType: errorType,
		Message:   message,
	}
}
