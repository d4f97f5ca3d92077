// Package config parses the plotter's INI-style configuration file with
// include directives, option access tracking and bounds checked getters,
// and turns it into the settings the daemon runs with.
package config

import (
	"fmt"

	"bentcrank-plotter/pkg/errors"
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	File    string
	Line    int
	Section string
	Option  string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	var where string
	if e.File != "" {
		where = e.File
		if e.Line > 0 {
			where = fmt.Sprintf("%s:%d", e.File, e.Line)
		}
		where += ": "
	}
	if e.Option != "" {
		return fmt.Sprintf("%soption '%s' in section '%s': %s", where, e.Option, e.Section, e.Message)
	}
	if e.Section != "" {
		return fmt.Sprintf("%ssection '%s': %s", where, e.Section, e.Message)
	}
	return where + e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// HostError converts e to the host-wide error type, picking the code from
// the context the error carries.
func (e *ConfigError) HostError() *errors.HostError {
	code := errors.ErrConfigValidation
	switch {
	case e.Section != "" && e.Option == "" && e.Message == msgSectionNotFound:
		code = errors.ErrConfigSection
	case e.Option != "" && e.Message == msgMustBeSpecified:
		code = errors.ErrConfigOption
	}
	he := errors.Wrap(e, code, e.Message).SetSection(e.Section).SetOption(e.Option)
	if e.File != "" {
		he.SetFile(e.File)
	}
	if e.Line > 0 {
		he.SetLine(e.Line)
	}
	return he
}

const (
	msgSectionNotFound = "section not found"
	msgMustBeSpecified = "must be specified"
)

// NewConfigError creates a new ConfigError.
func NewConfigError(section, option, message string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: message,
	}
}

// WrapError wraps an existing error with config context.
func WrapError(section, option string, err error) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: err.Error(),
		Cause:   err,
	}
}

func parseError(file string, line int, format string, args ...interface{}) *ConfigError {
	return &ConfigError{File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// ErrMissingOption returns an error for a required but missing option.
func ErrMissingOption(section, option string) *ConfigError {
	return NewConfigError(section, option, msgMustBeSpecified)
}

// ErrMissingSection returns an error for a missing section.
func ErrMissingSection(section string) *ConfigError {
	return NewConfigError(section, "", msgSectionNotFound)
}

// ErrInvalidValue returns an error for an invalid value.
func ErrInvalidValue(section, option, value, expected string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("invalid value '%s', expected %s", value, expected))
}

// ErrOutOfRange returns an error for a value outside the allowed range.
func ErrOutOfRange(section, option string, value float64, constraint string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("value %v %s", value, constraint))
}

// ErrInvalidChoice returns an error for an invalid choice value.
func ErrInvalidChoice(section, option, value string, choices []string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices))
}
