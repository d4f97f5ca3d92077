// Unified error handling for the plotter host
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Kinematics errors
	ErrKinematics            ErrorCode = "KINEMATICS"
	ErrKinematicsConfig      ErrorCode = "KINEMATICS_CONFIG"
	ErrKinematicsUnsupported ErrorCode = "KINEMATICS_UNSUPPORTED"
	ErrKinematicsCalc        ErrorCode = "KINEMATICS_CALC"

	// Transport errors
	ErrTransportSerial ErrorCode = "TRANSPORT_SERIAL"
	ErrAPIRequest      ErrorCode = "API_REQUEST"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// HostError is the unified error type for the host system
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// File is the source file (if available)
	File string

	// Line is the line number in the source file (if available)
	Line int

	// Section is the config section or context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HostError) Error() string {
	switch {
	case e.Option != "":
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Option, e.Message)
	case e.Section != "":
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetFile sets the source file
func (e *HostError) SetFile(file string) *HostError {
	e.File = file
	return e
}

// SetLine sets the line number
func (e *HostError) SetLine(line int) *HostError {
	e.Line = line
	return e
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// SetContext adds additional context
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
	}
}

// Config errors

// ConfigSectionError creates an error for missing config section
func ConfigSectionError(section string) *HostError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigOptionError creates an error for missing or invalid config option
func ConfigOptionError(section, option string) *HostError {
	return New(ErrConfigOption, fmt.Sprintf("option '%s' not found in section '%s'", option, section)).
		SetSection(section).
		SetOption(option)
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(section, option string, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// Kinematics errors

// KinematicsError creates a general kinematics error
func KinematicsError(message string) *HostError {
	return New(ErrKinematics, message)
}

// KinematicsConfigError reports a linkage geometry that cannot be solved.
// The offending parameter is recorded as the option.
func KinematicsConfigError(param string, value float64, reason string) *HostError {
	return New(ErrKinematicsConfig, fmt.Sprintf("%s=%g: %s", param, value, reason)).
		SetOption(param).
		SetContext("value", value)
}

// KinematicsUnsupportedError creates an error for an unknown or unimplemented mode
func KinematicsUnsupportedError(mode string, reason string) *HostError {
	return New(ErrKinematicsUnsupported, fmt.Sprintf("kinematics mode '%s': %s", mode, reason)).
		SetContext("mode", mode)
}

// Transport errors

// SerialError creates an error for a servo link failure
func SerialError(device, operation string, err error) *HostError {
	return Wrap(err, ErrTransportSerial, fmt.Sprintf("%s %s: %v", operation, device, err)).
		SetContext("device", device)
}

// APIRequestError creates an error for a malformed API request
func APIRequestError(method, reason string) *HostError {
	return New(ErrAPIRequest, fmt.Sprintf("%s: %s", method, reason)).
		SetContext("method", method)
}

// Runtime errors

// RuntimeError creates a general runtime error
func RuntimeError(message string) *HostError {
	return New(ErrRuntime, message)
}

// RuntimeErrorInit creates an error for initialization failure
func RuntimeErrorInit(component string, reason string) *HostError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason))
}

// Helper functions for adding context

// WithConfigPath adds config file path to error context
func WithConfigPath(err *HostError, path string) *HostError {
	if err == nil {
		return nil
	}
	err.SetContext("config_path", path)
	return err
}

// RecoverPanic converts a recovered panic value into a HostError.
// Use from a deferred function: defer func() { herr = errors.RecoverPanic(recover()) }()
func RecoverPanic(r interface{}) *HostError {
	if r == nil {
		return nil
	}
	switch x := r.(type) {
	case string:
		return RuntimeError(fmt.Sprintf("panic: %s", x))
	case runtime.Error:
		return RuntimeError(x.Error())
	case error:
		return RuntimeError(x.Error())
	default:
		return RuntimeError(fmt.Sprintf("panic: %v", x))
	}
}

// Is checks if error (or anything it wraps) matches given error code
func Is(err error, code ErrorCode) bool {
	var hostErr *HostError
	if stderrors.As(err, &hostErr) {
		return hostErr.Code == code
	}
	return false
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}

// IsKinematics checks if error is a kinematics error
func IsKinematics(err error) bool {
	return Is(err, ErrKinematics) ||
		Is(err, ErrKinematicsConfig) ||
		Is(err, ErrKinematicsUnsupported) ||
		Is(err, ErrKinematicsCalc)
}

// IsTransport checks if error is a transport error
func IsTransport(err error) bool {
	return Is(err, ErrTransportSerial) || Is(err, ErrAPIRequest)
}
