// Package util provides utility functions and types for the router.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNoMatch.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., FetchError, InvocationError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrMalformedHost    = errors.New("malformed host")
	ErrInvalidRoute     = errors.New("invalid route definition")
	ErrNoMatch          = errors.New("no matching route")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrFetchFailed      = errors.New("route fetch failed")
	ErrTimeout          = errors.New("timeout")
	ErrInvocationFailed = errors.New("invocation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrCircuitOpen      = errors.New("circuit breaker open")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// MalformedHostError reports a Host header that does not carry a
// project/stage subdomain in the {project_id}-{stage}.{domain} form.
type MalformedHostError struct {
	Host   string
	Reason string
}

// Error implements the error interface.
func (e *MalformedHostError) Error() string {
	return fmt.Sprintf("malformed host %q: %s", e.Host, e.Reason)
}

// Is checks if the error matches the target.
func (e *MalformedHostError) Is(target error) bool {
	if target == ErrMalformedHost {
		return true
	}
	_, ok := target.(*MalformedHostError)
	return ok
}

// NewMalformedHostError creates a new MalformedHostError.
func NewMalformedHostError(host, reason string) *MalformedHostError {
	return &MalformedHostError{Host: host, Reason: reason}
}

// RouteDefinitionError reports a route definition that cannot be
// compiled, such as an unknown segment kind or variable type.
type RouteDefinitionError struct {
	RouteID string
	Field   string
	Message string
}

// Error implements the error interface.
func (e *RouteDefinitionError) Error() string {
	switch {
	case e.RouteID != "" && e.Field != "":
		return fmt.Sprintf("invalid route %s: %s: %s", e.RouteID, e.Field, e.Message)
	case e.RouteID != "":
		return fmt.Sprintf("invalid route %s: %s", e.RouteID, e.Message)
	default:
		return fmt.Sprintf("invalid route: %s", e.Message)
	}
}

// Is checks if the error matches the target.
func (e *RouteDefinitionError) Is(target error) bool {
	if target == ErrInvalidRoute {
		return true
	}
	_, ok := target.(*RouteDefinitionError)
	return ok
}

// NewRouteDefinitionError creates a new RouteDefinitionError.
func NewRouteDefinitionError(routeID, field, message string) *RouteDefinitionError {
	return &RouteDefinitionError{RouteID: routeID, Field: field, Message: message}
}

// NoMatchError reports that no route in the active set matched the
// request. MethodMismatch distinguishes a path that exists under a
// different HTTP method from a path no route covers at all.
type NoMatchError struct {
	ProjectID      string
	Stage          string
	Method         string
	Path           string
	MethodMismatch bool

	// Attempted carries the candidate patterns that were tested, for
	// debug-mode responses. Nil outside debug mode.
	Attempted []string
}

// Error implements the error interface.
func (e *NoMatchError) Error() string {
	if e.MethodMismatch {
		return fmt.Sprintf("method %s not allowed for %s", e.Method, e.Path)
	}
	return fmt.Sprintf("no route found for %s %s", e.Method, e.Path)
}

// Is checks if the error matches the target.
func (e *NoMatchError) Is(target error) bool {
	if target == ErrNoMatch || target == ErrNotFound {
		return true
	}
	if target == ErrMethodNotAllowed {
		return e.MethodMismatch
	}
	_, ok := target.(*NoMatchError)
	return ok
}

// NewNoMatchError creates a new NoMatchError.
func NewNoMatchError(method, path string) *NoMatchError {
	return &NoMatchError{Method: method, Path: path}
}

// FetchError reports a failed route set fetch from the backing store.
type FetchError struct {
	ProjectID string
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("route fetch for project %s failed: %s: %v", e.ProjectID, e.Message, e.Cause)
	}
	return fmt.Sprintf("route fetch for project %s failed: %s", e.ProjectID, e.Message)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *FetchError) Is(target error) bool {
	if target == ErrFetchFailed {
		return true
	}
	_, ok := target.(*FetchError)
	return ok || errors.Is(e.Cause, target)
}

// NewFetchError creates a new FetchError.
func NewFetchError(projectID, message string) *FetchError {
	return &FetchError{ProjectID: projectID, Message: message}
}

// NewFetchErrorWithCause creates a new FetchError with a cause.
func NewFetchErrorWithCause(projectID, message string, cause error) *FetchError {
	return &FetchError{ProjectID: projectID, Message: message, Cause: cause}
}

// TimeoutError represents a timeout error.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	Cause     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v during %s", e.Duration, e.Operation)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok || errors.Is(e.Cause, target)
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// InvocationError reports a failed backend invocation. StatusCode is
// the backend-reported status when one was received, zero otherwise.
type InvocationError struct {
	Backend    string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invocation of %s failed: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("invocation of %s failed: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *InvocationError) Is(target error) bool {
	if target == ErrInvocationFailed {
		return true
	}
	_, ok := target.(*InvocationError)
	return ok || errors.Is(e.Cause, target)
}

// NewInvocationError creates a new InvocationError.
func NewInvocationError(backend, message string) *InvocationError {
	return &InvocationError{Backend: backend, Message: message}
}

// NewInvocationErrorWithCause creates a new InvocationError with a cause.
func NewInvocationErrorWithCause(backend, message string, cause error) *InvocationError {
	return &InvocationError{Backend: backend, Message: message, Cause: cause}
}

// AuthError reports a rejected credential on a protected route.
type AuthError struct {
	Reason string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// Is checks if the error matches the target.
func (e *AuthError) Is(target error) bool {
	if target == ErrUnauthorized {
		return true
	}
	_, ok := target.(*AuthError)
	return ok
}

// NewAuthError creates a new AuthError.
func NewAuthError(reason string) *AuthError {
	return &AuthError{Reason: reason}
}

// CircuitOpenError represents a circuit breaker open error.
type CircuitOpenError struct {
	Name  string
	State string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is %s", e.Name, e.State)
}

// Is checks if the error matches the target.
func (e *CircuitOpenError) Is(target error) bool {
	if target == ErrCircuitOpen {
		return true
	}
	_, ok := target.(*CircuitOpenError)
	return ok
}

// NewCircuitOpenError creates a new CircuitOpenError.
func NewCircuitOpenError(name, state string) *CircuitOpenError {
	return &CircuitOpenError{Name: name, State: state}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsClientError returns true if the error is a client error (4xx).
func IsClientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrMalformedHost) {
		return true
	}

	if errors.Is(err, ErrNoMatch) {
		return true
	}

	if errors.Is(err, ErrUnauthorized) {
		return true
	}

	if errors.Is(err, ErrInvalidRoute) {
		return true
	}

	if errors.Is(err, ErrInvalidInput) {
		return true
	}

	return errors.Is(err, ErrNotFound)
}

// IsServerError returns true if the error is a server error (5xx).
func IsServerError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrFetchFailed) {
		return true
	}

	if errors.Is(err, ErrInvocationFailed) {
		return true
	}

	if errors.Is(err, ErrCircuitOpen) {
		return true
	}

	return errors.Is(err, ErrTimeout)
}
