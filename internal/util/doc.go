// Package util provides utility functions and types shared across
// the router.
//
// This package contains context helpers for request-scoped data, the
// error taxonomy used by every other package, and small validation
// helpers for configuration and admin input.
//
// # Context Helpers
//
// Context utilities for request-scoped data:
//
//	ctx = util.ContextWithRequestID(ctx, "req-123")
//	requestID := util.RequestIDFromContext(ctx)
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - MalformedHostError: host does not carry a project/stage subdomain
//   - NoMatchError: no active route matched the request
//   - FetchError, TimeoutError, InvocationError: upstream failures
//   - Common sentinel errors: ErrNoMatch, ErrTimeout, etc.
//
// # Validation
//
// Input validation helpers for URLs, durations, and required fields:
//
//	err := util.ValidateURL("https://example.com")
//	err := util.ValidateNonEmpty(projectID, "project_id")
package util
