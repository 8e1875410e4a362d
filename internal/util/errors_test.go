package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMalformedHostError(t *testing.T) {
	t.Parallel()

	err := NewMalformedHostError("localhost", "no subdomain")

	assert.Equal(t, `malformed host "localhost": no subdomain`, err.Error())
	assert.True(t, errors.Is(err, ErrMalformedHost))
	assert.False(t, errors.Is(err, ErrNoMatch))
}

func TestRouteDefinitionError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		routeID        string
		field          string
		message        string
		expectedString string
	}{
		{
			name:           "with route and field",
			routeID:        "r1",
			field:          "segments[2].variable_type",
			message:        "unknown variable type",
			expectedString: "invalid route r1: segments[2].variable_type: unknown variable type",
		},
		{
			name:           "with route only",
			routeID:        "r1",
			message:        "empty segment list",
			expectedString: "invalid route r1: empty segment list",
		},
		{
			name:           "bare",
			message:        "empty segment list",
			expectedString: "invalid route: empty segment list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewRouteDefinitionError(tt.routeID, tt.field, tt.message)

			assert.Equal(t, tt.expectedString, err.Error())
			assert.True(t, errors.Is(err, ErrInvalidRoute))
		})
	}
}

func TestNoMatchError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		methodMismatch  bool
		wantNoMatch     bool
		wantMethodMatch bool
	}{
		{
			name:            "path not found",
			methodMismatch:  false,
			wantNoMatch:     true,
			wantMethodMatch: false,
		},
		{
			name:            "method mismatch",
			methodMismatch:  true,
			wantNoMatch:     true,
			wantMethodMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewNoMatchError("GET", "users/42")
			err.MethodMismatch = tt.methodMismatch

			assert.Equal(t, tt.wantNoMatch, errors.Is(err, ErrNoMatch))
			assert.Equal(t, tt.wantMethodMatch, errors.Is(err, ErrMethodNotAllowed))
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestFetchError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewFetchErrorWithCause("proj-1", "store unavailable", cause)

	assert.Contains(t, err.Error(), "proj-1")
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, errors.Is(err, ErrFetchFailed))
	assert.Equal(t, cause, err.Unwrap())
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("route fetch", 5*time.Second)

	assert.Equal(t, "timeout after 5s during route fetch", err.Error())
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestInvocationError(t *testing.T) {
	t.Parallel()

	err := NewInvocationError("node_setup_v1_dev", "backend returned 503")
	err.StatusCode = 503

	assert.Contains(t, err.Error(), "node_setup_v1_dev")
	assert.True(t, errors.Is(err, ErrInvocationFailed))
	assert.Equal(t, 503, err.StatusCode)
}

func TestAuthError(t *testing.T) {
	t.Parallel()

	err := NewAuthError("missing api key")

	assert.Equal(t, "unauthorized: missing api key", err.Error())
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestConfigError_Is(t *testing.T) {
	t.Parallel()

	err := NewConfigError("server.port", "out of range")

	assert.True(t, err.Is(&ConfigError{}))
	assert.True(t, errors.Is(err, ErrConfigInvalid))
	assert.False(t, err.Is(errors.New("other error")))

	errWithCause := NewConfigErrorWithCause("field", "message", ErrInvalidInput)
	assert.True(t, errors.Is(errWithCause, ErrInvalidInput))
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, "context"))

	base := errors.New("base")
	wrapped := WrapError(base, "loading routes")

	assert.Equal(t, "loading routes: base", wrapped.Error())
	assert.True(t, errors.Is(wrapped, base))
}

func TestIsClientError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"malformed host", NewMalformedHostError("x", "no dot"), true},
		{"no match", NewNoMatchError("GET", "a/b"), true},
		{"unauthorized", NewAuthError("bad key"), true},
		{"invalid route", NewRouteDefinitionError("r1", "", "bad"), true},
		{"fetch failure", NewFetchError("p", "down"), false},
		{"timeout", NewTimeoutError("fetch", time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, IsClientError(tt.err))
		})
	}
}

func TestIsServerError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"fetch failure", NewFetchError("p", "down"), true},
		{"invocation failure", NewInvocationError("b", "boom"), true},
		{"circuit open", NewCircuitOpenError("invoker", "open"), true},
		{"timeout", NewTimeoutError("invoke", time.Second), true},
		{"no match", NewNoMatchError("GET", "a/b"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, IsServerError(tt.err))
		})
	}
}
