// Package invoke sends assembled invocation payloads to the function
// runtime executing a tenant's node setups.
package invoke

import "context"

// Payload is the invocation request handed to the function runtime.
// Header and query values are single-valued; when the inbound
// request carried repeats, the first value wins.
type Payload struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Headers   map[string]string `json:"headers,omitempty"`
	Query     map[string]string `json:"query,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	ProjectID string            `json:"project_id"`
	Stage     string            `json:"stage"`
	TenantID  string            `json:"tenant_id"`
	RouteID   string            `json:"route_id"`
	Body      string            `json:"body,omitempty"`
}

// Result is the function runtime's response envelope. Adapters
// normalize a zero Status to 200.
type Result struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Invoker executes one backend invocation.
type Invoker interface {
	// Invoke sends the payload to the backend identified by
	// backendID and returns its response envelope.
	Invoke(ctx context.Context, backendID string, payload *Payload) (*Result, error)
}
