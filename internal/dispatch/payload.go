package dispatch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/polyroute/polyroute/internal/host"
	"github.com/polyroute/polyroute/internal/invoke"
	"github.com/polyroute/polyroute/internal/route"
)

// hopHeaders are connection-scoped headers that must not travel to
// the function runtime.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// isHopHeader reports whether a canonical header name is
// connection-scoped.
func isHopHeader(name string) bool {
	for _, h := range hopHeaders {
		if name == h {
			return true
		}
	}
	return false
}

// BackendID derives the function runtime identifier serving a route
// in a stage.
func BackendID(nodeSetupVersionID, stage string) string {
	return fmt.Sprintf("node_setup_%s_%s", nodeSetupVersionID, stage)
}

// bodiedMethod reports whether the request method carries a body to
// the runtime.
func bodiedMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// buildPayload assembles the invocation payload for a matched
// request. Header and query maps are single-valued; when the inbound
// request carried repeats, the first value wins. Hop-by-hop headers
// are dropped.
func buildPayload(req *Request, tenant host.Tenant, m *route.Match) *invoke.Payload {
	headers := make(map[string]string, len(req.Headers))
	for name, values := range req.Headers {
		canonical := http.CanonicalHeaderKey(name)
		if isHopHeader(canonical) || len(values) == 0 {
			continue
		}
		headers[canonical] = values[0]
	}

	query := make(map[string]string, len(req.Query))
	for name, values := range req.Query {
		if len(values) == 0 {
			continue
		}
		query[name] = values[0]
	}

	payload := &invoke.Payload{
		Method:    strings.ToUpper(req.Method),
		Path:      strings.TrimPrefix(req.Path, "/"),
		Headers:   headers,
		Query:     query,
		Variables: m.Variables,
		ProjectID: tenant.ProjectID,
		Stage:     tenant.Stage,
		TenantID:  m.Route.Definition.TenantID,
		RouteID:   m.Route.Definition.ID,
	}

	if bodiedMethod(req.Method) && len(req.Body) > 0 {
		payload.Body = string(req.Body)
	}

	return payload
}
