// Package host resolves tenant identity from the request Host
// header.
//
// Tenant hosts follow the shape {project_id}-{stage}.{domain}. The
// first DNS label splits on its last hyphen, so project ids may
// themselves contain hyphens while stage names may not:
// "my-app-dev.example.com" resolves to project "my-app", stage
// "dev".
package host

import (
	"strings"

	"github.com/polyroute/polyroute/internal/util"
)

// Tenant identifies the project and stage a request targets.
type Tenant struct {
	ProjectID string
	Stage     string
}

// String returns the tenant in host label form.
func (t Tenant) String() string {
	return t.ProjectID + "-" + t.Stage
}

// Resolve parses a Host header value into a Tenant. A port suffix is
// stripped first. Hosts without a domain separator or without a
// hyphen in the first label are malformed.
func Resolve(hostValue string) (Tenant, error) {
	host := hostValue

	// Remove port from host if present
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}

	if host == "" {
		return Tenant{}, util.NewMalformedHostError(hostValue, "empty host")
	}

	label, _, found := strings.Cut(host, ".")
	if !found {
		return Tenant{}, util.NewMalformedHostError(
			hostValue, "no domain separator",
		)
	}

	idx := strings.LastIndex(label, "-")
	if idx == -1 {
		return Tenant{}, util.NewMalformedHostError(
			hostValue, "no stage separator in subdomain",
		)
	}

	projectID, stage := label[:idx], label[idx+1:]
	if projectID == "" {
		return Tenant{}, util.NewMalformedHostError(hostValue, "empty project id")
	}
	if stage == "" {
		return Tenant{}, util.NewMalformedHostError(hostValue, "empty stage")
	}

	return Tenant{ProjectID: projectID, Stage: stage}, nil
}
