package route

import (
	"fmt"

	"github.com/polyroute/polyroute/internal/util"
)

// Segment kinds.
const (
	// KindStatic is a literal path segment matched verbatim.
	KindStatic = "static"

	// KindVariable is a capturing path segment.
	KindVariable = "variable"
)

// Variable types for capturing segments.
const (
	// VariableString matches one path segment (no separator).
	VariableString = "string"

	// VariableNumber matches ASCII decimal digits.
	VariableNumber = "number"

	// VariableUUID matches 36 hex or hyphen characters.
	VariableUUID = "uuid"

	// VariableAny matches anything, including path separators.
	VariableAny = "any"
)

// variableClasses maps a variable type to its regexp character class.
var variableClasses = map[string]string{
	VariableString: `[^/]+`,
	VariableNumber: `\d+`,
	VariableUUID:   `[0-9a-fA-F-]{36}`,
	VariableAny:    `.+`,
}

// Segment is one element of a route path pattern. Static segments
// match their Name verbatim and case-sensitively; variable segments
// capture request path content under Name, constrained by
// VariableType. An empty VariableType means VariableAny.
type Segment struct {
	Kind         string `json:"type" yaml:"type"`
	Name         string `json:"name" yaml:"name"`
	VariableType string `json:"variable_type,omitempty" yaml:"variable_type,omitempty"`
}

// class returns the regexp character class for a variable segment.
func (s Segment) class() string {
	if s.VariableType == "" {
		return variableClasses[VariableAny]
	}
	return variableClasses[s.VariableType]
}

// validate checks a single segment. The returned message carries no
// route context; callers wrap it with the route id and segment index.
func (s Segment) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name must not be empty")
	}

	switch s.Kind {
	case KindStatic:
		return nil
	case KindVariable:
		if s.VariableType == "" {
			return nil
		}
		if _, ok := variableClasses[s.VariableType]; !ok {
			return fmt.Errorf(
				"invalid variable type: %s, must be one of: string, number, uuid, any",
				s.VariableType,
			)
		}
		return nil
	default:
		return fmt.Errorf(
			"invalid segment kind: %s, must be one of: static, variable",
			s.Kind,
		)
	}
}

// RouteDefinition is the stored description of one route within a
// project. Definitions are immutable once handed to the matching
// layer; the admin surface replaces whole definitions on mutation.
type RouteDefinition struct {
	ID                 string    `json:"id" yaml:"id"`
	Method             string    `json:"method" yaml:"method"`
	RequireAPIKey      bool      `json:"require_api_key" yaml:"require_api_key"`
	Segments           []Segment `json:"segments" yaml:"segments"`
	NodeSetupVersionID string    `json:"node_setup_version_id" yaml:"node_setup_version_id"`
	TenantID           string    `json:"tenant_id" yaml:"tenant_id"`
	ActiveStages       []string  `json:"active_stages" yaml:"active_stages"`
}

// Validate checks the definition for structural problems. It is
// called on every admin write and again before compilation, so a bad
// definition is rejected at the write path and can never surface as
// a per-request failure.
func (d *RouteDefinition) Validate() error {
	if d.ID == "" {
		return util.NewRouteDefinitionError(d.ID, "id", "must not be empty")
	}
	if d.Method == "" {
		return util.NewRouteDefinitionError(d.ID, "method", "must not be empty")
	}

	for i, seg := range d.Segments {
		if err := seg.validate(); err != nil {
			return util.NewRouteDefinitionError(
				d.ID,
				fmt.Sprintf("segments[%d]", i),
				err.Error(),
			)
		}
	}

	return nil
}

// HasStage reports whether the definition is active in the given
// stage.
func (d *RouteDefinition) HasStage(stage string) bool {
	for _, s := range d.ActiveStages {
		if s == stage {
			return true
		}
	}
	return false
}

// AddStage adds a stage to the active set. It reports whether the
// set changed.
func (d *RouteDefinition) AddStage(stage string) bool {
	if d.HasStage(stage) {
		return false
	}
	d.ActiveStages = append(d.ActiveStages, stage)
	return true
}

// RemoveStage removes a stage from the active set. It reports
// whether the set changed.
func (d *RouteDefinition) RemoveStage(stage string) bool {
	for i, s := range d.ActiveStages {
		if s == stage {
			d.ActiveStages = append(d.ActiveStages[:i], d.ActiveStages[i+1:]...)
			return true
		}
	}
	return false
}
