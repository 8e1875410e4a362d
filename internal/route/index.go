package route

import (
	"strings"
	"time"

	"github.com/polyroute/polyroute/internal/util"
)

// Index is the compiled route set of one project and stage. Routes
// keep store order; the first pattern that matches wins, with no
// specificity ranking beyond position. An Index is immutable after
// construction and safe for unbounded concurrent matching.
type Index struct {
	ProjectID string
	Stage     string
	Routes    []*CompiledRoute
	BuiltAt   time.Time
}

// Match is a successful routing decision.
type Match struct {
	Route     *CompiledRoute
	Variables map[string]string
}

// NewIndex compiles the definitions active in the given stage into an
// index, preserving input order. Definitions not active in the stage
// are skipped. A definition that fails to compile aborts the build.
func NewIndex(projectID, stage string, defs []RouteDefinition) (*Index, error) {
	routes := make([]*CompiledRoute, 0, len(defs))

	for _, def := range defs {
		if !def.HasStage(stage) {
			continue
		}

		compiled, err := Compile(def)
		if err != nil {
			return nil, err
		}
		routes = append(routes, compiled)
	}

	return &Index{
		ProjectID: projectID,
		Stage:     stage,
		Routes:    routes,
		BuiltAt:   time.Now(),
	}, nil
}

// Match finds the first route matching the method and path. Method
// comparison is case-insensitive. A miss returns a NoMatchError whose
// MethodMismatch flag reports whether some route matched the path
// under a different method, so the edge can answer 405 instead of
// 404.
func (ix *Index) Match(method, path string) (*Match, error) {
	pathMatched := false

	for _, r := range ix.Routes {
		vars, ok := r.Match(path)
		if !ok {
			continue
		}
		pathMatched = true

		if !strings.EqualFold(r.Definition.Method, method) {
			continue
		}

		return &Match{Route: r, Variables: vars}, nil
	}

	return nil, &util.NoMatchError{
		ProjectID:      ix.ProjectID,
		Stage:          ix.Stage,
		Method:         method,
		Path:           path,
		MethodMismatch: pathMatched,
	}
}

// Patterns returns the compiled pattern of every route in match
// order, for debug diagnostics on misses.
func (ix *Index) Patterns() []string {
	patterns := make([]string, len(ix.Routes))
	for i, r := range ix.Routes {
		patterns[i] = r.Pattern()
	}
	return patterns
}

// Len returns the number of candidate routes in the index.
func (ix *Index) Len() int {
	return len(ix.Routes)
}
