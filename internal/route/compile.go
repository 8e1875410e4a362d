package route

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/polyroute/polyroute/internal/util"
)

// CompiledRoute is a definition compiled into an anchored regexp for
// efficient matching. Compiled routes are immutable and safe to share
// between goroutines.
type CompiledRoute struct {
	Definition RouteDefinition

	// VariableNames lists capture names in segment order.
	VariableNames []string

	matcher *regexp.Regexp
}

// Compile validates a definition and compiles its segments into an
// anchored pattern. Static segments are quoted verbatim; variable
// segments become named capture groups with the character class of
// their variable type. Segments join on "/" and the whole pattern
// anchors at both ends.
func Compile(def RouteDefinition) (*CompiledRoute, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	pattern, names := buildPattern(def.Segments)

	matcher, err := regexp.Compile(pattern)
	if err != nil {
		// Reachable through variable names that are not valid group
		// names (hyphens, duplicates). Still a definition problem,
		// caught at write/compile time.
		return nil, util.NewRouteDefinitionError(
			def.ID,
			"segments",
			fmt.Sprintf("pattern %s does not compile: %v", pattern, err),
		)
	}

	return &CompiledRoute{
		Definition:    def,
		VariableNames: names,
		matcher:       matcher,
	}, nil
}

// buildPattern renders segments into a regexp source string and
// collects variable names in order.
func buildPattern(segments []Segment) (string, []string) {
	parts := make([]string, 0, len(segments))
	var names []string

	for _, seg := range segments {
		if seg.Kind == KindStatic {
			parts = append(parts, regexp.QuoteMeta(seg.Name))
			continue
		}
		parts = append(parts, "(?P<"+seg.Name+">"+seg.class()+")")
		names = append(names, seg.Name)
	}

	return "^" + strings.Join(parts, "/") + "$", names
}

// Match tests a request path against the compiled pattern and
// extracts captured variables. The path's leading slash is stripped
// before matching since patterns are built without one.
func (r *CompiledRoute) Match(path string) (map[string]string, bool) {
	matches := r.matcher.FindStringSubmatch(strings.TrimPrefix(path, "/"))
	if matches == nil {
		return nil, false
	}

	vars := make(map[string]string, len(r.VariableNames))
	for i, name := range r.matcher.SubexpNames() {
		if i > 0 && name != "" && i < len(matches) {
			vars[name] = matches[i]
		}
	}

	return vars, true
}

// Pattern returns the compiled regexp source.
func (r *CompiledRoute) Pattern() string {
	return r.matcher.String()
}
