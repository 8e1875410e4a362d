// Package route provides the route definition model and path
// matching engine for the request router.
//
// This package implements segment-based route patterns with typed
// variable capture, compiled once into anchored regular expressions,
// and an immutable per-stage index with deterministic first-match
// semantics.
//
// # Features
//
//   - Static and variable path segments with typed character classes
//   - Variable capture via named regexp groups
//   - Definition validation at write/compile time, never per request
//   - Immutable Index safe for unbounded concurrent matching
//   - Path-miss and method-mismatch classification for 404/405 mapping
//
// # Usage
//
// Build an index for one project and stage, then match requests:
//
//	idx, err := route.NewIndex("myproject", "prod", defs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m, err := idx.Match("GET", "/users/42")
//	if err == nil {
//	    // Route matched, use m.Route and m.Variables
//	}
package route
