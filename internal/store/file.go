package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/route"
	"github.com/polyroute/polyroute/internal/util"
)

// FileStore stores route definitions in a single YAML document
// mapping project id to an ordered list of definitions. It serves
// self-hosted deployments where routes live in version control.
// Within a project the file order is the match precedence order.
//
// Mutations rewrite the document atomically. An optional watcher
// reloads the file on external change and reports changed projects
// through the OnChange hook.
type FileStore struct {
	path          string
	logger        observability.Logger
	debounceDelay time.Duration
	onChange      func(projectID string)

	mu       sync.RWMutex
	projects map[string][]route.RouteDefinition

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	stoppedCh chan struct{}
	running   bool
}

// FileStoreOption is a functional option for configuring the store.
type FileStoreOption func(*FileStore)

// WithLogger sets the logger for the file store.
func WithLogger(logger observability.Logger) FileStoreOption {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) FileStoreOption {
	return func(s *FileStore) {
		s.debounceDelay = delay
	}
}

// WithOnChange sets the hook fired with each project whose routes
// changed during a reload. The route cache's Invalidate goes here.
func WithOnChange(fn func(projectID string)) FileStoreOption {
	return func(s *FileStore) {
		s.onChange = fn
	}
}

// NewFileStore loads the route file and returns a store backed by
// it. The file must exist and parse, even if it holds no projects.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	s := &FileStore{
		path:          absPath,
		logger:        observability.NopLogger(),
		debounceDelay: 100 * time.Millisecond,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	projects, err := loadRouteFile(absPath)
	if err != nil {
		return nil, err
	}
	s.projects = projects

	s.logger.Info("file route store initialized",
		observability.String("path", absPath),
		observability.Int("projects", len(projects)))

	return s, nil
}

// loadRouteFile reads and parses the YAML route document.
func loadRouteFile(path string) (map[string][]route.RouteDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route file: %w", err)
	}

	projects := make(map[string][]route.RouteDefinition)
	if err := yaml.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("parse route file %s: %w", path, err)
	}

	for projectID, defs := range projects {
		for i := range defs {
			if err := defs[i].Validate(); err != nil {
				return nil, fmt.Errorf("project %s: %w", projectID, err)
			}
		}
	}

	return projects, nil
}

// ListRoutes returns the project's definitions in file order.
func (s *FileStore) ListRoutes(_ context.Context, projectID string) ([]route.RouteDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := s.projects[projectID]
	out := make([]route.RouteDefinition, len(defs))
	copy(out, defs)
	return out, nil
}

// GetRoute returns one route definition or util.ErrNotFound.
func (s *FileStore) GetRoute(_ context.Context, projectID, routeID string) (*route.RouteDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, def := range s.projects[projectID] {
		if def.ID == routeID {
			out := def
			return &out, nil
		}
	}
	return nil, fmt.Errorf("route %s of project %s: %w", routeID, projectID, util.ErrNotFound)
}

// PutRoute writes a whole route definition, replacing any existing
// one under the same id, and persists the document.
func (s *FileStore) PutRoute(_ context.Context, projectID string, def route.RouteDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs := s.projects[projectID]
	replaced := false
	for i := range defs {
		if defs[i].ID == def.ID {
			defs[i] = def
			replaced = true
			break
		}
	}
	if !replaced {
		defs = append(defs, def)
	}
	s.projects[projectID] = defs

	if err := s.save(); err != nil {
		return err
	}

	s.logger.Debug("route stored",
		observability.String("project_id", projectID),
		observability.String("route_id", def.ID))

	return nil
}

// DeleteRoute removes one route definition and persists the
// document. Deleting an absent route returns util.ErrNotFound.
func (s *FileStore) DeleteRoute(_ context.Context, projectID, routeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs := s.projects[projectID]
	idx := -1
	for i := range defs {
		if defs[i].ID == routeID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("route %s of project %s: %w", routeID, projectID, util.ErrNotFound)
	}

	defs = append(defs[:idx], defs[idx+1:]...)
	if len(defs) == 0 {
		delete(s.projects, projectID)
	} else {
		s.projects[projectID] = defs
	}

	if err := s.save(); err != nil {
		return err
	}

	s.logger.Debug("route deleted",
		observability.String("project_id", projectID),
		observability.String("route_id", routeID))

	return nil
}

// Ping verifies the backing file is still present and readable.
func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

// save writes the document to a temp file in the same directory and
// renames it into place. Must be called with mu held.
func (s *FileStore) save() error {
	data, err := yaml.Marshal(s.projects)
	if err != nil {
		return fmt.Errorf("encode route file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".routes-*.yaml")
	if err != nil {
		return fmt.Errorf("write route file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write route file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write route file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace route file: %w", err)
	}

	return nil
}

// snapshot returns a shallow copy of the project map for diffing.
// Must be called with mu held.
func (s *FileStore) snapshot() map[string][]route.RouteDefinition {
	out := make(map[string][]route.RouteDefinition, len(s.projects))
	for projectID, defs := range s.projects {
		out[projectID] = defs
	}
	return out
}

// changedProjects lists every project whose definitions differ
// between two snapshots, including projects present on only one
// side.
func changedProjects(before, after map[string][]route.RouteDefinition) []string {
	var changed []string

	for projectID, defs := range after {
		if !reflect.DeepEqual(before[projectID], defs) {
			changed = append(changed, projectID)
		}
	}
	for projectID := range before {
		if _, ok := after[projectID]; !ok {
			changed = append(changed, projectID)
		}
	}

	return changed
}
