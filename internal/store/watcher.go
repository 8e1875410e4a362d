package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/polyroute/polyroute/internal/observability"
)

// Watch starts reloading the route file on change. Events are
// debounced so editors that write in several steps trigger a single
// reload. The watcher stops when ctx is cancelled or Close is
// called.
func (s *FileStore) Watch(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	// Watch the directory, not the file: rename-based saves replace
	// the inode the file watch would be bound to.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		s.mu.Unlock()
		return err
	}

	s.watcher = watcher
	s.running = true
	s.mu.Unlock()

	s.logger.Info("watching route file",
		observability.String("path", s.path))

	go s.watch(ctx)

	return nil
}

// Close stops the watcher if it is running.
func (s *FileStore) Close() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	watcher := s.watcher
	s.mu.Unlock()

	close(s.stopCh)
	<-s.stoppedCh

	return watcher.Close()
}

// watch is the main watch loop.
func (s *FileStore) watch(ctx context.Context) {
	defer close(s.stoppedCh)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("route file watcher stopped due to context cancellation")
			return

		case <-s.stopCh:
			s.logger.Info("route file watcher stopped")
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			debounceTimer, debounceCh = s.handleFileEvent(event, debounceTimer, debounceCh)

		case <-debounceCh:
			debounceCh = nil
			s.reload()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("route file watcher error",
				observability.Error(err))
		}
	}
}

// handleFileEvent processes a file system event and returns the
// updated debounce timer.
func (s *FileStore) handleFileEvent(
	event fsnotify.Event,
	debounceTimer *time.Timer,
	debounceCh <-chan time.Time,
) (timer *time.Timer, ch <-chan time.Time) {
	// Only process events for our route file
	if filepath.Clean(event.Name) != s.path {
		return debounceTimer, debounceCh
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return debounceTimer, debounceCh
	}

	s.logger.Debug("route file changed",
		observability.String("path", event.Name),
		observability.String("op", event.Op.String()))

	// Reset debounce timer
	if debounceTimer != nil {
		debounceTimer.Stop()
	}
	debounceTimer = time.NewTimer(s.debounceDelay)
	return debounceTimer, debounceTimer.C
}

// reload re-reads the route file and fires the OnChange hook for
// every project whose definitions changed. A file that fails to load
// keeps the previous state.
func (s *FileStore) reload() {
	projects, err := loadRouteFile(s.path)
	if err != nil {
		s.logger.Error("route file reload failed, keeping previous routes",
			observability.Error(err))
		return
	}

	s.mu.Lock()
	before := s.snapshot()
	s.projects = projects
	s.mu.Unlock()

	changed := changedProjects(before, projects)

	s.logger.Info("route file reloaded",
		observability.Int("projects", len(projects)),
		observability.Strings("changed", changed))

	if s.onChange == nil {
		return
	}
	for _, projectID := range changed {
		s.onChange(projectID)
	}
}
