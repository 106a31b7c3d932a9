// Package tempfile tracks files written to local disk while a single request
// is in flight and removes them when the request is done with them.
package tempfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// Scope owns a set of request-local files. The zero value is not usable; call New.
type Scope struct {
	mu      sync.Mutex
	logger  *slog.Logger
	paths   []string
	removed map[string]bool
}

// New returns an empty scope. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scope{logger: logger, removed: make(map[string]bool)}
}

// Track registers path for removal. Empty and duplicate paths are ignored.
func (s *Scope) Track(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.paths {
		if p == path {
			return
		}
	}
	s.paths = append(s.paths, path)
}

// Paths returns the tracked files that have not been removed yet.
func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		if !s.removed[p] {
			out = append(out, p)
		}
	}
	return out
}

// Release removes every tracked file once. Files that are already gone count as
// removed; other failures are logged, joined and returned, and retried on the
// next call.
func (s *Scope) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, p := range s.paths {
		if s.removed[p] {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("temp file cleanup failed", "path", p, "err", err)
			errs = append(errs, fmt.Errorf("remove %q: %w", p, err))
			continue
		}
		s.removed[p] = true
	}
	return errors.Join(errs...)
}
