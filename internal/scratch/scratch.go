// Package scratch hands out local paths for short-lived copies of remote
// files. The remote store stays authoritative: a local copy never outlives
// the operation that acquired it.
package scratch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Manager struct {
	dir string
	log zerolog.Logger
}

func New(dir string, log zerolog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure scratch dir: %w", err)
	}
	return &Manager{dir: dir, log: log}, nil
}

// PathFor returns the deterministic scratch path of a logical file name.
func (m *Manager) PathFor(name string) string {
	return filepath.Join(m.dir, filepath.Base(name))
}

// Lease is a scratch path owned by one operation.
type Lease struct {
	Path string
	m    *Manager
}

// Acquire returns a path unique to this call, so two operations on the same
// file name never share a local copy. Callers must defer Release.
func (m *Manager) Acquire(name string) *Lease {
	return &Lease{
		Path: m.PathFor(uuid.NewString() + "_" + filepath.Base(name)),
		m:    m,
	}
}

func (l *Lease) Release() {
	l.m.Release(l.Path)
}

// Release removes the given paths. Failures are logged and swallowed.
func (m *Manager) Release(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			m.log.Debug().Err(err).Str("path", p).Msg("scratch release failed")
		}
	}
}
