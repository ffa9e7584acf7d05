package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"dailylog-bot/internal/apperr"
)

// DirStore keeps objects in a local directory. It backs local development
// and tests.
type DirStore struct {
	root string
	mu   sync.Mutex
}

func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}
	return &DirStore{root: root}, nil
}

func (s *DirStore) objectPath(name string) string {
	return filepath.Join(s.root, filepath.Base(name))
}

func (s *DirStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperr.Remote("exists", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := os.Stat(s.objectPath(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Remote("exists", err)
	}
	return st.Mode().IsRegular(), nil
}

func (s *DirStore) Download(ctx context.Context, name, dst string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperr.Remote("download", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src, err := os.Open(s.objectPath(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Remote("download", err)
	}
	defer src.Close()
	if err := copyTo(dst, src); err != nil {
		return false, apperr.Remote("download", err)
	}
	return true, nil
}

func (s *DirStore) Upload(ctx context.Context, name, src string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Remote("upload", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open local copy: %w", err)
	}
	defer in.Close()
	// write aside and rename so readers never see a half-written object
	tmp := s.objectPath(name) + ".upload"
	if err := copyTo(tmp, in); err != nil {
		return apperr.Remote("upload", err)
	}
	if err := os.Rename(tmp, s.objectPath(name)); err != nil {
		_ = os.Remove(tmp)
		return apperr.Remote("upload", err)
	}
	return nil
}

func (s *DirStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Remote("list", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, apperr.Remote("list", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) != ".upload" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// copyTo writes r to path, removing the partial file on failure.
func copyTo(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
