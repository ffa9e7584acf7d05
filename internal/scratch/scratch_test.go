package scratch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestPathFor_Deterministic(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if m.PathFor("a.xlsx") != m.PathFor("a.xlsx") {
		t.Fatalf("path not stable")
	}
	if got := m.PathFor("../../etc/a.xlsx"); got != filepath.Join(dir, "a.xlsx") {
		t.Fatalf("path escaped scratch dir: %s", got)
	}
}

func TestAcquire_UniqueAndReleased(t *testing.T) {
	m, err := New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	l1 := m.Acquire("data.xlsx")
	l2 := m.Acquire("data.xlsx")
	if l1.Path == l2.Path {
		t.Fatalf("leases collide: %s", l1.Path)
	}
	if err := os.WriteFile(l1.Path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	l1.Release()
	if _, err := os.Stat(l1.Path); !os.IsNotExist(err) {
		t.Fatalf("lease not released: %v", err)
	}
	// releasing a path that was never written is fine
	l2.Release()
}
