package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"dailylog-bot/internal/apperr"
	"dailylog-bot/internal/blob"
	"dailylog-bot/internal/scratch"
)

// flakyStore fails uploads on demand and counts them.
type flakyStore struct {
	blob.Store
	failUpload bool
	uploads    int
}

func (f *flakyStore) Upload(ctx context.Context, name, src string) error {
	if f.failUpload {
		return apperr.Remote("upload", errors.New("connection reset"))
	}
	f.uploads++
	return f.Store.Upload(ctx, name, src)
}

func newTestStore(t *testing.T) (*Store, *flakyStore, string, string) {
	t.Helper()
	remote := filepath.Join(t.TempDir(), "remote")
	dir, err := blob.NewDirStore(remote)
	if err != nil {
		t.Fatalf("dir store: %v", err)
	}
	scratchDir := filepath.Join(t.TempDir(), "scratch")
	sm, err := scratch.New(scratchDir, zerolog.Nop())
	if err != nil {
		t.Fatalf("scratch: %v", err)
	}
	fs := &flakyStore{Store: dir}
	return New(fs, sm, zerolog.Nop()), fs, remote, scratchDir
}

var day = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestDailyKey(t *testing.T) {
	if got := DailyKey(day); got != "data_2026-03-14.xlsx" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestAppend_ScenarioSingleRecord(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t)
	key := DailyKey(day)

	n, err := s.Append(ctx, key, Fields{"101", "1234567890", "Acme LLC", "paper"}, "alice", day)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 1 {
		t.Fatalf("want row count 1, got %d", n)
	}
	lines, err := s.List(ctx, key)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"1. 101 | 1234567890 | Acme LLC | paper"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("want %v, got %v", want, lines)
	}
}

func TestAppend_NRecordsInOrder(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t)
	key := DailyKey(day)

	const total = 5
	for i := 1; i <= total; i++ {
		n, err := s.Append(ctx, key, Fields{fmt.Sprint(i), "inn", "name", "el"}, "bob", day)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if n != i {
			t.Fatalf("append %d returned count %d", i, n)
		}
	}
	lines, err := s.List(ctx, key)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != total {
		t.Fatalf("want %d lines, got %d", total, len(lines))
	}
	for i, l := range lines {
		if want := fmt.Sprintf("%d. %d | inn | name | el", i+1, i+1); l != want {
			t.Fatalf("line %d: want %q, got %q", i, want, l)
		}
	}
}

func TestAppend_WritesFullRowInColumnOrder(t *testing.T) {
	ctx := context.Background()
	s, _, remote, _ := newTestStore(t)
	key := DailyKey(day)
	if _, err := s.Append(ctx, key, Fields{"101", "1234567890", "Acme LLC", "paper"}, "alice", day); err != nil {
		t.Fatalf("append: %v", err)
	}

	f, err := excelize.OpenFile(filepath.Join(remote, key))
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if !reflect.DeepEqual(rows[0], Header) {
		t.Fatalf("header mismatch: %v", rows[0])
	}
	want := []string{"2026-03-14 09:30:00", "101", "1234567890", "Acme LLC", "paper", "alice"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Fatalf("row mismatch: %v", rows[1])
	}
}

func TestDeleteAt_ShiftsAndRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t)
	key := DailyKey(day)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := s.Append(ctx, key, Fields{name, "1", "2", "3"}, "u", day); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if err := s.DeleteAt(ctx, key, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	lines, _ := s.List(ctx, key)
	want := []string{"1. a | 1 | 2 | 3", "2. c | 1 | 2 | 3"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("want %v, got %v", want, lines)
	}

	if err := s.DeleteAt(ctx, key, 3); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	if err := s.DeleteAt(ctx, key, 2); err != nil {
		t.Fatalf("delete last: %v", err)
	}
	if err := s.DeleteAt(ctx, key, 2); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("repeat delete: want validation error, got %v", err)
	}
	if err := s.DeleteAt(ctx, key, 0); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("position 0: want validation error, got %v", err)
	}
	lines, _ = s.List(ctx, key)
	if len(lines) != 1 || lines[0] != "1. a | 1 | 2 | 3" {
		t.Fatalf("header or data damaged: %v", lines)
	}
}

func TestReset_EmptiesLog(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestStore(t)
	key := DailyKey(day)
	for i := 0; i < 3; i++ {
		if _, err := s.Append(ctx, key, Fields{"1", "2", "3", "4"}, "u", day); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Reset(ctx, key); err != nil {
		t.Fatalf("reset: %v", err)
	}
	lines, err := s.List(ctx, key)
	if err != nil || len(lines) != 0 {
		t.Fatalf("want empty list, got %v %v", lines, err)
	}
	n, err := s.Append(ctx, key, Fields{"1", "2", "3", "4"}, "u", day)
	if err != nil || n != 1 {
		t.Fatalf("append after reset: %d %v", n, err)
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, fs, _, _ := newTestStore(t)
	key := DailyKey(day)
	if err := s.Ensure(ctx, key); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if _, err := s.Append(ctx, key, Fields{"1", "2", "3", "4"}, "u", day); err != nil {
		t.Fatalf("append: %v", err)
	}
	uploads := fs.uploads
	if err := s.Ensure(ctx, key); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if fs.uploads != uploads {
		t.Fatalf("ensure re-uploaded an existing log")
	}
	n, err := s.Count(ctx, key)
	if err != nil || n != 1 {
		t.Fatalf("data lost by ensure: %d %v", n, err)
	}
}

func TestListAndCount_MissingLogIsEmpty(t *testing.T) {
	ctx := context.Background()
	s, _, remote, _ := newTestStore(t)
	key := DailyKey(day)
	lines, err := s.List(ctx, key)
	if err != nil || len(lines) != 0 {
		t.Fatalf("list missing: %v %v", lines, err)
	}
	n, err := s.Count(ctx, key)
	if err != nil || n != 0 {
		t.Fatalf("count missing: %d %v", n, err)
	}
	if _, err := os.Stat(filepath.Join(remote, key)); !os.IsNotExist(err) {
		t.Fatalf("read operations created the log")
	}
}

func TestAppend_FailedUploadLeavesRemoteUnchanged(t *testing.T) {
	ctx := context.Background()
	s, fs, _, scratchDir := newTestStore(t)
	key := DailyKey(day)
	if _, err := s.Append(ctx, key, Fields{"1", "2", "3", "4"}, "u", day); err != nil {
		t.Fatalf("append: %v", err)
	}

	fs.failUpload = true
	if _, err := s.Append(ctx, key, Fields{"5", "6", "7", "8"}, "u", day); !errors.Is(err, apperr.ErrRemoteUnavailable) {
		t.Fatalf("want remote unavailable, got %v", err)
	}
	fs.failUpload = false

	n, err := s.Count(ctx, key)
	if err != nil || n != 1 {
		t.Fatalf("remote changed by failed append: %d %v", n, err)
	}
	entries, _ := os.ReadDir(scratchDir)
	if len(entries) != 0 {
		t.Fatalf("scratch files left behind: %d", len(entries))
	}
}

func TestListArchiveAndFetch(t *testing.T) {
	ctx := context.Background()
	s, _, remote, _ := newTestStore(t)
	if err := os.WriteFile(filepath.Join(remote, "allowlist.json"), []byte("[]"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, d := range []time.Time{day.AddDate(0, 0, 1), day} {
		if err := s.Ensure(ctx, DailyKey(d)); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	names, err := s.ListArchive(ctx)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	want := []string{"data_2026-03-14.xlsx", "data_2026-03-15.xlsx"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("want %v, got %v", want, names)
	}

	f, err := s.Fetch(ctx, names[0])
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if f.Name != names[0] || len(f.Data) == 0 {
		t.Fatalf("unexpected file %s (%d bytes)", f.Name, len(f.Data))
	}
	if _, err := s.Fetch(ctx, "data_1999-01-01.xlsx"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("fetch missing: want validation error, got %v", err)
	}
}
