// Package records keeps the day-keyed spreadsheet logs. Every operation is
// one fetch-mutate-upload cycle against the remote store through a private
// scratch copy. There is no revision check on upload: two writers racing on
// the same day overwrite each other and the last upload wins.
package records

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dailylog-bot/internal/apperr"
	"dailylog-bot/internal/blob"
	"dailylog-bot/internal/metrics"
	"dailylog-bot/internal/scratch"
)

const (
	Ext        = ".xlsx"
	TimeLayout = "2006-01-02 15:04:05"
	keyLayout  = "2006-01-02"
	keyPrefix  = "data_"
)

// Fields are the four free-text columns of a record, in column order:
// business unit, tax id, name, medium.
type Fields [4]string

// File is the content of a remote object handed to the transport.
type File struct {
	Name string
	Data []byte
}

// DailyKey names the log of the calendar day of t in t's location.
func DailyKey(t time.Time) string {
	return keyPrefix + t.Format(keyLayout) + Ext
}

type Store struct {
	blobs   blob.Store
	scratch *scratch.Manager
	log     zerolog.Logger
}

func New(blobs blob.Store, sm *scratch.Manager, log zerolog.Logger) *Store {
	return &Store{blobs: blobs, scratch: sm, log: log}
}

// Ensure uploads a header-only log for key if none exists remotely.
func (s *Store) Ensure(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { metrics.ObserveStore("ensure", start, err) }(time.Now())

	ok, err := s.blobs.Exists(ctx, key)
	if err != nil || ok {
		return err
	}
	if err := s.writeFresh(ctx, key); err != nil {
		return err
	}
	s.log.Info().Str("key", key).Msg("daily log created")
	return nil
}

// Append adds one record as the last row and returns the data-row count of
// the uploaded file.
func (s *Store) Append(ctx context.Context, key string, fields Fields, actor string, ts time.Time) (n int, err error) {
	defer func(start time.Time) { metrics.ObserveStore("append", start, err) }(time.Now())

	row := make([]string, 0, len(Header))
	row = append(row, ts.Format(TimeLayout))
	row = append(row, fields[:]...)
	row = append(row, actor)

	n, err = s.update(ctx, key, func(wb *workbook) error {
		return wb.appendRow(row)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("key", key).Str("actor", actor).Int("rows", n).Msg("record appended")
	return n, nil
}

// List returns one "N. f1 | f2 | f3 | f4" line per data row. A missing log
// lists as empty.
func (s *Store) List(ctx context.Context, key string) (lines []string, err error) {
	defer func(start time.Time) { metrics.ObserveStore("list", start, err) }(time.Now())

	err = s.read(ctx, key, func(wb *workbook) {
		lines = wb.summaries()
	})
	return lines, err
}

// Count returns the number of data rows without creating a missing log.
func (s *Store) Count(ctx context.Context, key string) (n int, err error) {
	defer func(start time.Time) { metrics.ObserveStore("count", start, err) }(time.Now())

	err = s.read(ctx, key, func(wb *workbook) {
		n = wb.count()
	})
	return n, err
}

// DeleteAt removes the data row at 1-based position. Rows after it move up.
func (s *Store) DeleteAt(ctx context.Context, key string, position int) (err error) {
	defer func(start time.Time) { metrics.ObserveStore("delete", start, err) }(time.Now())

	_, err = s.update(ctx, key, func(wb *workbook) error {
		if position < 1 || position > wb.count() {
			return apperr.Validation("row %d out of range 1..%d", position, wb.count())
		}
		return wb.deleteRow(position)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("key", key).Int("position", position).Msg("record deleted")
	return nil
}

// Reset replaces the log with a header-only one. Data rows are lost.
func (s *Store) Reset(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { metrics.ObserveStore("reset", start, err) }(time.Now())

	if err := s.writeFresh(ctx, key); err != nil {
		return err
	}
	s.log.Warn().Str("key", key).Msg("daily log reset")
	return nil
}

// ListArchive returns the names of all daily logs in the remote folder.
func (s *Store) ListArchive(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { metrics.ObserveStore("list_archive", start, err) }(time.Now())

	all, err := s.blobs.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range all {
		if strings.HasSuffix(strings.ToLower(n), Ext) {
			names = append(names, n)
		}
	}
	return names, nil
}

// Fetch returns the raw content of a remote log.
func (s *Store) Fetch(ctx context.Context, key string) (file File, err error) {
	defer func(start time.Time) { metrics.ObserveStore("fetch", start, err) }(time.Now())

	lease := s.scratch.Acquire(key)
	defer lease.Release()

	ok, err := s.blobs.Download(ctx, key, lease.Path)
	if err != nil {
		return File{}, err
	}
	if !ok {
		return File{}, apperr.Validation("file %s not found", key)
	}
	data, err := os.ReadFile(lease.Path)
	if err != nil {
		return File{}, fmt.Errorf("read local copy: %w", err)
	}
	return File{Name: key, Data: data}, nil
}

// update runs one fetch-mutate-upload cycle, creating the log if it is
// missing. Nothing is uploaded unless fn and the local save both succeed.
func (s *Store) update(ctx context.Context, key string, fn func(wb *workbook) error) (int, error) {
	lease := s.scratch.Acquire(key)
	defer lease.Release()

	ok, err := s.blobs.Download(ctx, key, lease.Path)
	if err != nil {
		return 0, err
	}
	var wb *workbook
	if ok {
		wb, err = openWorkbook(lease.Path)
	} else {
		wb, err = newWorkbook()
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	defer wb.close()

	if err := fn(wb); err != nil {
		return 0, err
	}
	if err := wb.save(lease.Path); err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if err := s.blobs.Upload(ctx, key, lease.Path); err != nil {
		return 0, err
	}
	return wb.count(), nil
}

// read downloads key and calls fn; fn is not called when the log is missing.
func (s *Store) read(ctx context.Context, key string, fn func(wb *workbook)) error {
	lease := s.scratch.Acquire(key)
	defer lease.Release()

	ok, err := s.blobs.Download(ctx, key, lease.Path)
	if err != nil || !ok {
		return err
	}
	wb, err := openWorkbook(lease.Path)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	defer wb.close()
	fn(wb)
	return nil
}

func (s *Store) writeFresh(ctx context.Context, key string) error {
	lease := s.scratch.Acquire(key)
	defer lease.Release()

	wb, err := newWorkbook()
	if err != nil {
		return err
	}
	defer wb.close()
	if err := wb.save(lease.Path); err != nil {
		return err
	}
	return s.blobs.Upload(ctx, key, lease.Path)
}
