package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileRecorder keeps one JSON-lines journal per calendar day under dir,
// named audit_YYYY-MM-DD.jsonl after the event timestamp's own date.
// The current day's file stays open between appends.
type FileRecorder struct {
	dir string

	mu      sync.Mutex
	day     string
	current *os.File
}

func NewFileRecorder(dir string) (*FileRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &FileRecorder{dir: dir}, nil
}

func dayName(t time.Time) string {
	return "audit_" + t.Format("2006-01-02") + ".jsonl"
}

func (r *FileRecorder) Append(event Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.fileFor(dayName(event.Timestamp))
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", r.day, err)
	}
	return nil
}

// fileFor rotates the open handle when the day changes. Callers hold mu.
func (r *FileRecorder) fileFor(name string) (*os.File, error) {
	if r.current != nil && r.day == name {
		return r.current, nil
	}
	if r.current != nil {
		_ = r.current.Close()
		r.current = nil
	}
	f, err := os.OpenFile(filepath.Join(r.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	r.current, r.day = f, name
	return f, nil
}

// LoadDay returns the events journaled for the date of day. Other days'
// files are not opened. Lines that fail to decode are skipped.
func (r *FileRecorder) LoadDay(day time.Time) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.Open(filepath.Join(r.dir, dayName(day)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var events []Event
	br := bufio.NewReader(f)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 1 {
			var ev Event
			if json.Unmarshal(line, &ev) == nil {
				events = append(events, ev)
			}
		}
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
	}
}

// Close releases the open journal file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current, r.day = nil, ""
	return err
}
