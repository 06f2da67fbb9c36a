package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Header is the fixed column set of the attendance file.
var Header = []string{"Name", "Time", "Date"}

// Record is one attendance check-in loaded from the file.
type Record struct {
	Name string `json:"name"`
	Time string `json:"time"`
	Date string `json:"date"`
}

// Store loads attendance records from a CSV file with a short-lived cache.
// Concurrent callers within the TTL window share one loaded slice.
type Store struct {
	path string
	ttl  time.Duration

	mu       sync.Mutex
	records  []Record
	loadedAt time.Time
	now      func() time.Time
}

// New creates a store reading from path, re-reading after ttl elapses.
func New(path string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Store{path: path, ttl: ttl, now: time.Now}
}

// Load returns the attendance records, served from cache inside the TTL
// window. A missing file is created with the header and yields an empty
// slice. A corrupt file yields an empty slice plus the error so the caller
// can surface a warning; the process keeps running either way.
func (s *Store) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loadedAt.IsZero() && s.now().Sub(s.loadedAt) < s.ttl {
		return s.records, nil
	}

	recs, err := s.read()
	s.records = recs
	s.loadedAt = s.now()
	return recs, err
}

// Invalidate drops the cache so the next Load re-reads the file.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.loadedAt = time.Time{}
	s.mu.Unlock()
}

// Reload forces a fresh read regardless of TTL.
func (s *Store) Reload() ([]Record, error) {
	s.Invalidate()
	return s.Load()
}

func (s *Store) read() ([]Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if cerr := s.createEmpty(); cerr != nil {
			return []Record{}, fmt.Errorf("create %s: %w", s.path, cerr)
		}
		return []Record{}, nil
	}
	if err != nil {
		return []Record{}, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	recs, err := ReadCSV(f)
	if err != nil {
		return []Record{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return recs, nil
}

func (s *Store) createEmpty() error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	_ = w.Write(Header)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV parses attendance rows from r. The first row is treated as the
// header and skipped. Fields are whitespace-trimmed; rows that are short or
// have any empty field after trimming are dropped.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	recs := make([]Record, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) < 3 {
			continue
		}
		rec := Record{
			Name: strings.TrimSpace(row[0]),
			Time: strings.TrimSpace(row[1]),
			Date: strings.TrimSpace(row[2]),
		}
		if rec.Name == "" || rec.Time == "" || rec.Date == "" {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// WriteCSV serializes records in the attendance file format, header first.
func WriteCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := cw.Write([]string{rec.Name, rec.Time, rec.Date}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename builds the download filename for an export taken at t.
func ExportFilename(t time.Time) string {
	return "attendance_" + t.Format("20060102_150405") + ".csv"
}
