package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadTrimsAndDropsIncompleteRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Attendance.csv")
	writeFile(t, path, "Name,Time,Date\n"+
		"  Alice  , 08:01:02 , 01-March-2026 \n"+
		",08:02:00,01-March-2026\n"+
		"Bob,   ,01-March-2026\n"+
		"Carol,08:03:00,\n"+
		"Dave,08:04:00,01-March-2026\n"+
		"ShortRow,08:05:00\n")

	recs, err := New(path, time.Second).Load()
	require.NoError(t, err)

	require.Len(t, recs, 2)
	assert.Equal(t, Record{Name: "Alice", Time: "08:01:02", Date: "01-March-2026"}, recs[0])
	assert.Equal(t, Record{Name: "Dave", Time: "08:04:00", Date: "01-March-2026"}, recs[1])
}

func TestLoadCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Attendance.csv")

	recs, err := New(path, time.Second).Load()
	require.NoError(t, err)
	assert.Empty(t, recs)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Name,Time,Date\n", string(content))
}

func TestLoadCorruptFileReturnsEmptyWithError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Attendance.csv")
	writeFile(t, path, "Name,Time,Date\n\"unterminated,08:00:00,01-March-2026\n")

	recs, err := New(path, time.Second).Load()
	assert.Error(t, err)
	assert.Empty(t, recs)
}

func TestLoadCachesWithinTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Attendance.csv")
	writeFile(t, path, "Name,Time,Date\nAlice,08:00:00,01-March-2026\n")

	s := New(path, 5*time.Second)
	now := time.Now()
	s.now = func() time.Time { return now }

	recs, err := s.Load()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// New row appears in the file but the TTL window hides it.
	writeFile(t, path, "Name,Time,Date\nAlice,08:00:00,01-March-2026\nBob,08:01:00,01-March-2026\n")

	recs, err = s.Load()
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	now = now.Add(6 * time.Second)
	recs, err = s.Load()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestInvalidateForcesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Attendance.csv")
	writeFile(t, path, "Name,Time,Date\nAlice,08:00:00,01-March-2026\n")

	s := New(path, time.Hour)
	recs, err := s.Load()
	require.NoError(t, err)
	require.Len(t, recs, 1)

	writeFile(t, path, "Name,Time,Date\nAlice,08:00:00,01-March-2026\nBob,08:01:00,01-March-2026\n")
	s.Invalidate()

	recs, err = s.Load()
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	recs := []Record{
		{Name: "Alice", Time: "08:00:00", Date: "01-March-2026"},
		{Name: "Bob", Time: "08:01:00", Date: "02-March-2026"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, recs))
	assert.True(t, strings.HasPrefix(buf.String(), "Name,Time,Date\n"))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, recs, got)
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2026, 3, 7, 14, 30, 5, 0, time.UTC)
	assert.Equal(t, "attendance_20260307_143005.csv", ExportFilename(at))
}
