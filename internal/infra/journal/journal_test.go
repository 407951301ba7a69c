package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CalculusMatrix/internal/events"
)

func TestWriter_RoundTrip(t *testing.T) {
	// Setup
	dir := t.TempDir()
	w := NewWriter(dir, "main")

	// Act
	require.NoError(t, w.Append(events.GameEvent{ID: "1", Type: events.EventTypePublished, Payload: map[string]float64{"total_accumulated": 12.5}, SimTime: 3}))
	require.NoError(t, w.Append(events.GameEvent{ID: "2", Type: events.EventTypeRestart, SimTime: 4}))
	require.NoError(t, w.Close())

	// Assert
	got, err := ReadAll(dir, "main")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, events.EventTypeRestart, got[1].Type)
	assert.Equal(t, map[string]interface{}{"total_accumulated": 12.5}, got[0].Payload)
}

func TestWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w := NewWriter(dir, "main")
	w.now = func() time.Time { return clock }

	require.NoError(t, w.Append(events.GameEvent{ID: "a"}))
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, w.Append(events.GameEvent{ID: "b"}))
	require.NoError(t, w.Close())

	files, err := Files(dir, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "main-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "main-2026-03-01-11.jsonl.zst"),
	}, files)

	got, err := ReadAll(dir, "main")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestWriter_ReopenAppendsToSameHour(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"first", "second"} {
		w := NewWriter(dir, "main")
		w.now = func() time.Time { return clock }
		require.NoError(t, w.Append(events.GameEvent{ID: id}))
		require.NoError(t, w.Close())
	}

	got, err := ReadAll(dir, "main")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[1].ID)
}

func TestFiles_IgnoresOtherPrefixes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"main-2026-01-01-00.jsonl.zst", "alt-2026-01-01-00.jsonl.zst", "main-notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := Files(dir, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "main-2026-01-01-00.jsonl.zst")}, files)

	_, err = Files(filepath.Join(dir, "missing"), "main")
	assert.Error(t, err)
}
