package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CalculusMatrix/internal/domain/rules"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/metrics"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "nested", "theory.db"), 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func publishedRecord(id string, n int, total, pLast, simTime float64) EventRecord {
	return EventRecord{
		ID:        id,
		RunID:     "main",
		Timestamp: time.Now(),
		EventType: string(events.EventTypePublished),
		ActorID:   "ENGINE",
		SimTime:   simTime,
		Payload: map[string]interface{}{
			"reward":            map[string]interface{}{"total": total},
			"total_accumulated": total,
			"p_last":            pLast,
			"publication":       float64(n),
			"milestone_count":   0.0,
		},
	}
}

func TestSQLiteEventRepository(t *testing.T) {
	// Setup
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	ts := time.Now()

	// Act
	require.NoError(t, repo.Append(ctx, publishedRecord("e1", 1, 10, 1.2, 5)))
	require.NoError(t, repo.Append(ctx, EventRecord{ID: "e2", RunID: "main", Timestamp: ts, EventType: string(events.EventTypeRestart), ActorID: "ENGINE", SimTime: 9}))
	require.NoError(t, repo.Append(ctx, publishedRecord("e3", 1, 3, 1.1, 2)))
	repo.Append(ctx, EventRecord{ID: "other", RunID: "alt", Timestamp: ts, EventType: "RESTART"})

	// Assert
	all, err := repo.GetByRunID(ctx, "main")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, []string{all[0].ID, all[1].ID, all[2].ID}, "insertion order, not sim time")
	assert.Equal(t, 10.0, all[0].Payload["total_accumulated"])
	assert.Nil(t, all[1].Payload)
	assert.WithinDuration(t, ts, all[1].Timestamp, time.Millisecond)

	published, err := repo.GetByEventType(ctx, "main", string(events.EventTypePublished))
	require.NoError(t, err)
	assert.Len(t, published, 2)

	since, err := repo.GetSince(ctx, "main", 5)
	require.NoError(t, err)
	assert.Len(t, since, 2)

	assert.Error(t, repo.Append(ctx, publishedRecord("e1", 9, 9, 9, 9)), "ids are unique")
}

func TestSQLiteSaveRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteSaveRepository(openTestDB(t))

	_, err := repo.Get(ctx, "main")
	assert.True(t, errors.Is(err, ErrNotFound))

	save := SaveRecord{
		Slot:          "main",
		Variant:       "calculus",
		InternalState: "12.5 3e+10",
		Snapshot:      []byte(`{"variant":"calculus"}`),
		Levels:        map[string]int{"c1": 3, "decay": 1},
	}
	require.NoError(t, repo.Upsert(ctx, save))

	got, err := repo.Get(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, save.InternalState, got.InternalState)
	assert.JSONEq(t, string(save.Snapshot), string(got.Snapshot))
	assert.Equal(t, save.Levels, got.Levels)
	assert.False(t, got.SavedAt.IsZero())

	save.InternalState = "20 0"
	require.NoError(t, repo.Upsert(ctx, save))
	require.NoError(t, repo.Upsert(ctx, SaveRecord{Slot: "alt", Variant: "matrix", InternalState: "0 0", Snapshot: []byte("{}"), Levels: map[string]int{}}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err = repo.Get(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "20 0", got.InternalState)

	require.NoError(t, repo.Delete(ctx, "main"))
	_, err = repo.Get(ctx, "main")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEventPersister_WritesThrough(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	m := metrics.New()
	el := events.NewEventLog(NewEventPersister(repo, "main", m))

	el.Append(events.GameEvent{
		Type:    events.EventTypeUpgradeApplied,
		ActorID: "ENGINE",
		Payload: struct {
			ID    string `json:"id"`
			Level int    `json:"level"`
		}{"c1", 2},
		SimTime: 4,
	})

	recs, err := repo.GetByRunID(ctx, "main")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c1", recs[0].Payload["id"])
	assert.Equal(t, 2.0, recs[0].Payload["level"])
	assert.Equal(t, int64(1), m.EventsWritten)
	assert.Zero(t, m.EventWriteErrors)
}

func TestToRecord_NonObjectPayload(t *testing.T) {
	rec, err := ToRecord("main", events.GameEvent{ID: "x", Type: events.EventTypeRestart, Payload: []int{1, 2}})
	require.NoError(t, err)
	assert.Contains(t, rec.Payload, "value")

	rec, err = ToRecord("main", events.GameEvent{ID: "y"})
	require.NoError(t, err)
	assert.Nil(t, rec.Payload)
}

func TestRebuild_IsMonotone(t *testing.T) {
	records := []EventRecord{
		publishedRecord("a", 1, 10, 1.5, 10),
		{EventType: string(events.EventTypeMilestoneFired), Payload: map[string]interface{}{"index": 2.0}, SimTime: 11},
		{EventType: string(events.EventTypeUpgradeApplied), Payload: map[string]interface{}{"id": "c1", "level": 3.0}},
		{EventType: string(events.EventTypeUpgradeApplied), Payload: map[string]interface{}{"id": "c1", "level": 1.0}},
		publishedRecord("b", 2, 25, 1.4, 30),
		publishedRecord("a-dup", 1, 10, 1.5, 12),
		{EventType: string(events.EventTypePenaltyApplied)},
		{EventType: string(events.EventTypeRestart)},
	}

	got := Rebuild(records)

	assert.Equal(t, 25.0, got.TotalAccumulated)
	assert.Equal(t, 1.5, got.PLast)
	assert.Equal(t, 2, got.Publications)
	assert.Equal(t, 2, got.MilestoneCount)
	assert.Equal(t, map[string]int{"c1": 3}, got.Levels)
	assert.True(t, got.PenaltyApplied)
	assert.Equal(t, 1, got.Restarts)
	assert.Equal(t, 30.0, got.LastSimTime)
	assert.Equal(t, []string{"c1"}, got.SortedLevels())

	assert.Equal(t, rules.PublicationState{P: 1, PLast: 1.5, TotalAccumulated: 25, Count: 2}, got.Publication())
}

func TestRebuild_Empty(t *testing.T) {
	got := Rebuild(nil)
	assert.Equal(t, rules.NewPublicationState(), got.Publication())
	assert.Empty(t, got.Levels)
}

func TestReconstructor(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteEventRepository(openTestDB(t))
	require.NoError(t, repo.Append(ctx, publishedRecord("p1", 1, 1234.5, 1.3, 10)))
	require.NoError(t, repo.Append(ctx, EventRecord{ID: "m1", RunID: "main", Timestamp: time.Now(), EventType: string(events.EventTypeMilestoneFired), Payload: map[string]interface{}{"index": 1.0, "kind": "product"}, SimTime: 20}))

	r := NewReconstructor(repo)
	state, err := r.RebuildRun(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, state.TotalAccumulated)
	assert.Equal(t, 1, state.MilestoneCount)

	recap, err := r.GenerateRecap(ctx, "main", 15)
	require.NoError(t, err)
	require.Len(t, recap, 1)
	assert.Equal(t, "milestone 1 unlocked (product)", recap[0].Summary)
	assert.Equal(t, "POSITIVE", recap[0].Impact)
}

func TestRecap_Summaries(t *testing.T) {
	recap := Recap([]EventRecord{
		publishedRecord("p", 2, 1234.5, 1.3, 1),
		{EventType: string(events.EventTypeUpgradeApplied), Payload: map[string]interface{}{"id": "c1", "level": 3.0}},
		{EventType: string(events.EventTypePenaltyApplied)},
		{EventType: string(events.EventTypeStateRestored)},
	})

	require.Len(t, recap, 4)
	assert.Equal(t, "2nd publication paid 1,234.50 tau", recap[0].Summary)
	assert.Equal(t, "upgrade c1 reached level 3", recap[1].Summary)
	assert.Equal(t, "NEGATIVE", recap[2].Impact)
	assert.Equal(t, "NEUTRAL", recap[3].Impact)
}
