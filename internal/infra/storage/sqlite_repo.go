package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event EventRecord) error {
	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, run_id, timestamp, event_type, actor_id, payload, sim_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.RunID, event.Timestamp, event.EventType, event.ActorID,
		string(payloadBytes), event.SimTime,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const selectEvents = `SELECT id, run_id, timestamp, event_type, actor_id, payload, sim_time FROM events`

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]EventRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EventRecord
	for rows.Next() {
		var e EventRecord
		var payloadStr string
		err := rows.Scan(&e.ID, &e.RunID, &e.Timestamp, &e.EventType, &e.ActorID, &payloadStr, &e.SimTime)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		records = append(records, e)
	}
	return records, rows.Err()
}

func (r *SQLiteEventRepository) GetByRunID(ctx context.Context, runID string) ([]EventRecord, error) {
	return r.getMany(ctx, selectEvents+` WHERE run_id = ? ORDER BY seq ASC`, runID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, runID string, eventType string) ([]EventRecord, error) {
	return r.getMany(ctx, selectEvents+` WHERE run_id = ? AND event_type = ? ORDER BY seq ASC`, runID, eventType)
}

func (r *SQLiteEventRepository) GetSince(ctx context.Context, runID string, simTime float64) ([]EventRecord, error) {
	return r.getMany(ctx, selectEvents+` WHERE run_id = ? AND sim_time >= ? ORDER BY seq ASC`, runID, simTime)
}

// ---------------------------------------------------------
// SQLiteSaveRepository
// ---------------------------------------------------------

type SQLiteSaveRepository struct {
	db *sql.DB
}

func NewSQLiteSaveRepository(db *sql.DB) *SQLiteSaveRepository {
	return &SQLiteSaveRepository{db: db}
}

func (r *SQLiteSaveRepository) Upsert(ctx context.Context, save SaveRecord) error {
	levels, err := json.Marshal(save.Levels)
	if err != nil {
		return fmt.Errorf("failed to marshal levels: %w", err)
	}
	if save.SavedAt.IsZero() {
		save.SavedAt = time.Now()
	}

	query := `
		INSERT INTO saves (slot, variant, internal_state, snapshot, levels, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			variant=excluded.variant,
			internal_state=excluded.internal_state,
			snapshot=excluded.snapshot,
			levels=excluded.levels,
			saved_at=excluded.saved_at
	`
	_, err = r.db.ExecContext(ctx, query,
		save.Slot, save.Variant, save.InternalState, string(save.Snapshot), string(levels), save.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert save %s: %w", save.Slot, err)
	}
	return nil
}

const selectSaves = `SELECT slot, variant, internal_state, snapshot, levels, saved_at FROM saves`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSave(row rowScanner) (*SaveRecord, error) {
	var s SaveRecord
	var snapshot, levels string
	if err := row.Scan(&s.Slot, &s.Variant, &s.InternalState, &snapshot, &levels, &s.SavedAt); err != nil {
		return nil, err
	}
	s.Snapshot = []byte(snapshot)
	if err := json.Unmarshal([]byte(levels), &s.Levels); err != nil {
		return nil, fmt.Errorf("save %s levels: %w", s.Slot, err)
	}
	return &s, nil
}

func (r *SQLiteSaveRepository) Get(ctx context.Context, slot string) (*SaveRecord, error) {
	s, err := scanSave(r.db.QueryRowContext(ctx, selectSaves+` WHERE slot = ?`, slot))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("save %s: %w", slot, ErrNotFound)
	}
	return s, err
}

func (r *SQLiteSaveRepository) List(ctx context.Context) ([]SaveRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectSaves+` ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var saves []SaveRecord
	for rows.Next() {
		s, err := scanSave(rows)
		if err != nil {
			return nil, err
		}
		saves = append(saves, *s)
	}
	return saves, rows.Err()
}

func (r *SQLiteSaveRepository) Delete(ctx context.Context, slot string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM saves WHERE slot = ?`, slot)
	return err
}

var (
	_ EventRepository = (*SQLiteEventRepository)(nil)
	_ SaveRepository  = (*SQLiteSaveRepository)(nil)
)
