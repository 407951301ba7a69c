package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/engine"
	"github.com/MRamiBalles/CalculusMatrix/internal/events"
	"github.com/MRamiBalles/CalculusMatrix/internal/host"
	"github.com/MRamiBalles/CalculusMatrix/internal/infra/journal"
	"github.com/MRamiBalles/CalculusMatrix/internal/infra/storage"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/config"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/logger"
	"github.com/MRamiBalles/CalculusMatrix/internal/platform/metrics"
)

// app holds every wired dependency of one run.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	metrics *metrics.Collector

	db         *sql.DB
	saves      *storage.SQLiteSaveRepository
	eventsRepo *storage.SQLiteEventRepository
	journal    *journal.Writer

	eventLog *events.EventLog
	ledger   *host.Ledger
	engine   *engine.Engine
	session  *engine.Session
}

// newApp wires the engine. With persist, events are written through to
// SQLite and the zstd journal and the save slot is loaded.
func newApp(ctx context.Context, cfg config.Config, log *logger.Logger, persist bool) (*app, error) {
	v, err := cfg.Variant()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, metrics: metrics.Get()}

	var persister events.EventPersister
	if persist {
		log.Info("initializing sqlite database", zap.String("path", cfg.Storage.DBPath))
		a.db, err = storage.InitSQLite(cfg.Storage.DBPath, cfg.Runtime.DBMaxOpenConns)
		if err != nil {
			return nil, err
		}
		a.saves = storage.NewSQLiteSaveRepository(a.db)
		a.eventsRepo = storage.NewSQLiteEventRepository(a.db)
		a.journal = journal.NewWriter(cfg.Storage.JournalDir, cfg.Storage.SaveSlot)
		persister = events.Persisters(
			storage.NewEventPersister(a.eventsRepo, cfg.Storage.SaveSlot, a.metrics),
			a.journal,
		)
	}

	a.eventLog = events.NewEventLog(persister)
	a.eventLog.OnPersistError(func(err error) {
		log.Error("event persistence failed", zap.Error(err))
	})

	a.ledger = host.NewLedger(v.Upgrades)
	a.engine, err = engine.NewEngine(v, a.ledger, a.eventLog, log, engine.Options{
		ResetTimeOnPublish: cfg.Engine.ResetTimeOnPublish,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session = engine.NewSession(a.engine, a.ledger, a.metrics, log)

	if persist {
		if err := a.load(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// load restores the save slot, falling back to the event history when the
// slot is missing.
func (a *app) load(ctx context.Context) error {
	slot := a.cfg.Storage.SaveSlot
	rec, err := a.saves.Get(ctx, slot)
	if errors.Is(err, storage.ErrNotFound) {
		return a.rebuildFromEvents(ctx)
	}
	if err != nil {
		return err
	}
	if rec.Variant != a.engine.Variant().Name {
		a.log.Warn("save slot belongs to another variant, starting fresh",
			zap.String("slot", slot), zap.String("variant", rec.Variant))
		return nil
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(rec.Snapshot, &snap); err != nil {
		a.log.Warn("corrupt snapshot, using internal state only", zap.Error(err))
		return a.session.SetInternalState(rec.InternalState)
	}
	return a.session.Do(func(e *engine.Engine, l *host.Ledger) error {
		for id, lvl := range rec.Levels {
			l.SetLevel(id, lvl)
		}
		if err := e.Restore(snap); err != nil {
			return err
		}
		e.SyncUpgrades()
		a.log.Info("save slot restored", zap.String("slot", slot), zap.String("state", e.InternalState()))
		return nil
	})
}

func (a *app) rebuildFromEvents(ctx context.Context) error {
	rebuilt, err := storage.NewReconstructor(a.eventsRepo).RebuildRun(ctx, a.cfg.Storage.SaveSlot)
	if err != nil {
		return err
	}
	if rebuilt.Publications == 0 && len(rebuilt.Levels) == 0 {
		a.log.Info("no save or history found, starting a fresh run")
		return nil
	}
	return a.applyRebuilt(*rebuilt)
}

func (a *app) applyRebuilt(rebuilt storage.RebuiltState) error {
	return a.session.Do(func(e *engine.Engine, l *host.Ledger) error {
		for id, lvl := range rebuilt.Levels {
			l.SetLevel(id, lvl)
		}
		fired := e.RestoreProgress(rebuilt.Publication(), rebuilt.PenaltyApplied)
		a.log.Info("progress rebuilt from events",
			zap.Int("publications", rebuilt.Publications),
			zap.Int("milestones", len(fired)))
		return nil
	})
}

// save writes the current run to the save slot.
func (a *app) save(ctx context.Context) error {
	if a.saves == nil {
		return nil
	}
	var rec storage.SaveRecord
	err := a.session.Do(func(e *engine.Engine, l *host.Ledger) error {
		raw, err := json.Marshal(e.Snapshot())
		if err != nil {
			return err
		}
		rec = storage.SaveRecord{
			Slot:          a.cfg.Storage.SaveSlot,
			Variant:       e.Variant().Name,
			InternalState: e.InternalState(),
			Snapshot:      raw,
			Levels:        l.Levels(),
			SavedAt:       time.Now(),
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return a.saves.Upsert(ctx, rec)
}

// Close releases storage handles.
func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("journal close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func journalDir(cfg config.Config) string {
	return filepath.Clean(cfg.Storage.JournalDir)
}
