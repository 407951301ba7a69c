package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MRamiBalles/CalculusMatrix/internal/infra/journal"
	"github.com/MRamiBalles/CalculusMatrix/internal/infra/storage"
)

var (
	replaySource string
	replayApply  bool
	replayRecap  bool
	replaySince  float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild permanent progress from the event journal or database",
	Long: `Folds the recorded events of the configured save slot into publication
totals, milestone count and upgrade levels.

  --source journal   read the zstd JSONL journal (default)
  --source db        read the SQLite events table

With --apply the rebuilt progress is written back to the save slot.`,
	RunE: runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replaySource, "source", "journal", "journal or db")
	f.BoolVar(&replayApply, "apply", false, "restore the rebuilt progress into the save slot")
	f.BoolVar(&replayRecap, "recap", false, "print a per-event recap")
	f.Float64Var(&replaySince, "since", 0, "recap only events at or after this simulated time")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	records, err := loadRecords(ctx)
	if err != nil {
		return err
	}
	appLogger.Info("events loaded", zap.String("source", replaySource), zap.Int("count", len(records)))

	rebuilt := storage.Rebuild(records)
	out := cmd.OutOrStdout()
	if err := writeJSON(out, rebuilt); err != nil {
		return err
	}
	if replayRecap {
		var recent []storage.EventRecord
		for _, r := range records {
			if r.SimTime >= replaySince {
				recent = append(recent, r)
			}
		}
		for _, line := range storage.Recap(recent) {
			fmt.Fprintf(out, "[t=%.1f] %-8s %s\n", line.SimTime, line.Impact, line.Summary)
		}
	}

	if !replayApply {
		return nil
	}
	a, err := newApp(ctx, appConfig, appLogger, true)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.applyRebuilt(rebuilt); err != nil {
		return err
	}
	return a.save(ctx)
}

func loadRecords(ctx context.Context) ([]storage.EventRecord, error) {
	slot := appConfig.Storage.SaveSlot
	switch replaySource {
	case "journal":
		evs, err := journal.ReadAll(journalDir(appConfig), slot)
		if err != nil {
			return nil, err
		}
		records := make([]storage.EventRecord, 0, len(evs))
		for _, ev := range evs {
			rec, err := storage.ToRecord(slot, ev)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		return records, nil
	case "db":
		db, err := storage.InitSQLite(appConfig.Storage.DBPath, 1)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return storage.NewSQLiteEventRepository(db).GetByRunID(ctx, slot)
	default:
		return nil, fmt.Errorf("unknown source %q (want journal or db)", replaySource)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
