package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/CalculusMatrix/internal/engine"
	"github.com/MRamiBalles/CalculusMatrix/internal/network"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the theory in real time behind the WebSocket + HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := appConfig
	a, err := newApp(ctx, cfg, appLogger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	hub, err := network.NewHub(a.session, network.Options{
		BroadcastBuffer:      cfg.Runtime.BroadcastChannelBuffer,
		ClientSendBuffer:     cfg.Runtime.ClientSendBuffer,
		MaxMessagesPerSecond: cfg.Runtime.MaxMessagesPerSecond,
		MaxClients:           cfg.Runtime.MaxClients,
	}, a.metrics, appLogger)
	if err != nil {
		return err
	}
	ticker := engine.NewTicker(a.session, cfg.Server.TickInterval, cfg.Server.SpeedMultiplier, appLogger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           hub.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ticker.Start(gctx) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return hub.PollEvents(gctx, a.eventLog, 200*time.Millisecond) })
	g.Go(func() error {
		appLogger.Info("listening", zap.String("addr", srv.Addr), zap.String("variant", cfg.Engine.Variant))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Server.BackupInterval > 0 {
		g.Go(func() error { return backupLoop(gctx, a, cfg.Server.BackupInterval) })
	}

	err = g.Wait()

	// Final save uses a fresh context: gctx is already cancelled.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := a.save(saveCtx); serr != nil {
		appLogger.Error("final save failed", zap.Error(serr))
	} else {
		appLogger.Info("run saved", zap.String("slot", cfg.Storage.SaveSlot))
	}
	return err
}

// backupLoop writes the save slot periodically.
func backupLoop(ctx context.Context, a *app, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := a.save(ctx); err != nil && !errors.Is(err, context.Canceled) {
				appLogger.Warn("periodic save failed", zap.Error(err))
			}
		}
	}
}
