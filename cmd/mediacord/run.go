package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tools.zach/dev/mediacord/internal/agent"
	"tools.zach/dev/mediacord/internal/config"
	"tools.zach/dev/mediacord/internal/logger"
	"tools.zach/dev/mediacord/internal/update"
)

func (c *cli) runCmd() *cobra.Command {
	var console bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the presence daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runDaemon(cmd.Context(), console)
		},
	}
	cmd.Flags().BoolVar(&console, "console", false, "Also write the log to stderr")
	return cmd
}

// runDaemon runs until a shutdown signal arrives or ctx is cancelled. It
// holds the PID lock for its whole lifetime.
func (c *cli) runDaemon(ctx context.Context, console bool) error {
	dp := c.paths()
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if alive, pid := checkStalePID(dp); alive {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	store, err := c.store()
	if err != nil {
		return err
	}
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logCloser, err := logger.NewLogger(logger.Options{
		Path:      dp.Log(),
		Level:     logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Console:   cfg.Log.Console || console,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("mediacord starting", "version", ver, "data_dir", dp.Root)

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		logger.Fail(log, "failed to write PID file", "error", err)
		return err
	}
	defer removePID(dp, token, pidFile)

	watcher, err := config.NewWatcher(store.Path())
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer watcher.Close()
	if watcher.Polling() {
		slog.Info("using polling mode for config watching")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	a := c.newAgent(store)
	if err := a.Start(ctx); err != nil {
		slog.Warn("presence not started", "error", err)
	}
	defer a.Stop()

	g.Go(func() error {
		watchConfig(ctx, watcher, a)
		return nil
	})
	if cfg.Behavior.CheckUpdates {
		g.Go(func() error {
			checkForUpdate(ctx, ver)
			return nil
		})
	}
	g.Go(func() error {
		sigCh, stop := signalChannel()
		defer stop()
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		return nil
	})

	err = g.Wait()
	slog.Info("mediacord stopped")
	return err
}

// watchConfig reloads the agent whenever the config file changes, so edits
// from other mediacord commands reach the running daemon.
func watchConfig(ctx context.Context, w *config.Watcher, a *agent.Agent) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Events():
			slog.Debug("config changed, reloading")
			if err := a.Reload(ctx); err != nil {
				slog.Warn("config reload failed", "error", err)
			}
		}
	}
}

// checkForUpdate logs when a newer release is available. Failures are
// only logged at debug level.
func checkForUpdate(ctx context.Context, current string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("update check panic", "error", r)
		}
	}()
	res, err := update.Check(ctx, current)
	if err != nil {
		slog.Debug("update check failed", "error", err)
		return
	}
	if res.Newer {
		slog.Info("update available", "current", res.Current, "latest", res.Latest.Tag, "url", res.Latest.URL)
	}
}
