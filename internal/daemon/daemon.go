// Package daemon runs the background capture daemon and its control socket.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/berrythewa/clipkeep/internal/config"
	"github.com/berrythewa/clipkeep/internal/ipc"
	"github.com/berrythewa/clipkeep/internal/pipeline"
	"github.com/berrythewa/clipkeep/internal/platform"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
	"github.com/berrythewa/clipkeep/pkg/utils"
)

// Run starts the daemon in the foreground and blocks until ctx is done or
// SIGINT/SIGTERM arrives
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	paths := cfg.SystemPaths
	pidFile := PIDFilePath(cfg)

	if pid, running := Status(cfg); running && pid != os.Getpid() {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}
	if err := WritePIDFile(pidFile); err != nil {
		return err
	}
	defer os.Remove(pidFile)

	reload := func() (types.Settings, error) {
		return config.LoadSettings(paths.SettingsFile)
	}
	settings, err := reload()
	if err != nil {
		logger.Warn("Failed to load settings, using defaults", zap.Error(err))
		settings = types.DefaultSettings()
	}

	temp, err := utils.NewTempManager(paths.TempDir, cfg.Temp.CleanupAge)
	if err != nil {
		return err
	}
	defer temp.Cleanup()

	backend, err := storage.Open(storage.StorageConfig{
		Driver: cfg.Storage.Driver,
		DBPath: cfg.Storage.DBPath,
		Logger: logger.Named("storage"),
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer backend.Close()

	var writer pipeline.ClipboardWriter
	source, err := platform.New(platform.Options{
		PollInterval:  cfg.Capture.PollInterval,
		ExternalTools: cfg.Capture.ExternalTools,
		Logger:        logger.Named("clipboard"),
	})
	if err != nil {
		logger.Warn("Clipboard unavailable, running without capture", zap.Error(err))
		source = nil
	} else {
		writer = source
	}

	eventLogger := logger.Named("events")
	p := pipeline.New(backend, pipeline.Options{
		Settings:     settings,
		MaxImageArea: cfg.Capture.MaxImageArea,
		Workers:      cfg.Workers,
		Writer:       writer,
		Temp:         temp,
		DataDir:      paths.DataDir,
		OnChange: func(ev pipeline.Event) {
			eventLogger.Debug("History changed",
				zap.String("kind", string(ev.Kind)),
				zap.Int64("id", ev.ID),
				zap.Int("removed", ev.Removed))
		},
		Logger: logger.Named("pipeline"),
	})

	handler := NewHandler(p, reload, logger.Named("ipc"))
	server := ipc.NewServer(cfg.IPC.SocketPath, handler.Handle, logger.Named("ipc"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return server.ListenAndServe(gctx) })
	if source != nil {
		g.Go(func() error {
			source.MonitorChanges(gctx, p.OnClipboardChanged)
			return nil
		})
	}
	g.Go(func() error {
		report, err := p.SelfCheck(gctx)
		if err != nil {
			logger.Warn("Self-check did not run", zap.Error(err))
			return nil
		}
		if !report.OK() {
			logger.Warn("Self-check found problems",
				zap.Bool("db_ok", report.DBOK),
				zap.Bool("temp_ok", report.TempOK),
				zap.Bool("space_ok", report.SpaceOK),
				zap.Uint64("free_mb", report.FreeMB),
				zap.Strings("issues", report.Issues))
			return nil
		}
		logger.Info("Self-check passed", zap.Uint64("free_mb", report.FreeMB))
		return nil
	})

	logger.Info("Daemon running",
		zap.Int("pid", os.Getpid()),
		zap.String("driver", cfg.Storage.Driver),
		zap.String("db", cfg.Storage.DBPath),
		zap.String("socket", cfg.IPC.SocketPath))

	err = g.Wait()
	logger.Info("Daemon stopped")
	return err
}
