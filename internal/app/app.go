package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tracklib/tracklib/internal/access"
	"github.com/tracklib/tracklib/internal/asset"
	"github.com/tracklib/tracklib/internal/config"
	"github.com/tracklib/tracklib/internal/httpserver"
	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/metrics"
	"github.com/tracklib/tracklib/internal/scheduler"
	"github.com/tracklib/tracklib/internal/store/blob"
	"github.com/tracklib/tracklib/internal/store/document"
	"github.com/tracklib/tracklib/internal/version"
)

// documentFile is the record document's name inside the track
// directory. The sweeper must never treat it as a blob.
const documentFile = "library.json"

type App struct {
	cfg     *config.Config
	logger  logger.Logger
	server  *httpserver.Server
	sweeper *scheduler.Sweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	mx := metrics.Init(nil)

	// Storage layout: track blobs live directly under the data dir
	// next to the record document, images under images/.
	tracks := blob.NewDir(cfg.DataDir)
	images := blob.NewDir(filepath.Join(cfg.DataDir, "images"))

	docs, err := document.Open(
		filepath.Join(cfg.DataDir, documentFile),
		document.WithCorruptionHook(func(cause error) {
			mx.DocumentCorruptions.Inc()
			loggerClient.Error("library document unreadable, starting empty",
				logger.Error(cause))
		}),
	)
	if err != nil {
		loggerClient.Errorf("Failed to open library document: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("library document loaded",
		logger.String("dir", cfg.DataDir),
		logger.Int("records", docs.Count()))
	mx.Records.Set(float64(docs.Count()))

	manager := asset.NewManager(docs, tracks, images, loggerClient, mx)

	gate := access.New(cfg.ReadPassword, cfg.WritePassword)
	if gate.Enabled() {
		loggerClient.Info("password protection enabled")
	} else {
		loggerClient.Warn("no passwords configured, running open")
	}

	sweepTrigger := make(chan struct{}, 1)
	sweeper := scheduler.NewSweeper(
		manager,
		tracks,
		images,
		loggerClient,
		mx,
		cfg.SweepInterval,
		[]string{documentFile},
		sweepTrigger,
	)

	d := deps.Deps{
		Logger:           loggerClient,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		Library:          manager,
		Gate:             gate,
		Metrics:          mx,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		AllowedHosts:     cfg.AllowedHosts,
		AllowedCIDRS:     cfg.AllowedCIDRS,
		TrustProxy:       cfg.TrustProxy,
		RateBurst:        cfg.RateBurst,
		RateRefillPerMin: cfg.RateRefillPerMin,
		SweepTrigger:     sweepTrigger,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:     cfg,
		logger:  loggerClient,
		server:  server,
		sweeper: sweeper,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting tracklib v%s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Infof("tracklib %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}
	a.logger.Info("orphan sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ tracklib stopped cleanly")
	return nil
}
