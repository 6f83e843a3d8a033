package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mescon/beepwatch/internal/api"
	"github.com/mescon/beepwatch/internal/audio"
	"github.com/mescon/beepwatch/internal/audio/speaker"
	"github.com/mescon/beepwatch/internal/auth"
	"github.com/mescon/beepwatch/internal/config"
	"github.com/mescon/beepwatch/internal/db"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
	"github.com/mescon/beepwatch/internal/metrics"
	"github.com/mescon/beepwatch/internal/notifier"
	"github.com/mescon/beepwatch/internal/services"
	"github.com/mescon/beepwatch/internal/stopwatch"
	"github.com/mescon/beepwatch/internal/wakelock"
)

const checkpointInterval = 5 * time.Minute

func main() {
	// Define command line flags (these override environment variables)
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.BoolVar(showVersion, "v", false, "Print version and exit (shorthand)")
	generateKey := flag.Bool("generate-api-key", false, "Print a new API key and its hash for BEEPWATCH_API_KEY_HASH, then exit")

	// Configuration flags - all can also be set via environment variables (BEEPWATCH_*)
	flagPort := flag.String("port", "", "HTTP server port (env: BEEPWATCH_PORT, default: 3095)")
	flagBasePath := flag.String("base-path", "", "URL base path for reverse proxy (env: BEEPWATCH_BASE_PATH, default: /)")
	flagLogLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (env: BEEPWATCH_LOG_LEVEL, default: info)")
	flagInterval := flag.Duration("interval", 0, "Initial beep interval (env: BEEPWATCH_INTERVAL, default: 30s)")
	flagTick := flag.Duration("tick", 0, "Tick granularity (env: BEEPWATCH_TICK, default: 10ms)")
	flagAudio := flag.String("audio", "", "Audio backend: bell, speaker, none (env: BEEPWATCH_AUDIO, default: bell)")
	flagNoWakeLock := flag.Bool("no-wake-lock", false, "Do not inhibit the screensaver while running (env: BEEPWATCH_WAKE_LOCK=false)")
	flagNoJournal := flag.Bool("no-journal", false, "Do not record events (env: BEEPWATCH_JOURNAL=false)")
	flagDataDir := flag.String("data-dir", "", "Data directory path (env: BEEPWATCH_DATA_DIR)")
	flagDatabasePath := flag.String("database-path", "", "Journal database path (env: BEEPWATCH_DATABASE_PATH)")
	flagRetentionDays := flag.Int("retention-days", -1, "Days to keep journal entries, 0 to disable pruning (env: BEEPWATCH_RETENTION_DAYS, default: 30)")

	flag.Parse()

	if *showVersion {
		fmt.Printf("beepwatch %s\n", config.Version)
		os.Exit(0)
	}
	if *generateKey {
		if err := printAPIKey(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	config.Load()

	flagOverrides := config.FlagOverrides{
		Port:            flagPort,
		BasePath:        flagBasePath,
		LogLevel:        flagLogLevel,
		Interval:        flagInterval,
		TickGranularity: flagTick,
		AudioBackend:    flagAudio,
		DataDir:         flagDataDir,
		DatabasePath:    flagDatabasePath,
	}
	// Boolean opt-outs only override when set; -1 retention means not set
	disabled := false
	if *flagNoWakeLock {
		flagOverrides.WakeLockEnabled = &disabled
	}
	if *flagNoJournal {
		flagOverrides.JournalEnabled = &disabled
	}
	if *flagRetentionDays >= 0 {
		flagOverrides.RetentionDays = flagRetentionDays
	}
	config.ApplyFlags(flagOverrides)

	cfg := config.Get()

	logger.Init(cfg.LogDir)
	logger.SetLevel(cfg.LogLevel)

	logger.Infof("========================================")
	logger.Infof("Starting beepwatch %s...", config.Version)
	logger.Infof("========================================")

	logger.Infof("Configuration:")
	logger.Infof("  Port: %s", cfg.Port)
	logger.Infof("  Log Level: %s", cfg.LogLevel)
	logger.Infof("  Data Directory: %s", cfg.DataDir)
	logger.Infof("  Interval: %s", cfg.Interval)
	logger.Infof("  Tick Granularity: %s", cfg.TickGranularity)
	logger.Infof("  Audio: %s", cfg.AudioBackend)
	logger.Infof("  Wake Lock: %t", cfg.WakeLockEnabled)
	if cfg.JournalEnabled {
		logger.Infof("  Journal: %s", cfg.DatabasePath)
		if cfg.RetentionDays > 0 {
			logger.Infof("  Journal Retention: %d days (%s)", cfg.RetentionDays, cfg.MaintenanceSchedule)
		} else {
			logger.Infof("  Journal Retention: disabled (no automatic pruning)")
		}
	} else {
		logger.Infof("  Journal: disabled")
	}
	if cfg.APIKeyHash == "" {
		logger.Warnf("  API authentication: disabled (set BEEPWATCH_API_KEY_HASH to require a key)")
	}

	eb := eventbus.NewEventBus()
	logger.Infof("✓ Event Bus initialized")

	swOpts := []stopwatch.Option{
		stopwatch.WithInterval(cfg.Interval),
		stopwatch.WithTickGranularity(cfg.TickGranularity),
		stopwatch.WithBeepFlash(cfg.BeepFlash),
	}
	if cfg.WakeLockEnabled {
		swOpts = append(swOpts, stopwatch.WithWakeLock(wakelock.Detect("beepwatch")))
	}
	sw := stopwatch.New(eb, swOpts...)
	logger.Infof("✓ Stopwatch ready (session %s)", sw.SessionID())

	sink := audio.NewSink(eb, newPlayer(cfg.AudioBackend, os.Stderr))
	sink.Start()

	notifierService, err := notifier.NewNotifier(eb, cfg.NotifyURLs, cfg.NotifyThrottle)
	if err != nil {
		// Non-fatal - continue without notifications
		logger.Errorf("Failed to configure notifications: %v", err)
	} else {
		notifierService.Start()
	}

	metricsService := metrics.NewMetricsService(eb, sw)
	metricsService.Start()
	logger.Infof("✓ Metrics Service (Prometheus endpoint at /metrics)")

	deps := api.ServerDeps{
		Config:    cfg,
		EventBus:  eb,
		Stopwatch: sw,
		Metrics:   metricsService,
		Verifier:  auth.NewKeyVerifier(cfg.APIKeyHash),
	}

	var (
		repo             *db.Repository
		journalService   *services.JournalService
		schedulerService *services.SchedulerService
		stopCheckpoint   func()
	)
	if cfg.JournalEnabled {
		logger.Infof("Initializing journal: %s", cfg.DatabasePath)
		repo, err = db.NewRepository(cfg.DatabasePath)
		if err != nil {
			logger.Errorf("Failed to initialize journal: %v", err)
			os.Exit(1)
		}
		journalService = services.NewJournalService(eb, repo)
		journalService.Start()

		schedulerService = services.NewSchedulerService(repo, cfg.RetentionDays)
		if err := schedulerService.Start(cfg.MaintenanceSchedule); err != nil {
			logger.Errorf("Journal maintenance not scheduled: %v", err)
		}
		stopCheckpoint = repo.StartPeriodicCheckpoint(checkpointInterval)

		deps.Journal = repo
		deps.JournalWriter = journalService
		deps.Scheduler = schedulerService
		logger.Infof("✓ Journal initialized")
	}

	apiServer := api.NewRESTServer(deps)
	go func() {
		addr := ":" + cfg.Port
		if err := apiServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Failed to start API server: %v", err)
			os.Exit(1)
		}
	}()

	logger.Infof("========================================")
	logger.Infof("✓ beepwatch %s started successfully", config.Version)
	logger.Infof("✓ Server listening on port %s", cfg.Port)
	logger.Infof("========================================")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Infof("Received signal %v, initiating graceful shutdown...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown in reverse order of startup
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API Server shutdown error: %v", err)
	} else {
		logger.Infof("✓ API Server stopped")
	}

	if err := sw.Close(); err != nil {
		logger.Errorf("Stopwatch shutdown error: %v", err)
	}

	if schedulerService != nil {
		schedulerService.Stop()
	}
	if journalService != nil {
		journalService.Stop()
		stats := journalService.Stats()
		logger.Infof("✓ Journal stopped (written: %d, dropped: %d, failed: %d)", stats.Written, stats.Dropped, stats.Failed)
	}

	metricsService.Stop()
	if notifierService != nil {
		notifierService.Stop()
	}
	sink.Stop()

	if repo != nil {
		stopCheckpoint()
		if err := repo.GracefulClose(); err != nil {
			logger.Errorf("Failed to close journal: %v", err)
		} else {
			logger.Infof("✓ Journal database closed")
		}
	}

	logger.Infof("✓ beepwatch shutdown complete")
	_ = logger.Close()
}

// newPlayer picks the audio backend. A speaker that cannot be opened falls
// back to the terminal bell.
func newPlayer(backend string, bell io.Writer) audio.Player {
	switch backend {
	case config.AudioNone:
		return audio.NopPlayer{}
	case config.AudioSpeaker:
		player, err := speaker.NewPlayer(speaker.DefaultSampleRate)
		if err == nil {
			return player
		}
		logger.Warnf("Speaker unavailable, using terminal bell: %v", err)
	}
	return audio.NewBellPlayer(bell)
}

func printAPIKey(w io.Writer) error {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(key)
	if err != nil {
		return fmt.Errorf("hash api key: %w", err)
	}
	fmt.Fprintf(w, "API key:               %s\n", key)
	fmt.Fprintf(w, "BEEPWATCH_API_KEY_HASH=%s\n", hash)
	return nil
}
