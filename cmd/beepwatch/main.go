package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mescon/beepwatch/internal/audio"
	"github.com/mescon/beepwatch/internal/audio/speaker"
	"github.com/mescon/beepwatch/internal/config"
	"github.com/mescon/beepwatch/internal/db"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
	"github.com/mescon/beepwatch/internal/notifier"
	"github.com/mescon/beepwatch/internal/services"
	"github.com/mescon/beepwatch/internal/stopwatch"
	"github.com/mescon/beepwatch/internal/tui"
	"github.com/mescon/beepwatch/internal/wakelock"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	flagInterval := flag.Duration("interval", 0, "Initial beep interval (env: BEEPWATCH_INTERVAL, default: last used or 30s)")
	flagAudio := flag.String("audio", "", "Audio backend: bell, speaker, none (env: BEEPWATCH_AUDIO, default: bell)")
	flagNoWakeLock := flag.Bool("no-wake-lock", false, "Do not inhibit the screensaver while running")
	flagNoJournal := flag.Bool("no-journal", false, "Do not record events")
	flagDataDir := flag.String("data-dir", "", "Data directory path (env: BEEPWATCH_DATA_DIR)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("beepwatch %s\n", config.Version)
		return
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "beepwatch needs an interactive terminal; use beepwatch-server for headless use")
		os.Exit(1)
	}

	config.Load()
	overrides := config.FlagOverrides{
		Interval:     flagInterval,
		AudioBackend: flagAudio,
		DataDir:      flagDataDir,
	}
	disabled := false
	if *flagNoWakeLock {
		overrides.WakeLockEnabled = &disabled
	}
	if *flagNoJournal {
		overrides.JournalEnabled = &disabled
	}
	config.ApplyFlags(overrides)
	cfg := config.Get()

	logger.Init(cfg.LogDir)
	logger.SetConsole(false)
	logger.SetLevel(cfg.LogLevel)
	defer func() { _ = logger.Close() }()

	if err := run(cfg); err != nil {
		logger.Errorf("beepwatch: %v", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	eb := eventbus.NewEventBus()

	opts := []stopwatch.Option{
		stopwatch.WithInterval(cfg.Interval),
		stopwatch.WithTickGranularity(cfg.TickGranularity),
		stopwatch.WithBeepFlash(cfg.BeepFlash),
	}
	if cfg.WakeLockEnabled {
		opts = append(opts, stopwatch.WithWakeLock(wakelock.Detect("beepwatch")))
	}
	sw := stopwatch.New(eb, opts...)
	defer func() {
		if err := sw.Close(); err != nil {
			logger.Warnf("Stopwatch shutdown: %v", err)
		}
	}()

	sink := audio.NewSink(eb, newPlayer(cfg.AudioBackend, os.Stderr))
	sink.Start()
	defer sink.Stop()

	if n, err := notifier.NewNotifier(eb, cfg.NotifyURLs, cfg.NotifyThrottle); err != nil {
		logger.Errorf("Failed to configure notifications: %v", err)
	} else {
		n.Start()
		defer n.Stop()
	}

	if cfg.JournalEnabled {
		repo, err := db.NewRepository(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() { _ = repo.GracefulClose() }()

		journal := services.NewJournalService(eb, repo)
		journal.Start()
		defer journal.Stop()
	}

	feed := tui.NewEventFeed(eb)
	defer feed.Close()

	model := tui.NewModel(sw,
		tui.WithEventFeed(feed),
		tui.WithIntervalSaver(cfg.SaveInterval),
	)
	logger.Infof("Session %s started in the terminal", sw.SessionID())

	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
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
