package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/stalexteam/sinkmatch/pkg/sinkmatch"
	"github.com/stalexteam/sinkmatch/pkg/sinkmatch/util"
)

var (
	verbose       bool
	configDir     string
	matchInterval time.Duration
)

func main() {
	flag.BoolVar(&verbose, "verbose", false, "show verbose logs (useful for debugging)")
	flag.StringVar(&configDir, "config", ".", "directory holding devices.yaml and players.yaml")
	flag.DurationVar(&matchInterval, "interval", time.Second*30, "how often to rematch devices")
	flag.Parse()

	logger, err := newLogger(verbose)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting sinkmatch")

	notifier, err := sinkmatch.NewToastNotifier(logger)
	if err != nil {
		logger.Fatalw("Failed to create notifier", "error", err)
	}

	if err := util.EnsureDirExists(configDir); err != nil {
		logger.Fatalw("Failed to create config directory", "error", err)
	}

	store, err := sinkmatch.NewFileStore(logger, configDir)
	if err != nil {
		logger.Fatalw("Failed to create file store", "error", err)
	}

	if err := store.Load(); err != nil {
		logger.Fatalw("Failed to load config store", "error", err)
	}

	backend, err := sinkmatch.NewPulseBackend(logger)
	if err != nil {
		logger.Fatalw("Failed to create PulseAudio backend", "error", err)
	}

	registry, err := sinkmatch.NewPulseSinkRegistry(logger)
	if err != nil {
		logger.Fatalw("Failed to create sink registry", "error", err)
	}

	manager, err := sinkmatch.NewManager(logger, backend, registry, store)
	if err != nil {
		logger.Fatalw("Failed to create manager", "error", err)
	}

	// external edits to the config files should be picked up live, and any
	// cached device list built from the old records is stale once they are
	go store.WatchFileChanges()
	go func() {
		for range store.SubscribeToChanges() {
			logger.Info("Store reloaded, invalidating device cache")
			manager.InvalidateCache()
		}
	}()

	run(logger, manager, notifier)

	store.StopWatchingFiles()

	if err := manager.Release(); err != nil {
		logger.Warnw("Failed to release manager", "error", err)
		os.Exit(1)
	}
}

// run triggers a rematch on a fixed interval until interrupted. The core
// itself schedules nothing; this ticker is the caller-side trigger.
func run(logger *zap.SugaredLogger, manager *sinkmatch.Manager, notifier sinkmatch.Notifier) {
	interruptChannel := util.SetupCloseHandler()

	ticker := time.NewTicker(matchInterval)
	defer ticker.Stop()

	rematch(logger, manager, notifier)

	for {
		select {
		case <-ticker.C:
			rematch(logger, manager, notifier)

		case sig := <-interruptChannel:
			logger.Debugw("Interrupted", "signal", sig)
			return
		}
	}
}

func rematch(logger *zap.SugaredLogger, manager *sinkmatch.Manager, notifier sinkmatch.Notifier) {
	updatedPlayers, err := manager.UpdatePlayerDevices()
	if err != nil {
		logger.Warnw("Rematch failed", "error", err)
		return
	}

	if len(updatedPlayers) > 0 {
		logger.Infow("Rebound players to renamed devices", "players", updatedPlayers)
		notifier.Notify("Audio devices renamed",
			fmt.Sprintf("Rebound %d player(s) to their renamed output devices.", len(updatedPlayers)))

		manager.InvalidateCache()
	}
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if !verbose {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
