// Command atellicasim runs the Atellica instrument simulator: it binds the
// LAS and LIS listeners and drives the delayed-result scheduler. It reloads
// its configuration file when the file changes or on SIGHUP and logs the
// outcome; the running server and state store keep the settings they were
// started with.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labsim/atellica-sim/internal/config"
	"github.com/labsim/atellica-sim/internal/logging"
	"github.com/labsim/atellica-sim/internal/server"
	"github.com/labsim/atellica-sim/internal/simstate"
)

var (
	version = "dev"

	configPath string
	logPath    string
)

func main() {
	flag.StringVar(&configPath, "config", "/etc/atellicasim/config.json", "path to configuration file")
	flag.StringVar(&logPath, "log-file", "/var/log/atellicasim/atellicasim.log", "path to the JSON log file")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("atellicasim %s\n", version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logger := logging.NewZerologLogger(logFile, true, logging.LevelInfo)
	defer logger.Close()

	store := simstate.New(cfg, logger)
	srv := server.New(cfg, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.Watch(ctx, configPath, func(next *config.Config) {
		logger.Info("config", "reloaded", "configuration file reloaded from disk", nil)
		cfg = next
	}, func(err error) {
		logger.Error("config", "reload_failed", "configuration reload failed, keeping previous snapshot", map[string]any{"error": err.Error()})
	}); err != nil {
		return fmt.Errorf("failed to watch config: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	logger.Info("server", "starting", "atellica simulator starting", map[string]any{"config_path": configPath})

	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				reloaded, err := config.Load(configPath)
				if err != nil {
					logger.Error("config", "reload_failed", "manual reload failed", map[string]any{"error": err.Error()})
					continue
				}
				cfg = reloaded
				logger.Info("config", "reloaded", "configuration reloaded on SIGHUP", nil)
			case syscall.SIGTERM, syscall.SIGINT:
				logger.Info("server", "stopping", "shutdown signal received", map[string]any{"signal": sig.String()})
				cancel()
				return <-runErr
			}
		case err := <-runErr:
			return err
		}
	}
}
