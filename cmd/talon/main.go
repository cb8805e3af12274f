package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"talon/internal/app"
	"talon/internal/config"
	"talon/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	if env := os.Getenv("TALON_CONFIG"); env != "" {
		*configPath = env
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(cfg.App.LogLevel)
	closeLog := setupLogOutput(cfg.App.LogPath)
	defer closeLog()

	a, err := app.New(*cfg)
	if err != nil {
		logger.Errorf("build app: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Errorf("run: %v", err)
		os.Exit(1)
	}
	logger.Infof("shutdown complete")
}

// setupLogOutput mirrors logs to a file when configured, keeping stdout for
// the console.
func setupLogOutput(path string) func() {
	if path == "" {
		return func() {}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warnf("create log dir: %v", err)
		return func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warnf("open log file %s: %v", path, err)
		return func() {}
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return func() { _ = f.Close() }
}
