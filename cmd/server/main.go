package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/listkeeper/listsync/internal/config"
	"github.com/listkeeper/listsync/internal/server"
	"github.com/listkeeper/listsync/internal/server/storage/boltdb"
	"github.com/listkeeper/listsync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*configPath, *debug); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := boltdb.New(ctx, filepath.Join(cfg.DataDir, "server.db"))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	events, err := sqlite.New(ctx, filepath.Join(cfg.DataDir, "events.db"))
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			logger.Error("failed to close event log", "error", err)
		}
	}()

	srv := server.New(cfg, server.Storage{
		Devices:   db,
		ListData:  db,
		Snapshots: db,
		Events:    events,
	}, logger)

	logger.Info("starting listsync server",
		slog.String("version", Version),
		slog.String("addr", cfg.BindAddr))

	return srv.Run(ctx)
}

func printVersion() {
	fmt.Printf("ListSync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
