package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/listkeeper/listsync/internal/client"
	"github.com/listkeeper/listsync/internal/client/cli"
	"github.com/listkeeper/listsync/internal/client/iocli"
	"github.com/listkeeper/listsync/internal/client/storage/boltdb"
	"github.com/listkeeper/listsync/internal/synclist"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:9527", "Relay URL")
	dbPath := flag.String("db", "listsync-client.db", "Path to local database")
	syncMode := flag.String("mode", "", "Preferred sync mode (empty lets the relay decide)")
	mobile := flag.Bool("mobile", false, "Pair as a mobile device")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	level := slog.LevelWarn
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()

	// Открываем BoltDB storage
	boltStorage, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	relayClient := client.New(*serverURL, boltStorage, boltStorage, logger)
	relayClient.SetMobile(*mobile)
	if *syncMode != "" {
		mode, err := synclist.ParseSyncMode(*syncMode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		relayClient.SetSyncMode(mode)
	}

	commands := cli.New(relayClient, boltStorage, iocli.NewStdio())

	// Выполняем команду
	switch command {
	case "pair":
		err = commands.RunPair(ctx, args[1:])
	case "unpair":
		err = commands.RunUnpair(ctx)
	case "verify":
		err = commands.RunVerify(ctx)
	case "sync":
		err = commands.RunSync(ctx)
	case "status":
		err = commands.RunStatus(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		cli.PrintUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("ListSync Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
