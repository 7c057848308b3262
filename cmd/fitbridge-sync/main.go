package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/claude/fitbridge/internal/config"
	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/source"
	"github.com/claude/fitbridge/internal/timerange"
	"github.com/claude/fitbridge/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	days := flag.Int("days", 0, "number of days to submit (default: sync.days)")
	device := flag.String("device", "", "device id (default: backend.device_id)")
	dryRun := flag.Bool("dry-run", false, "read and build records but don't send them")
	printRecords := flag.Bool("print", false, "print every record")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("fitbridge-sync", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Backend.DeviceID = *device
	}
	if *days == 0 {
		*days = cfg.Sync.Days
	}
	if !*dryRun {
		if err := cfg.ValidateBackend(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v (or use -dry-run)\n", err)
			os.Exit(1)
		}
	}
	loc, _ := cfg.Location()
	scopes, _ := cfg.ScopeKinds()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := source.Open(ctx, cfg, loc, log)
	if err != nil {
		log.Error("failed to open source", "kind", cfg.Source.Kind, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	opts := []upload.SubmitterOption{upload.WithDryRun(*dryRun)}
	var client *upload.Client
	if !*dryRun {
		client = upload.NewClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout)

		state, err := upload.OpenStateDB(cfg.Sync.StateDir)
		if err != nil {
			log.Error("failed to open state database", "error", err)
			os.Exit(1)
		}
		defer state.Close()
		opts = append(opts, upload.WithState(state))

		if last, ok, err := state.LastSync(ctx, cfg.Backend.DeviceID); err == nil && ok {
			log.Info("last successful sync", "device", cfg.Backend.DeviceID, "at", last)
		}
	} else {
		log.Info("DRY RUN mode: records will be built but not sent")
	}

	deviceID := cfg.Backend.DeviceID
	if deviceID == "" && *dryRun {
		deviceID = "dry-run"
	}

	p := pipeline.New(src.Reader, timerange.New(loc), log)
	auth := pipeline.StaticAuth{Authenticated: true, Scopes: scopes}
	result, err := upload.NewSubmitter(p, client, log, opts...).Sync(ctx, auth, deviceID, *days)
	if result != nil {
		printStats(result, *printRecords)
	}
	if err != nil {
		if errors.Is(err, upload.ErrNoRecords) {
			log.Warn("nothing to send")
			return
		}
		log.Error("sync failed", "error", err)
		os.Exit(1)
	}
	log.Info("sync complete")
}

func printStats(result *upload.Result, records bool) {
	fmt.Println()
	fmt.Println("=== Sync Summary ===")
	fmt.Printf("  Device:           %s\n", result.DeviceID)
	fmt.Printf("  Days:             %d\n", result.Days)
	fmt.Printf("  Step records:     %d\n", result.StepRecords)
	fmt.Printf("  Heartbeat:        %d\n", result.HeartbeatRecords)
	fmt.Printf("  Sent:             %d\n", result.Sent)
	if result.DryRun {
		fmt.Printf("  Accepted:         - (dry run)\n")
	} else {
		fmt.Printf("  Accepted:         %d\n", result.Accepted)
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\n  Warnings:\n")
		for _, w := range result.Warnings {
			fmt.Printf("    - %s\n", w)
		}
	}

	if records {
		fmt.Printf("\n  Records:\n")
		for _, r := range result.Records {
			fmt.Printf("    %s  %-10s %10.2f %s\n", r.MeasuredAt, r.DataType, r.ValueNumeric, r.Unit)
		}
	}
	fmt.Println()
}
