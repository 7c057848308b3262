package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/fitbridge/internal/config"
	"github.com/claude/fitbridge/internal/importer"
	"github.com/claude/fitbridge/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	autoSyncPath := flag.String("path", "", "path to AutoSync directory (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without inserting into database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *autoSyncPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: fitbridge-import -config config.yaml -path /path/to/AutoSync [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	info, err := os.Stat(*autoSyncPath)
	if err != nil || !info.IsDir() {
		log.Error("AutoSync path does not exist or is not a directory", "path", *autoSyncPath)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Source.Kind != config.SourcePostgres {
		log.Error("import requires the postgres source", "source", cfg.Source.Kind)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	}

	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	userID := cfg.Source.UserID
	started := time.Now()
	var logID int64
	if !*dryRun {
		logID, err = db.InsertImportLog(ctx, storage.ImportLog{UserID: userID, Source: "autosync", Status: storage.ImportRunning})
		if err != nil {
			log.Warn("failed to create import log", "error", err)
		}
	}

	imp := importer.New(db, userID, log, *dryRun)
	stats, importErr := imp.Import(ctx, *autoSyncPath)

	if logID != 0 {
		entry := storage.ImportLog{
			UserID:          userID,
			Source:          "autosync",
			SamplesReceived: stats.SamplesRead,
			SamplesInserted: stats.SamplesInserted,
		}
		if meta, err := json.Marshal(stats); err == nil {
			raw := json.RawMessage(meta)
			entry.Metadata = &raw
		}
		if err := db.FinishImportLog(ctx, logID, entry, started, importErr); err != nil {
			log.Warn("failed to update import log", "id", logID, "error", err)
		}
	}

	printStats(log, stats)
	if importErr != nil {
		log.Error("import failed", "error", importErr)
		os.Exit(1)
	}
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"samples_read", stats.SamplesRead,
		"samples_inserted", stats.SamplesInserted,
		"samples_duplicated", stats.SamplesDuplicated,
		"samples_malformed", stats.SamplesMalformed,
	)
	if len(stats.RejectedMetrics) > 0 {
		log.Info("rejected metrics (unsupported)", "metrics", stats.RejectedMetrics)
	}
}
