// Package source opens the Raw Sample Reader selected by configuration.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/fitbridge/internal/config"
	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/source/hae"
	"github.com/claude/fitbridge/internal/storage"
)

// Source is an open reader and the resources behind it.
type Source struct {
	Reader pipeline.Reader
	// DB is set only for the postgres source.
	DB *storage.DB
}

// Open connects the configured source. The postgres schema must already be
// migrated.
func Open(ctx context.Context, cfg *config.Config, loc *time.Location, log *slog.Logger) (*Source, error) {
	switch cfg.Source.Kind {
	case config.SourceHAE:
		client := hae.NewClient(cfg.Source.HAEHost, cfg.Source.HAEPort, cfg.Source.RequestsPerSecond, log)
		log.Info("using HAE source", "host", cfg.Source.HAEHost, "port", cfg.Source.HAEPort)
		return &Source{Reader: hae.NewReader(client, log)}, nil
	case config.SourcePostgres:
		db, err := storage.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		log.Info("database connected", "user_id", cfg.Source.UserID)
		return &Source{
			Reader: storage.NewSampleReader(db, cfg.Source.UserID, loc),
			DB:     db,
		}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// Close releases the database pool, if any.
func (s *Source) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
