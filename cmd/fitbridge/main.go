package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tailscale.com/tsnet"

	"github.com/claude/fitbridge/internal/config"
	"github.com/claude/fitbridge/internal/ingest/hae"
	"github.com/claude/fitbridge/internal/mcp"
	"github.com/claude/fitbridge/internal/pipeline"
	"github.com/claude/fitbridge/internal/server"
	"github.com/claude/fitbridge/internal/source"
	"github.com/claude/fitbridge/internal/storage"
	"github.com/claude/fitbridge/internal/timerange"
	"github.com/claude/fitbridge/internal/upload"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("FitBridge starting", "version", Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	loc, _ := cfg.Location()
	scopes, _ := cfg.ScopeKinds()

	if cfg.Source.Kind == config.SourcePostgres {
		if err := storage.RunMigrations(cfg.Database.DSN(), "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}
	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	ctx := context.Background()
	src, err := source.Open(ctx, cfg, loc, log)
	if err != nil {
		log.Error("failed to open source", "kind", cfg.Source.Kind, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	p := pipeline.New(src.Reader, timerange.New(loc), log)
	srv := server.New(p, cfg.Auth.APIKey, scopes, log)

	if src.DB != nil {
		srv.SetIngest(hae.NewProvider(src.DB, log), src.DB, cfg.Source.UserID)
	}

	if cfg.ValidateBackend() == nil {
		state, err := upload.OpenStateDB(cfg.Sync.StateDir)
		if err != nil {
			log.Error("failed to open state database", "error", err)
			os.Exit(1)
		}
		defer state.Close()
		client := upload.NewClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout)
		srv.SetSync(upload.NewSubmitter(p, client, log, upload.WithState(state)), cfg.Backend.DeviceID, cfg.Sync.Days)
		log.Info("sync enabled", "backend", cfg.Backend.URL, "device", cfg.Backend.DeviceID)
	}

	srv.SetMCP(mcp.NewHTTPHandler(mcp.New(p, Version, log)))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
