// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdflens/internal/config"
	"github.com/pdflens/internal/engine"
	"github.com/pdflens/internal/extract"
	"github.com/pdflens/internal/logger"
	"github.com/pdflens/internal/notify"
	"github.com/pdflens/internal/view"
	"github.com/pdflens/internal/web"
)

var (
	configPath = flag.String("config", "", "Path to config file (default: ~/.pdflens/config.yaml)")
	port       = flag.Int("port", 0, "Web server port (overrides config)")
	engineName = flag.String("engine", "", "PDF engine: pdf or mupdf (overrides config)")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, loader, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.ApplyCLIFlags(cfg, *port, *engineName)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	lg, err := logger.Init(cfg.Log.File, level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer lg.Close()

	// Only the log level is applied live; other keys take effect on restart
	loader.Watch(func(next *config.Config) {
		lv, err := logger.ParseLevel(next.Log.Level)
		if err != nil {
			logger.Warnf("Ignoring log level %q: %v", next.Log.Level, err)
			return
		}
		logger.SetLevel(lv)
	})

	logger.Printf("Loaded configuration:")
	logger.Printf("  Address: %s", cfg.Address())
	logger.Printf("  Engine: %s", cfg.Engine.Name)
	logger.Printf("  Max upload: %d bytes", cfg.Upload.MaxBytes)
	logger.Printf("  Extraction timeout: %s", cfg.Extraction.Timeout)

	eng, err := engine.New(cfg.Engine.Name)
	if err != nil {
		logger.Fatalf("Failed to create engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	extractor := extract.NewExtractor(eng, cfg.Extraction.Timeout)
	notifier := notify.New(cfg.Notify.Desktop)
	sessions := view.NewSessions(cfg.Server.SessionTTL, func() *view.Controller {
		return view.NewController(ctx, extractor, notifier)
	})

	webServer := web.NewServer(ctx, sessions, extract.NewLoader(cfg.Upload.MaxBytes), eng.Name())
	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           webServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Printf("Web server starting on http://%s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Error shutting down web server: %v", err)
		}
		return nil
	})

	logger.Printf("pdflens running. Press Ctrl+C to stop.")
	if err := g.Wait(); err != nil {
		logger.Errorf("Web server error: %v", err)
		lg.Close()
		os.Exit(1)
	}
	logger.Printf("Shutdown complete")
}
