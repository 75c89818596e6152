package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/trendhaul/farfetch-scraper/internal/api"
	"github.com/trendhaul/farfetch-scraper/internal/config"
	"github.com/trendhaul/farfetch-scraper/internal/database"
	"github.com/trendhaul/farfetch-scraper/internal/events"
	"github.com/trendhaul/farfetch-scraper/internal/fetch"
	"github.com/trendhaul/farfetch-scraper/internal/ratelimit"
	"github.com/trendhaul/farfetch-scraper/internal/scraper"
	"github.com/trendhaul/farfetch-scraper/pkg/logger"
)

func main() {
	persist := flag.Bool("persist", true, "store products and stage events in Postgres")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log = log.With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pacer := ratelimit.NewAdaptivePacer(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay)
	s, err := scraper.New(cfg.Scraper, fetch.NewClient(cfg.Scraper, pacer))
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var (
		store     api.ProductStore
		publisher api.EventSink
	)
	if *persist {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = database.NewProductRepository(db)
		publisher = events.NewPublisher(db)
	}

	handlers := api.NewHandlers(s, store, publisher)
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "addr", server.Addr, "persist", *persist)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
}
