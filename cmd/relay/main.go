package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trendhaul/farfetch-scraper/internal/config"
	"github.com/trendhaul/farfetch-scraper/internal/database"
	"github.com/trendhaul/farfetch-scraper/pkg/logger"
)

func main() {
	var (
		interval  = flag.Duration("interval", 5*time.Second, "outbox poll interval")
		batchSize = flag.Int("batch", 100, "events per poll")
	)
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

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to ping redis", "error", err)
		os.Exit(1)
	}

	relay := database.NewRelay(redisClient, database.NewOutboxRepository(db), database.RelayConfig{
		PollInterval: *interval,
		BatchSize:    *batchSize,
	})

	if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("relay failed", "error", err)
		os.Exit(1)
	}
}
