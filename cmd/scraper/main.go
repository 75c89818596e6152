package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/trendhaul/farfetch-scraper/internal/browser"
	"github.com/trendhaul/farfetch-scraper/internal/config"
	"github.com/trendhaul/farfetch-scraper/internal/database"
	"github.com/trendhaul/farfetch-scraper/internal/events"
	"github.com/trendhaul/farfetch-scraper/internal/fetch"
	"github.com/trendhaul/farfetch-scraper/internal/ratelimit"
	"github.com/trendhaul/farfetch-scraper/internal/scraper"
	"github.com/trendhaul/farfetch-scraper/internal/storage"
	"github.com/trendhaul/farfetch-scraper/pkg/logger"
)

func main() {
	var (
		urlList = flag.String("urls", "", "comma-separated product page URLs")
		urlFile = flag.String("file", "", "file with one product URL per line")
		persist = flag.Bool("persist", false, "store products and stage events in Postgres")
		store   = flag.String("store", "", "JSON file to merge scraped products into")
		pretty  = flag.Bool("pretty", false, "indent the JSON output")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log = log.With("component", "main")

	urls, err := collectURLs(*urlList, *urlFile)
	if err != nil {
		log.Error("failed to read URLs", "error", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		log.Error("no URLs given, use -urls or -file")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pacer := ratelimit.NewAdaptivePacer(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay)

	var fetcher scraper.Fetcher
	if cfg.Scraper.FetchMode == "browser" {
		browserFetcher, err := browser.New(cfg.Scraper, pacer)
		if err != nil {
			log.Error("failed to start browser", "error", err)
			os.Exit(1)
		}
		defer browserFetcher.Close()
		fetcher = browserFetcher
	} else {
		fetcher = fetch.NewClient(cfg.Scraper, pacer)
	}

	s, err := scraper.New(cfg.Scraper, fetcher)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("starting batch",
		"urls", len(urls),
		"concurrency", cfg.Scraper.ConcurrentLimit,
		"fetch_mode", cfg.Scraper.FetchMode,
		"target_brands", cfg.Scraper.TargetBrands)

	products, diagnostics, err := s.ScrapeProducts(ctx, urls)
	if err != nil {
		log.Error("batch aborted", "error", err)
		os.Exit(1)
	}

	if *persist {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		published := events.NewPublisher(db).PublishBatch(ctx, products)
		log.Info("products persisted", "published", published, "total", len(products))
	}

	if *store != "" {
		fileStore, err := storage.NewFileStore(*store)
		if err != nil {
			log.Error("failed to open store file", "path", *store, "error", err)
			os.Exit(1)
		}
		if err := fileStore.SaveBatch(products); err != nil {
			log.Error("failed to save products", "path", *store, "error", err)
			os.Exit(1)
		}
		log.Info("products stored", "path", *store, "total", fileStore.Len())
	}

	out := map[string]any{
		"products":    products,
		"diagnostics": diagnostics,
	}
	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		log.Error("failed to write output", "error", err)
		os.Exit(1)
	}
}

func collectURLs(urlList, urlFile string) ([]string, error) {
	var urls []string
	for _, u := range strings.Split(urlList, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}

	if urlFile != "" {
		data, err := os.ReadFile(urlFile)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			urls = append(urls, line)
		}
	}
	return urls, nil
}
