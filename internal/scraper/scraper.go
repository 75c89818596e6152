package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/trendhaul/farfetch-scraper/internal/config"
	"github.com/trendhaul/farfetch-scraper/internal/parser"
)

var (
	// ErrFetch marks a page that could not be retrieved after retries.
	ErrFetch = errors.New("page fetch failed")
	// ErrExtraction marks a page that yielded no usable product from
	// either extraction strategy.
	ErrExtraction = errors.New("no product extracted")
	// ErrBrandFiltered marks a product rejected by the target-brand
	// filter. Not a failure, just an omission.
	ErrBrandFiltered = errors.New("brand not in target list")
)

// Fetcher retrieves the markup of a product page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Scraper runs the full extraction pipeline for product pages: fetch,
// parse via both strategies, merge, filter.
type Scraper struct {
	cfg        config.ScraperConfig
	fetcher    Fetcher
	structured *parser.StructuredParser
	markup     *parser.MarkupParser
	logger     *slog.Logger
}

// New validates the configuration and assembles the pipeline. A bad
// configuration is the only fatal error in the scraping path.
func New(cfg config.ScraperConfig, fetcher Fetcher) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scraper configuration: %w", err)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("invalid scraper configuration: fetcher is required")
	}

	return &Scraper{
		cfg:        cfg,
		fetcher:    fetcher,
		structured: parser.NewStructuredParser(cfg.DefaultCurrency),
		markup:     parser.NewMarkupParser(),
		logger:     slog.Default().With("component", "scraper"),
	}, nil
}
