package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trendhaul/farfetch-scraper/internal/models"
	"github.com/trendhaul/farfetch-scraper/internal/parser"
)

// ScrapeProduct runs the pipeline for one URL: fetch the page, run both
// extraction strategies, merge their results and apply the brand filter.
func (s *Scraper) ScrapeProduct(ctx context.Context, url string) (*models.Product, error) {
	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}

	structured := s.structured.Parse(html, url)
	markup := s.markup.Parse(html, url)

	product := parser.Merge(structured, markup)
	if product.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrExtraction, url)
	}

	if !s.cfg.MatchesBrand(product.Brand) {
		s.logger.Debug("product skipped by brand filter", "url", url, "brand", product.Brand)
		return nil, fmt.Errorf("%w: %q", ErrBrandFiltered, product.Brand)
	}

	s.logger.Info("product scraped",
		"url", url,
		"brand", product.Brand,
		"source", product.Source,
		"variants", len(product.Variants))
	return product, nil
}

// ScrapeProducts processes a batch of URLs with bounded concurrency.
// Products come back in input-URL order regardless of completion order.
// A URL that fails is omitted from the products and reported in the
// returned diagnostics; only context cancellation aborts the batch.
func (s *Scraper) ScrapeProducts(ctx context.Context, urls []string) ([]*models.Product, []models.ScrapeResult, error) {
	results := make([]*models.Product, len(urls))
	failures := make([]*models.Error, len(urls))

	sem := make(chan struct{}, s.cfg.ConcurrentLimit)
	var wg sync.WaitGroup

	for i, url := range urls {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			defer func() { <-sem }()

			product, err := s.ScrapeProduct(ctx, url)
			if err != nil {
				failures[i] = classifyFailure(url, err)
				return
			}
			results[i] = product
		}(i, url)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	products := make([]*models.Product, 0, len(urls))
	diagnostics := make([]models.ScrapeResult, 0)
	for i := range urls {
		if results[i] != nil {
			products = append(products, results[i])
			diagnostics = append(diagnostics, models.ScrapeResult{Product: results[i], Success: true})
			continue
		}
		if failures[i] != nil {
			diagnostics = append(diagnostics, models.ScrapeResult{Error: failures[i]})
		}
	}

	s.logger.Info("batch finished",
		"requested", len(urls),
		"scraped", len(products),
		"failed", len(diagnostics)-len(products))
	return products, diagnostics, nil
}

// classifyFailure maps a pipeline error to a diagnostic record. Brand
// rejections produce no record at all; they are expected omissions.
func classifyFailure(url string, err error) *models.Error {
	if errors.Is(err, ErrBrandFiltered) {
		return nil
	}

	code := "extraction_failed"
	if errors.Is(err, ErrFetch) || errors.Is(err, context.DeadlineExceeded) {
		code = "fetch_failed"
	}
	return &models.Error{
		Code:    code,
		Message: err.Error(),
		Time:    time.Now(),
		URL:     url,
	}
}
