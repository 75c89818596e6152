package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendhaul/farfetch-scraper/internal/database"
	"github.com/trendhaul/farfetch-scraper/internal/models"
)

type fakeScraper struct {
	products    []*models.Product
	diagnostics []models.ScrapeResult
	err         error
	gotURLs     []string
}

func (f *fakeScraper) ScrapeProducts(ctx context.Context, urls []string) ([]*models.Product, []models.ScrapeResult, error) {
	f.gotURLs = urls
	return f.products, f.diagnostics, f.err
}

type fakeStore struct {
	byURL map[string]*models.Product
}

func (f *fakeStore) GetByURL(ctx context.Context, url string) (*models.Product, error) {
	if p, ok := f.byURL[url]; ok {
		return p, nil
	}
	return nil, database.ErrProductNotFound
}

func (f *fakeStore) ListRecent(ctx context.Context, limit int) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range f.byURL {
		if len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func sampleProduct(url string) *models.Product {
	p := models.NewProduct(url, models.SourceStructured)
	p.Title = "Leather Jacket"
	p.Brand = "Acme Studio"
	return p
}

func postScrape(t *testing.T, h *Handlers, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)
	return rec
}

func TestHandleScrape(t *testing.T) {
	scraper := &fakeScraper{
		products: []*models.Product{sampleProduct("https://example.com/item/1")},
		diagnostics: []models.ScrapeResult{
			{Product: sampleProduct("https://example.com/item/1"), Success: true},
		},
	}
	h := NewHandlers(scraper, nil, nil)

	rec := postScrape(t, h, scrapeRequest{URLs: []string{"https://example.com/item/1"}})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp scrapeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Requested)
	assert.Equal(t, 1, resp.Scraped)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, "Acme Studio", resp.Products[0].Brand)
	assert.Equal(t, []string{"https://example.com/item/1"}, scraper.gotURLs)
}

func TestHandleScrapeValidation(t *testing.T) {
	h := NewHandlers(&fakeScraper{}, nil, nil)

	t.Run("empty urls", func(t *testing.T) {
		rec := postScrape(t, h, scrapeRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized batch", func(t *testing.T) {
		urls := make([]string, maxBatchSize+1)
		for i := range urls {
			urls[i] = "https://example.com/item"
		}
		rec := postScrape(t, h, scrapeRequest{URLs: urls})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		NewRouter(h).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleScrapeServiceError(t *testing.T) {
	h := NewHandlers(&fakeScraper{err: errors.New("boom")}, nil, nil)

	rec := postScrape(t, h, scrapeRequest{URLs: []string{"https://example.com/item/1"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleGetProduct(t *testing.T) {
	store := &fakeStore{byURL: map[string]*models.Product{
		"https://example.com/item/1": sampleProduct("https://example.com/item/1"),
	}}
	h := NewHandlers(&fakeScraper{}, store, nil)
	router := NewRouter(h)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/lookup?url=https%3A%2F%2Fexample.com%2Fitem%2F1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var p models.Product
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, "Leather Jacket", p.Title)
	})

	t.Run("not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/lookup?url=https%3A%2F%2Fexample.com%2Fmissing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing url param", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/lookup", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleListProductsWithoutStore(t *testing.T) {
	h := NewHandlers(&fakeScraper{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&fakeScraper{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
