package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/trendhaul/farfetch-scraper/internal/database"
	"github.com/trendhaul/farfetch-scraper/internal/models"
)

// maxBatchSize caps URLs per scrape request; bigger batches belong in
// the CLI, not a synchronous HTTP call.
const maxBatchSize = 50

// ScrapeService runs scraping batches.
type ScrapeService interface {
	ScrapeProducts(ctx context.Context, urls []string) ([]*models.Product, []models.ScrapeResult, error)
}

// ProductStore reads persisted products.
type ProductStore interface {
	GetByURL(ctx context.Context, url string) (*models.Product, error)
	ListRecent(ctx context.Context, limit int) ([]*models.Product, error)
}

// EventSink records scraped products for downstream consumers.
type EventSink interface {
	PublishBatch(ctx context.Context, products []*models.Product) int
}

type Handlers struct {
	scraper   ScrapeService
	products  ProductStore
	publisher EventSink
	logger    *slog.Logger
}

// NewHandlers wires the API surface. products and publisher may be nil
// when the service runs without persistence.
func NewHandlers(scraper ScrapeService, products ProductStore, publisher EventSink) *Handlers {
	return &Handlers{
		scraper:   scraper,
		products:  products,
		publisher: publisher,
		logger:    slog.Default().With("component", "api"),
	}
}

type scrapeRequest struct {
	URLs []string `json:"urls"`
}

type scrapeResponse struct {
	Products    []*models.Product     `json:"products"`
	Diagnostics []models.ScrapeResult `json:"diagnostics"`
	Requested   int                   `json:"requested"`
	Scraped     int                   `json:"scraped"`
}

// HandleScrape runs a synchronous scrape of the posted URLs.
func (h *Handlers) HandleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.URLs) == 0 {
		h.writeError(w, http.StatusBadRequest, "urls must not be empty")
		return
	}
	if len(req.URLs) > maxBatchSize {
		h.writeError(w, http.StatusBadRequest, "too many urls in one batch")
		return
	}

	products, diagnostics, err := h.scraper.ScrapeProducts(r.Context(), req.URLs)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("scrape batch failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "scrape failed")
		return
	}

	if h.publisher != nil {
		h.publisher.PublishBatch(r.Context(), products)
	}

	h.writeJSON(w, http.StatusOK, scrapeResponse{
		Products:    products,
		Diagnostics: diagnostics,
		Requested:   len(req.URLs),
		Scraped:     len(products),
	})
}

// HandleListProducts returns the most recently scraped products.
func (h *Handlers) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	if h.products == nil {
		h.writeError(w, http.StatusNotImplemented, "persistence is not configured")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	products, err := h.products.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// HandleGetProduct looks up a stored product by its page URL.
func (h *Handlers) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	if h.products == nil {
		h.writeError(w, http.StatusNotImplemented, "persistence is not configured")
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		h.writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	product, err := h.products.GetByURL(r.Context(), url)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to get product", "url", url, "error", err)
		h.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
