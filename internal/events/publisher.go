package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trendhaul/farfetch-scraper/internal/database"
	"github.com/trendhaul/farfetch-scraper/internal/models"
)

const (
	EventProductScraped = "PRODUCT_SCRAPED"

	aggregateProduct = "product"
)

// scrapedPayload is the wire shape of a PRODUCT_SCRAPED event.
type scrapedPayload struct {
	Product   *models.Product `json:"product"`
	ScrapedAt time.Time       `json:"scraped_at"`
}

// Publisher stores a scraped product and its lifecycle event in one
// transaction. Downstream consumers read the event from the Redis
// stream once the relay has delivered it.
type Publisher struct {
	db       *database.DB
	products *database.ProductRepository
	outbox   *database.OutboxRepository
	logger   *slog.Logger
}

func NewPublisher(db *database.DB) *Publisher {
	return &Publisher{
		db:       db,
		products: database.NewProductRepository(db),
		outbox:   database.NewOutboxRepository(db),
		logger:   slog.Default().With("component", "publisher"),
	}
}

// PublishScraped upserts the product row and stages a PRODUCT_SCRAPED
// event atomically. Either both are committed or neither.
func (p *Publisher) PublishScraped(ctx context.Context, product *models.Product) error {
	payload, err := json.Marshal(scrapedPayload{
		Product:   product,
		ScrapedAt: product.ScrapedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	err = p.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := p.products.UpsertWithTx(ctx, tx, product); err != nil {
			return err
		}
		return p.outbox.InsertWithTx(ctx, tx, &database.OutboxEvent{
			AggregateType: aggregateProduct,
			AggregateID:   product.URL,
			EventType:     EventProductScraped,
			Payload:       payload,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", EventProductScraped, err)
	}

	p.logger.Info("event staged",
		"event_type", EventProductScraped,
		"url", product.URL,
		"brand", product.Brand)
	return nil
}

// PublishBatch publishes every product of a finished batch. A failing
// product is logged and skipped so one bad row cannot sink the batch.
func (p *Publisher) PublishBatch(ctx context.Context, products []*models.Product) int {
	published := 0
	for _, product := range products {
		if err := p.PublishScraped(ctx, product); err != nil {
			p.logger.Error("failed to publish product", "url", product.URL, "error", err)
			continue
		}
		published++
	}
	return published
}
