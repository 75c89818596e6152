package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trendhaul/farfetch-scraper/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductRepository persists scraped products, keyed by product URL.
// A re-scrape of the same URL replaces the stored snapshot.
type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// UpsertWithTx writes the product inside an existing transaction so the
// row and its outbox event commit together.
func (r *ProductRepository) UpsertWithTx(ctx context.Context, tx pgx.Tx, p *models.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}
	variants, err := json.Marshal(p.Variants)
	if err != nil {
		return fmt.Errorf("failed to marshal variants: %w", err)
	}

	var priceAmount *float64
	var priceCurrency *string
	if p.Price != nil {
		priceAmount = &p.Price.Amount
		priceCurrency = &p.Price.Currency
	}

	query := `
		INSERT INTO products (
			url, title, brand, description, color, product_group_id,
			price_amount, price_currency, images, variants,
			extraction_source, scraped_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			brand = EXCLUDED.brand,
			description = EXCLUDED.description,
			color = EXCLUDED.color,
			product_group_id = EXCLUDED.product_group_id,
			price_amount = EXCLUDED.price_amount,
			price_currency = EXCLUDED.price_currency,
			images = EXCLUDED.images,
			variants = EXCLUDED.variants,
			extraction_source = EXCLUDED.extraction_source,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = EXCLUDED.updated_at`

	_, err = tx.Exec(ctx, query,
		p.URL, p.Title, p.Brand, p.Description, p.Color, p.ProductGroupID,
		priceAmount, priceCurrency, images, variants,
		string(p.Source), p.ScrapedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetByURL(ctx context.Context, url string) (*models.Product, error) {
	query := `
		SELECT url, title, brand, description, color, product_group_id,
			price_amount, price_currency, images, variants,
			extraction_source, scraped_at
		FROM products
		WHERE url = $1`

	p, err := scanProduct(r.db.pool.QueryRow(ctx, query, url))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListRecent returns the most recently scraped products, newest first.
func (r *ProductRepository) ListRecent(ctx context.Context, limit int) ([]*models.Product, error) {
	query := `
		SELECT url, title, brand, description, color, product_group_id,
			price_amount, price_currency, images, variants,
			extraction_source, scraped_at
		FROM products
		ORDER BY scraped_at DESC
		LIMIT $1`

	rows, err := r.db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p             models.Product
		source        string
		priceAmount   *float64
		priceCurrency *string
		images        []byte
		variants      []byte
	)
	err := row.Scan(
		&p.URL, &p.Title, &p.Brand, &p.Description, &p.Color, &p.ProductGroupID,
		&priceAmount, &priceCurrency, &images, &variants,
		&source, &p.ScrapedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Source = models.ExtractionSource(source)
	if priceAmount != nil && priceCurrency != nil {
		p.Price = &models.Price{Amount: *priceAmount, Currency: *priceCurrency}
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if err := json.Unmarshal(variants, &p.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}
	return &p, nil
}
