package models

import (
	"strings"
	"time"
)

// ExtractionSource records which parsing strategy produced a product.
type ExtractionSource string

const (
	SourceStructured ExtractionSource = "structured"
	SourceMarkup     ExtractionSource = "markup"
	SourceMerged     ExtractionSource = "merged"
)

// maxPlausiblePrice guards against parsing artifacts (concatenated digits,
// thousands separators read as decimals).
const maxPlausiblePrice = 10000

type Product struct {
	URL            string           `json:"url"`
	Title          string           `json:"title"`
	Brand          string           `json:"brand"`
	Description    string           `json:"description,omitempty"`
	Color          string           `json:"color,omitempty"`
	ProductGroupID string           `json:"product_group_id,omitempty"`
	Price          *Price           `json:"price,omitempty"`
	Images         []Image          `json:"images"`
	Variants       []Variant        `json:"variants"`
	Source         ExtractionSource `json:"extraction_source"`
	ScrapedAt      time.Time        `json:"scraped_at"`
}

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type Image struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Variant is one purchasable configuration (a size, usually).
type Variant struct {
	SKU       string `json:"sku,omitempty"`
	Label     string `json:"label"`
	ImageURL  string `json:"image_url,omitempty"`
	Available bool   `json:"available"`
	Price     *Price `json:"price,omitempty"`
}

type ScrapeResult struct {
	Product *Product `json:"product,omitempty"`
	Error   *Error   `json:"error,omitempty"`
	Success bool     `json:"success"`
}

type Error struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
	URL     string    `json:"url,omitempty"`
}

func NewProduct(url string, source ExtractionSource) *Product {
	return &Product{
		URL:       url,
		Source:    source,
		ScrapedAt: time.Now(),
		Images:    make([]Image, 0),
		Variants:  make([]Variant, 0),
	}
}

// Empty reports whether the product carries neither title nor brand.
// Such results are treated as extraction failures, not partial products.
func (p *Product) Empty() bool {
	return p == nil || (strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Brand) == "")
}

func (p *Price) IsValid() bool {
	return p != nil && p.Amount >= 0 && p.Amount <= maxPlausiblePrice && p.Currency != ""
}

// DedupeImages removes repeated image URLs, keeping page display order.
func (p *Product) DedupeImages() {
	seen := make(map[string]struct{}, len(p.Images))
	out := p.Images[:0]
	for _, img := range p.Images {
		if img.URL == "" {
			continue
		}
		if _, ok := seen[img.URL]; ok {
			continue
		}
		seen[img.URL] = struct{}{}
		out = append(out, img)
	}
	p.Images = out
}

// DedupeVariants collapses variants sharing a label, keeping the first
// occurrence. Render order reflects the site's ordering.
func (p *Product) DedupeVariants() {
	seen := make(map[string]struct{}, len(p.Variants))
	out := p.Variants[:0]
	for _, v := range p.Variants {
		key := strings.ToLower(strings.TrimSpace(v.Label))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	p.Variants = out
}

// ImageURLs returns the image URLs in display order.
func (p *Product) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, img.URL)
	}
	return urls
}
