package parser

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/trendhaul/farfetch-scraper/internal/models"
)

// StructuredParser extracts a product from JSON-LD blocks embedded in page
// markup. Farfetch emits exactly one canonical ProductGroup block per
// product page; only the first block of a product type is used.
type StructuredParser struct {
	defaultCurrency string
	logger          *slog.Logger
}

func NewStructuredParser(defaultCurrency string) *StructuredParser {
	return &StructuredParser{
		defaultCurrency: defaultCurrency,
		logger:          slog.Default().With("component", "jsonld_parser"),
	}
}

// ldType tolerates "@type" being either a string or an array of strings.
type ldType []string

func (t *ldType) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = ldType{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*t = ldType(many)
		return nil
	}
	// Unrecognized shape is not fatal; the block just won't match.
	*t = nil
	return nil
}

func (t ldType) isProduct() bool {
	for _, v := range t {
		if v == "Product" || v == "ProductGroup" {
			return true
		}
	}
	return false
}

type ldBrand struct {
	Name string `json:"name"`
}

func (b *ldBrand) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		b.Name = name
		return nil
	}
	type alias ldBrand
	var a alias
	if err := json.Unmarshal(data, &a); err == nil {
		b.Name = a.Name
	}
	return nil
}

type ldImage struct {
	ContentURL  string `json:"contentUrl"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// ldPrice tolerates the price being a JSON number, a numeric string, or
// arbitrary display text ("N/A"). Values that fail to decode become
// empty, which drops the price field without touching the rest of the
// block.
type ldPrice string

func (p *ldPrice) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*p = ldPrice(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = ldPrice(s)
		return nil
	}
	*p = ""
	return nil
}

type ldPriceSpec struct {
	Price         ldPrice `json:"price"`
	PriceCurrency string  `json:"priceCurrency"`
}

type ldOffer struct {
	URL                string        `json:"url"`
	Availability       string        `json:"availability"`
	Price              ldPrice       `json:"price"`
	PriceCurrency      string        `json:"priceCurrency"`
	PriceSpecification []ldPriceSpec `json:"priceSpecification"`
}

// ldOffers tolerates "offers" being a single object or an array of
// offers. An unrecognizable shape decodes to nil, dropping the field.
type ldOffers []ldOffer

func (o *ldOffers) UnmarshalJSON(data []byte) error {
	var many []ldOffer
	if err := json.Unmarshal(data, &many); err == nil {
		*o = many
		return nil
	}
	var single ldOffer
	if err := json.Unmarshal(data, &single); err == nil {
		*o = ldOffers{single}
		return nil
	}
	*o = nil
	return nil
}

func (o ldOffers) first() *ldOffer {
	if len(o) == 0 {
		return nil
	}
	return &o[0]
}

type ldVariant struct {
	SKU    string   `json:"sku"`
	Name   string   `json:"name"`
	Size   string   `json:"size"`
	Image  string   `json:"image"`
	Offers ldOffers `json:"offers"`
}

type ldProduct struct {
	Type           ldType          `json:"@type"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Color          string          `json:"color"`
	ProductGroupID string          `json:"productGroupID"`
	URL            string          `json:"url"`
	Brand          ldBrand         `json:"brand"`
	Image          json.RawMessage `json:"image"`
	HasVariant     []ldVariant     `json:"hasVariant"`
	Offers         ldOffers        `json:"offers"`
}

// Parse returns the product described by the page's structured data, or
// nil when no well-formed product block exists. Field-level problems
// leave the field empty rather than discarding the whole result.
func (p *StructuredParser) Parse(html, url string) *models.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.logger.Warn("unreadable markup", "url", url, "error", err)
		return nil
	}

	var block *ldProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		var candidate ldProduct
		if err := json.Unmarshal([]byte(s.Text()), &candidate); err != nil {
			p.logger.Debug("skipping malformed json-ld block", "url", url, "index", i)
			return true
		}
		if !candidate.Type.isProduct() {
			return true
		}
		block = &candidate
		return false
	})

	if block == nil {
		return nil
	}

	product := models.NewProduct(url, models.SourceStructured)
	if block.URL != "" {
		product.URL = block.URL
	}
	product.Title = CleanText(block.Name)
	product.Brand = CleanText(block.Brand.Name)
	product.Description = CleanText(block.Description)
	product.Color = CleanText(block.Color)
	product.ProductGroupID = block.ProductGroupID
	product.Images = p.parseImages(block.Image)
	product.Variants = p.parseVariants(block)
	product.Price = p.productPrice(block, product.Variants)
	product.DedupeImages()
	product.DedupeVariants()

	if product.Empty() {
		return nil
	}
	return product
}

func (p *StructuredParser) parseImages(raw json.RawMessage) []models.Image {
	if len(raw) == 0 {
		return nil
	}

	var objects []ldImage
	if err := json.Unmarshal(raw, &objects); err == nil {
		images := make([]models.Image, 0, len(objects))
		for _, img := range objects {
			url := img.ContentURL
			if url == "" {
				url = img.URL
			}
			if url == "" {
				continue
			}
			images = append(images, models.Image{URL: url, Description: CleanText(img.Description)})
		}
		return images
	}

	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		images := make([]models.Image, 0, len(urls))
		for _, u := range urls {
			if u != "" {
				images = append(images, models.Image{URL: u})
			}
		}
		return images
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []models.Image{{URL: single}}
	}

	return nil
}

// parseVariants builds one variant per hasVariant entry. Without those,
// the product-level offers array supplies the variants (one per offer),
// and a page with no offers at all gets a single implicit variant
// covering the whole product.
func (p *StructuredParser) parseVariants(block *ldProduct) []models.Variant {
	variants := make([]models.Variant, 0, len(block.HasVariant))
	for _, v := range block.HasVariant {
		price := p.offerPrice(v.Offers.first())
		if price != nil && !price.IsValid() {
			p.logger.Debug("dropping variant with implausible price", "sku", v.SKU)
			continue
		}
		label := v.Size
		if label == "" {
			label = CleanText(v.Name)
		}
		variants = append(variants, models.Variant{
			SKU:       v.SKU,
			Label:     label,
			ImageURL:  v.Image,
			Available: offerAvailable(v.Offers.first()),
			Price:     price,
		})
	}

	if len(variants) == 0 {
		for i := range block.Offers {
			offer := &block.Offers[i]
			variants = append(variants, models.Variant{
				Label:     CleanText(block.Name),
				Available: offerAvailable(offer),
				Price:     p.offerPrice(offer),
			})
		}
	}
	if len(variants) == 0 {
		variants = append(variants, models.Variant{
			Label:     CleanText(block.Name),
			Available: true,
		})
	}
	return variants
}

// offerPrice reads the amount from the offer's price specification,
// falling back to the flat price field. Currency defaults to the page
// locale's currency when the offer omits one.
func (p *StructuredParser) offerPrice(offer *ldOffer) *models.Price {
	if offer == nil {
		return nil
	}

	amountStr := string(offer.Price)
	currency := offer.PriceCurrency
	if len(offer.PriceSpecification) > 0 {
		spec := offer.PriceSpecification[0]
		amountStr = string(spec.Price)
		if spec.PriceCurrency != "" {
			currency = spec.PriceCurrency
		}
	}
	if amountStr == "" {
		return nil
	}
	amount := ParseAmount(amountStr)
	if amount == 0 && amountStr != "0" {
		return nil
	}
	if currency == "" {
		currency = p.defaultCurrency
	}
	return &models.Price{Amount: amount, Currency: currency}
}

func (p *StructuredParser) productPrice(block *ldProduct, variants []models.Variant) *models.Price {
	if price := p.offerPrice(block.Offers.first()); price != nil {
		return price
	}
	for _, v := range variants {
		if v.Price != nil {
			return v.Price
		}
	}
	return nil
}

func offerAvailable(offer *ldOffer) bool {
	if offer == nil {
		// Absent availability means purchasable in the schema.org sense.
		return true
	}
	if offer.Availability == "" {
		return true
	}
	return strings.Contains(offer.Availability, "InStock")
}
