package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendhaul/farfetch-scraper/internal/models"
)

func ldPage(block string) string {
	return fmt.Sprintf(`<html><head>
<script type="application/ld+json">%s</script>
</head><body></body></html>`, block)
}

func TestStructuredParseProductGroup(t *testing.T) {
	html := ldPage(`{
		"@type": "ProductGroup",
		"name": "Leather Biker Jacket",
		"brand": {"@type": "Brand", "name": "Acme Studio"},
		"description": "Classic biker silhouette.",
		"color": "Black",
		"productGroupID": "18234567",
		"url": "https://www.farfetch.com/shopping/item-18234567.aspx",
		"image": [
			{"@type": "ImageObject", "contentUrl": "https://img.example.com/1.jpg", "description": "front"},
			{"@type": "ImageObject", "contentUrl": "https://img.example.com/2.jpg"}
		],
		"hasVariant": [
			{"sku": "A1", "size": "S", "image": "https://img.example.com/1.jpg",
			 "offers": {"price": "850.00", "priceCurrency": "EUR", "availability": "https://schema.org/InStock"}},
			{"sku": "A2", "size": "M",
			 "offers": {"price": "850.00", "priceCurrency": "EUR", "availability": "https://schema.org/OutOfStock"}}
		]
	}`)

	p := NewStructuredParser("USD")
	product := p.Parse(html, "https://www.farfetch.com/original")
	require.NotNil(t, product)

	assert.Equal(t, "https://www.farfetch.com/shopping/item-18234567.aspx", product.URL)
	assert.Equal(t, "Leather Biker Jacket", product.Title)
	assert.Equal(t, "Acme Studio", product.Brand)
	assert.Equal(t, "Classic biker silhouette.", product.Description)
	assert.Equal(t, "Black", product.Color)
	assert.Equal(t, "18234567", product.ProductGroupID)
	assert.Equal(t, models.SourceStructured, product.Source)

	require.NotNil(t, product.Price)
	assert.Equal(t, 850.0, product.Price.Amount)
	assert.Equal(t, "EUR", product.Price.Currency)

	require.Len(t, product.Images, 2)
	assert.Equal(t, "front", product.Images[0].Description)

	require.Len(t, product.Variants, 2)
	assert.Equal(t, "A1", product.Variants[0].SKU)
	assert.True(t, product.Variants[0].Available)
	assert.False(t, product.Variants[1].Available)
}

func TestStructuredParseTypeVariations(t *testing.T) {
	tests := []struct {
		name      string
		typeField string
		wantHit   bool
	}{
		{"product string", `"Product"`, true},
		{"product group string", `"ProductGroup"`, true},
		{"type array", `["Thing", "Product"]`, true},
		{"unrelated type", `"BreadcrumbList"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := ldPage(fmt.Sprintf(`{"@type": %s, "name": "Scarf", "brand": "Acme"}`, tt.typeField))
			product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
			if tt.wantHit {
				require.NotNil(t, product)
				assert.Equal(t, "Scarf", product.Title)
			} else {
				assert.Nil(t, product)
			}
		})
	}
}

func TestStructuredParseFirstProductBlockWins(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{"@type": "BreadcrumbList"}</script>
<script type="application/ld+json">{"@type": "Product", "name": "First Hit", "brand": "Acme"}</script>
<script type="application/ld+json">{"@type": "Product", "name": "Second Hit", "brand": "Other"}</script>
</head><body></body></html>`

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)
	assert.Equal(t, "First Hit", product.Title)
}

func TestStructuredParseMalformedBlockSkipped(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">{not valid json</script>
<script type="application/ld+json">{"@type": "Product", "name": "Survivor", "brand": "Acme"}</script>
</head><body></body></html>`

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)
	assert.Equal(t, "Survivor", product.Title)
}

func TestStructuredParseImplicitVariant(t *testing.T) {
	html := ldPage(`{
		"@type": "Product", "name": "Silk Scarf", "brand": "Acme",
		"offers": {"price": "120", "priceCurrency": "EUR"}
	}`)

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)

	require.Len(t, product.Variants, 1)
	assert.Equal(t, "Silk Scarf", product.Variants[0].Label)
	assert.True(t, product.Variants[0].Available)
	require.NotNil(t, product.Variants[0].Price)
	assert.Equal(t, 120.0, product.Variants[0].Price.Amount)
}

func TestStructuredParsePriceSpecification(t *testing.T) {
	html := ldPage(`{
		"@type": "Product", "name": "Boots", "brand": "Acme",
		"offers": {
			"price": "999999",
			"priceSpecification": [{"price": "450.00", "priceCurrency": "GBP"}]
		}
	}`)

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)
	require.NotNil(t, product.Price)
	assert.Equal(t, 450.0, product.Price.Amount)
	assert.Equal(t, "GBP", product.Price.Currency)
}

func TestStructuredParseCurrencyFallback(t *testing.T) {
	html := ldPage(`{
		"@type": "Product", "name": "Belt", "brand": "Acme",
		"offers": {"price": "85"}
	}`)

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)
	require.NotNil(t, product.Price)
	assert.Equal(t, "USD", product.Price.Currency)
}

func TestStructuredParseDropsImplausibleVariantPrice(t *testing.T) {
	html := ldPage(`{
		"@type": "ProductGroup", "name": "Jacket", "brand": "Acme",
		"hasVariant": [
			{"sku": "OK", "size": "S", "offers": {"price": "850", "priceCurrency": "EUR"}},
			{"sku": "BAD", "size": "M", "offers": {"price": "8503500", "priceCurrency": "EUR"}}
		]
	}`)

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)
	require.Len(t, product.Variants, 1)
	assert.Equal(t, "OK", product.Variants[0].SKU)
}

func TestStructuredParseImageShapes(t *testing.T) {
	tests := []struct {
		name  string
		image string
		want  []string
	}{
		{"string array", `["https://a.jpg", "https://b.jpg"]`, []string{"https://a.jpg", "https://b.jpg"}},
		{"single string", `"https://a.jpg"`, []string{"https://a.jpg"}},
		{"object array", `[{"url": "https://a.jpg"}]`, []string{"https://a.jpg"}},
		{"duplicates collapse", `["https://a.jpg", "https://a.jpg"]`, []string{"https://a.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := ldPage(fmt.Sprintf(`{"@type": "Product", "name": "X", "brand": "Acme", "image": %s}`, tt.image))
			product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
			require.NotNil(t, product)
			assert.Equal(t, tt.want, product.ImageURLs())
		})
	}
}

func TestStructuredParseUnparsablePriceText(t *testing.T) {
	html := ldPage(`{
		"@type": "Product", "name": "Belt", "brand": "Acme",
		"offers": {"price": "N/A", "priceCurrency": "EUR"}
	}`)

	// A price that fails to parse drops the field, never the block.
	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)
	assert.Equal(t, "Belt", product.Title)
	assert.Nil(t, product.Price)
}

func TestStructuredParseEmptyPriceString(t *testing.T) {
	html := ldPage(`{
		"@type": "Product", "name": "Belt", "brand": "Acme",
		"offers": {"price": "", "priceCurrency": "EUR"}
	}`)

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)
	assert.Nil(t, product.Price)
}

func TestStructuredParseOffersArray(t *testing.T) {
	html := ldPage(`{
		"@type": "Product", "name": "Belt", "brand": "Acme",
		"offers": [
			{"price": "85", "priceCurrency": "EUR", "availability": "https://schema.org/InStock"},
			{"price": "90", "priceCurrency": "EUR"}
		]
	}`)

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)

	require.NotNil(t, product.Price)
	assert.Equal(t, 85.0, product.Price.Amount)
	require.NotEmpty(t, product.Variants)
	assert.True(t, product.Variants[0].Available)
}

func TestStructuredParseMalformedOffersShape(t *testing.T) {
	html := ldPage(`{
		"@type": "Product", "name": "Belt", "brand": "Acme",
		"offers": "call us"
	}`)

	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	require.NotNil(t, product)
	assert.Equal(t, "Belt", product.Title)
	assert.Nil(t, product.Price)
}

func TestStructuredParseNoBlocks(t *testing.T) {
	product := NewStructuredParser("USD").Parse("<html><body><h1>hi</h1></body></html>", "https://example.com/p")
	assert.Nil(t, product)
}

func TestStructuredParseEmptyProductRejected(t *testing.T) {
	html := ldPage(`{"@type": "Product", "description": "no name or brand"}`)
	product := NewStructuredParser("USD").Parse(html, "https://example.com/p")
	assert.Nil(t, product)
}
