package parser

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/trendhaul/farfetch-scraper/internal/models"
)

const maxGalleryImages = 10

// MarkupParser extracts a product straight from page elements, for pages
// where structured data is missing or incomplete. Every field lookup is
// independently fallible and defaults to empty.
type MarkupParser struct {
	logger *slog.Logger
}

func NewMarkupParser() *MarkupParser {
	return &MarkupParser{
		logger: slog.Default().With("component", "markup_parser"),
	}
}

var (
	titleSelectors = []string{
		`h1[data-testid="product-name"]`,
		`h1[data-testid="product-title"]`,
		"h1.product-name",
		`h1[class*="product"]`,
		"h1",
		".product-title",
		`[data-testid*="title"]`,
	}
	brandSelectors = []string{
		`[data-testid="brand"]`,
		".brand",
		`h2[class*="brand"]`,
		`[class*="brand"]`,
		`[data-testid*="brand"]`,
		".product-brand",
	}
	descriptionSelectors = []string{
		`[data-testid="description"]`,
		".product-description",
		`[class*="description"]`,
		`[data-testid*="description"]`,
		".product-details",
	}
	priceSelectors = []string{
		`[data-testid="price"]`,
		`[data-testid*="price"]`,
		".product-price",
		`[class*="price"]`,
	}
	gallerySelectors = []string{
		".product-image img",
		`[data-testid*="image"] img`,
		".gallery img",
		".product-gallery img",
		`[class*="gallery"] img`,
		`img[src*="farfetch"]`,
	}
	sizeSelectors = []string{
		`[data-testid="size-selector"] button`,
		`[data-testid*="size"]`,
		".size-selector button",
		".size-option",
		`[class*="size"] button`,
		".product-sizes button",
	}
)

// Parse builds a product field-by-field from selector lookups. Returns
// nil when the page carries neither title nor brand.
func (p *MarkupParser) Parse(html, pageURL string) *models.Product {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		p.logger.Warn("unreadable markup", "url", pageURL, "error", err)
		return nil
	}

	product := models.NewProduct(pageURL, models.SourceMarkup)
	product.Title = p.firstText(doc, titleSelectors)
	product.Brand = p.firstText(doc, brandSelectors)
	product.Description = p.firstText(doc, descriptionSelectors)
	product.Price = p.extractPrice(doc)
	product.Images = p.extractImages(doc)
	product.Variants = p.extractVariants(doc)
	product.DedupeImages()
	product.DedupeVariants()

	if product.Empty() {
		return nil
	}
	return product
}

func (p *MarkupParser) firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		text := CleanText(doc.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

func (p *MarkupParser) extractPrice(doc *goquery.Document) *models.Price {
	for _, selector := range priceSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text == "" {
			continue
		}
		amount := ParseAmount(text)
		if amount <= 0 {
			continue
		}
		price := &models.Price{Amount: amount, Currency: DetectCurrency(text)}
		if price.Currency == "" {
			// Leave the price absent rather than guess a currency here;
			// the merge step prefers the structured price anyway.
			continue
		}
		if price.IsValid() {
			return price
		}
	}
	return nil
}

// extractImages walks the gallery preferring the largest srcset candidate
// over the thumbnail src, and strips resize query parameters so duplicate
// renditions of one asset collapse into a single URL.
func (p *MarkupParser) extractImages(doc *goquery.Document) []models.Image {
	var images []models.Image
	seen := make(map[string]struct{})

	for _, selector := range gallerySelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			if len(images) >= maxGalleryImages {
				return
			}
			src := bestImageURL(s)
			if src == "" {
				return
			}
			src = stripResizeParams(src)
			if _, ok := seen[src]; ok {
				return
			}
			seen[src] = struct{}{}
			alt, _ := s.Attr("alt")
			images = append(images, models.Image{URL: src, Description: CleanText(alt)})
		})
		if len(images) >= maxGalleryImages {
			break
		}
	}
	return images
}

// bestImageURL picks the highest-resolution URL an <img> advertises:
// an explicit zoom attribute first, then the widest srcset entry, then
// the plain (possibly lazy-loaded) source.
func bestImageURL(s *goquery.Selection) string {
	if zoom, ok := s.Attr("data-zoom-image"); ok && zoom != "" {
		return zoom
	}
	if srcset, ok := s.Attr("srcset"); ok {
		if best := largestSrcsetCandidate(srcset); best != "" {
			return best
		}
	}
	for _, attr := range []string{"src", "data-src", "data-lazy"} {
		if src, ok := s.Attr(attr); ok && src != "" {
			return src
		}
	}
	return ""
}

// largestSrcsetCandidate returns the srcset URL with the biggest width
// descriptor ("url 480w, url 1080w" style).
func largestSrcsetCandidate(srcset string) string {
	var bestURL string
	var bestWidth int
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(candidate))
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
			width, _ = strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
		}
		if bestURL == "" || width > bestWidth {
			bestURL = fields[0]
			bestWidth = width
		}
	}
	return bestURL
}

var resizeParams = map[string]struct{}{
	"w": {}, "h": {}, "width": {}, "height": {},
	"fit": {}, "quality": {}, "q": {}, "resize": {}, "dpr": {},
}

func stripResizeParams(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	for param := range resizeParams {
		q.Del(param)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// extractVariants enumerates the option elements of the size-selector
// region: one variant per option, availability read from the element's
// disabled markers. Duplicate labels keep the first occurrence.
func (p *MarkupParser) extractVariants(doc *goquery.Document) []models.Variant {
	var variants []models.Variant
	for _, selector := range sizeSelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			label := CleanText(s.Text())
			if label == "" || isSizePlaceholder(label) {
				return
			}
			variants = append(variants, models.Variant{
				Label:     label,
				Available: !optionDisabled(s),
			})
		})
		if len(variants) > 0 {
			break
		}
	}
	return variants
}

func isSizePlaceholder(label string) bool {
	lower := strings.ToLower(label)
	return strings.Contains(lower, "select") || strings.Contains(lower, "choose")
}

func optionDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if v, ok := s.Attr("aria-disabled"); ok && v == "true" {
		return true
	}
	if v, ok := s.Attr("data-available"); ok && v == "false" {
		return true
	}
	class, _ := s.Attr("class")
	class = strings.ToLower(class)
	for _, marker := range []string{"disabled", "unavailable", "out-of-stock", "sold-out"} {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return false
}
