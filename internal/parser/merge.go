package parser

import (
	"strings"

	"github.com/trendhaul/farfetch-scraper/internal/models"
)

// Merge reconciles the results of the two extraction strategies into one
// product. Structured data wins wherever both sources carry a value (it
// is less fragile to markup drift); markup fills the gaps. The result is
// tagged "merged" only when both sources actually contributed fields.
//
// Merge is pure: its inputs are not modified.
func Merge(structured, markup *models.Product) *models.Product {
	if structured == nil && markup == nil {
		return nil
	}
	if structured == nil {
		return clone(markup)
	}
	if markup == nil {
		return clone(structured)
	}

	out := clone(structured)
	markupUsed := false

	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			markupUsed = true
		}
	}
	fill(&out.Title, markup.Title)
	fill(&out.Brand, markup.Brand)
	fill(&out.Description, markup.Description)
	fill(&out.Color, markup.Color)

	if out.Price == nil && markup.Price != nil {
		price := *markup.Price
		out.Price = &price
		markupUsed = true
	}

	if len(out.Images) == 0 && len(markup.Images) > 0 {
		out.Images = append([]models.Image(nil), markup.Images...)
		markupUsed = true
	}

	if mergeVariants(out, markup) {
		markupUsed = true
	}

	out.DedupeImages()
	out.DedupeVariants()
	if markupUsed {
		out.Source = models.SourceMerged
	}
	return out
}

// mergeVariants unions the variant sets by label. On label collision the
// structured variant stands, including its availability flag.
func mergeVariants(out, markup *models.Product) bool {
	if len(markup.Variants) == 0 {
		return false
	}
	if len(out.Variants) == 0 {
		out.Variants = append([]models.Variant(nil), markup.Variants...)
		return true
	}

	known := make(map[string]struct{}, len(out.Variants))
	for _, v := range out.Variants {
		known[variantKey(v)] = struct{}{}
	}
	added := false
	for _, v := range markup.Variants {
		if _, ok := known[variantKey(v)]; ok {
			continue
		}
		out.Variants = append(out.Variants, v)
		known[variantKey(v)] = struct{}{}
		added = true
	}
	return added
}

func variantKey(v models.Variant) string {
	return strings.ToLower(strings.TrimSpace(v.Label))
}

func clone(p *models.Product) *models.Product {
	if p == nil {
		return nil
	}
	out := *p
	if p.Price != nil {
		price := *p.Price
		out.Price = &price
	}
	out.Images = append([]models.Image(nil), p.Images...)
	out.Variants = append([]models.Variant(nil), p.Variants...)
	return &out
}
