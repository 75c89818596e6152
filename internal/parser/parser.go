package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/trendhaul/farfetch-scraper/internal/models"
)

// ProductParser extracts a product from raw page markup. Implementations
// are pure: no network access, no shared state. A nil result means the
// page yielded nothing usable, which is expected, not exceptional.
type ProductParser interface {
	Parse(html, url string) *models.Product
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	amountRe     = regexp.MustCompile(`\d[\d\s.,]*`)
)

// CleanText collapses whitespace runs and strips stray markup fragments.
func CleanText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ParseAmount extracts a monetary amount from display text such as
// "$1,234.56" or "1 234,56 €". Returns 0 when nothing parses.
func ParseAmount(s string) float64 {
	match := amountRe.FindString(s)
	if match == "" {
		return 0
	}
	match = strings.ReplaceAll(match, " ", "")
	match = strings.ReplaceAll(match, " ", "")

	// Decide which separator is the decimal mark: the rightmost one, and
	// only if it is followed by at most two digits.
	lastDot := strings.LastIndex(match, ".")
	lastComma := strings.LastIndex(match, ",")
	sep := lastDot
	if lastComma > lastDot {
		sep = lastComma
	}
	if sep >= 0 && len(match)-sep-1 <= 2 {
		intPart := strings.Map(digitsOnly, match[:sep])
		match = intPart + "." + match[sep+1:]
	} else {
		match = strings.Map(digitsOnly, match)
	}

	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return val
}

func digitsOnly(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₽": "RUB",
}

// DetectCurrency maps a currency symbol or code found in price text to an
// ISO code. Empty when the text carries no recognizable currency.
func DetectCurrency(s string) string {
	for symbol, code := range currencySymbols {
		if strings.Contains(s, symbol) {
			return code
		}
	}
	upper := strings.ToUpper(s)
	for _, code := range []string{"USD", "EUR", "GBP", "JPY", "RUB"} {
		if strings.Contains(upper, code) {
			return code
		}
	}
	return ""
}
