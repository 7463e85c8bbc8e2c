package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var priceRe = regexp.MustCompile(`(\d+(?:[.,]\d{1,2})?)`)

// ParsePrice extracts a numeric price from marketing price text such as
// "12,99 €", "€ 45.00" or "A partir de 29,90€". Returns 0 when no number
// can be found.
func ParsePrice(text string) float64 {
	if text == "" {
		return 0
	}

	match := priceRe.FindString(strings.TrimSpace(text))
	if match == "" {
		return 0
	}

	match = strings.ReplaceAll(match, ",", ".")
	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}

	return price
}

// ParseCurrency guesses the ISO currency code from price text. French
// storefronts price in EUR, which is also the fallback.
func ParseCurrency(text string) string {
	switch {
	case strings.Contains(text, "£"):
		return "GBP"
	case strings.Contains(text, "$"):
		return "USD"
	default:
		return "EUR"
	}
}
