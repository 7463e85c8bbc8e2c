package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"comma decimal with euro sign", "12,99 €", 12.99},
		{"dot decimal", "45.00", 45.0},
		{"currency before amount", "€ 29,90", 29.9},
		{"marketing prefix", "A partir de 19,50€", 19.5},
		{"integer price", "165 €", 165.0},
		{"surrounding whitespace", "  59,00 €  ", 59.0},
		{"no number", "Prix indisponible", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePrice(tt.input))
		})
	}
}

func TestParseCurrency(t *testing.T) {
	assert.Equal(t, "EUR", ParseCurrency("12,99 €"))
	assert.Equal(t, "GBP", ParseCurrency("£9.99"))
	assert.Equal(t, "USD", ParseCurrency("$14.00"))
	assert.Equal(t, "EUR", ParseCurrency("29,90"))
}
