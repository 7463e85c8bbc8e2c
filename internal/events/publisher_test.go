package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductDetectedPayloadJSON(t *testing.T) {
	payload := &NewProductDetectedPayload{
		EventID:   "evt-1",
		EventType: string(EventTypeNewProductDetected),
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Site:      "sephora",
		ProductID: "P123456",
		Name:      "Daily Microfoliant",
		Brand:     "dermalogica",
		URL:       "https://www.sephora.fr/p/daily-microfoliant-P123456.html",
		Price:     &Price{Amount: 59.0, Currency: "EUR"},
		Source:    "crawler",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "NEW_PRODUCT_DETECTED", decoded["event_type"])
	assert.Equal(t, "sephora", decoded["site"])
	assert.Equal(t, "P123456", decoded["product_id"])

	price, ok := decoded["price"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 59.0, price["amount"])
	assert.Equal(t, "EUR", price["currency"])
}

func TestNewProductDetectedPayloadOmitsEmptyFields(t *testing.T) {
	payload := &NewProductDetectedPayload{
		EventID:   "evt-2",
		EventType: string(EventTypeNewProductDetected),
		Site:      "nocibe",
		ProductID: "s512345",
		Name:      "Moisture Surge",
		Source:    "crawler",
	}

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	_, hasPrice := decoded["price"]
	assert.False(t, hasPrice)
	_, hasBrand := decoded["brand"]
	assert.False(t, hasBrand)
	_, hasImage := decoded["image_url"]
	assert.False(t, hasImage)
}
