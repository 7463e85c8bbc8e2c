package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lmichel/beautytrack/internal/database"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeNewProductDetected is published when a product is seen for
	// the first time on a site
	EventTypeNewProductDetected EventType = "NEW_PRODUCT_DETECTED"
)

// Price represents product pricing information
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// NewProductDetectedPayload represents the payload for NEW_PRODUCT_DETECTED
type NewProductDetectedPayload struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Site      string    `json:"site"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Brand     string    `json:"brand,omitempty"`
	Category  string    `json:"category,omitempty"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"image_url,omitempty"`
	Price     *Price    `json:"price,omitempty"`
	Source    string    `json:"source"`
}

// Publisher handles event publishing using the transactional outbox pattern
type Publisher struct {
	db     *database.DB
	outbox *database.OutboxRepository
	logger *slog.Logger
}

// NewPublisher creates a new event publisher with database connection
func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishNewProductDetected writes a NEW_PRODUCT_DETECTED event to the outbox.
// The relay moves it to the Redis stream asynchronously.
func (p *Publisher) PublishNewProductDetected(ctx context.Context, payload *NewProductDetectedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeNewProductDetected)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "crawler"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   payload.Site + "/" + payload.ProductID,
		EventType:     string(EventTypeNewProductDetected),
		Payload:       data,
		TargetStream:  database.DefaultTargetStream,
	}

	err = p.db.Transaction(ctx, func(tx pgx.Tx) error {
		if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"site", payload.Site,
		"product_id", payload.ProductID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}
