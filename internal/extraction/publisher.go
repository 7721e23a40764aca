package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
	"github.com/drizaikin/extraction-be/shared/rabbitmq"
)

// itemMessage is the wire shape consumed by the catalog ingestion service.
type itemMessage struct {
	ItemID   string `json:"item_id"`
	JobID    string `json:"job_id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	CoverURL string `json:"cover_url,omitempty"`
}

// Publisher announces completed items on the library exchange so the
// catalog can ingest them.
type Publisher struct {
	logger     *slog.Logger
	rabbit     *rabbitmq.Client
	routingKey string
}

// NewPublisher creates a publisher sending to the given routing key.
func NewPublisher(logger *slog.Logger, rabbit *rabbitmq.Client, routingKey string) *Publisher {
	return &Publisher{
		logger:     logger,
		rabbit:     rabbit,
		routingKey: routingKey,
	}
}

// PublishItem sends one extracted item, retrying per the client's publish
// policy.
func (p *Publisher) PublishItem(ctx context.Context, item *domain.ExtractedItem) error {
	body, err := json.Marshal(itemMessage{
		ItemID:   item.ID,
		JobID:    item.JobID,
		Title:    item.Title,
		Author:   item.Author,
		CoverURL: item.CoverURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal item message: %w", err)
	}

	if err := p.rabbit.PublishWithRetry(ctx, p.routingKey, body, "application/json"); err != nil {
		return fmt.Errorf("failed to publish item %s: %w", item.ID, err)
	}

	p.logger.Debug("Extracted item published",
		slog.String("item_id", item.ID),
		slog.String("job_id", item.JobID))

	return nil
}
