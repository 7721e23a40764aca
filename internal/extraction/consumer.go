package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/drizaikin/extraction-be/internal/extraction/domain"
	"github.com/drizaikin/extraction-be/shared/rabbitmq"
)

// requestMessage is the wire shape of a queued extraction request.
type requestMessage struct {
	SourceURL      string `json:"source_url"`
	RequesterID    string `json:"requester_id"`
	MaxTimeMinutes *int   `json:"max_time_minutes,omitempty"`
	MaxBooks       *int   `json:"max_books,omitempty"`
	Autostart      bool   `json:"autostart,omitempty"`
}

// Consumer turns extraction requests arriving over RabbitMQ into jobs. It is
// a thin transport in front of the controller, same as the HTTP handlers.
type Consumer struct {
	logger        *slog.Logger
	rabbit        *rabbitmq.Client
	controller    *Controller
	prefetchCount int
	consumerTag   string
}

// NewConsumer creates a consumer with the given prefetch window.
func NewConsumer(logger *slog.Logger, rabbit *rabbitmq.Client, controller *Controller, prefetchCount int) *Consumer {
	return &Consumer{
		logger:        logger,
		rabbit:        rabbit,
		controller:    controller,
		prefetchCount: prefetchCount,
		consumerTag:   "extraction-service",
	}
}

// Start consumes the request queue until ctx is canceled or the delivery
// channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	channel := c.rabbit.GetChannel()
	if channel == nil {
		return fmt.Errorf("rabbitmq channel is not available")
	}

	if err := channel.Qos(c.prefetchCount, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := c.rabbit.Consume(c.consumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Extraction request consumer started",
		slog.Int("prefetch_count", c.prefetchCount))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Extraction request consumer stopped")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("RabbitMQ delivery channel closed")
				return nil
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	var msg requestMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		c.logger.Error("Failed to parse extraction request",
			slog.String("error", err.Error()))
		c.reject(delivery, false)
		return
	}

	job, err := c.controller.CreateJob(ctx, CreateJobInput{
		SourceURL:      msg.SourceURL,
		RequesterID:    msg.RequesterID,
		MaxTimeMinutes: msg.MaxTimeMinutes,
		MaxBooks:       msg.MaxBooks,
	})
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			c.logger.Error("Rejected extraction request",
				slog.String("error", err.Error()))
			c.reject(delivery, false)
			return
		}

		c.logger.Error("Failed to create job from request",
			slog.String("error", err.Error()))
		c.reject(delivery, true)
		return
	}

	if msg.Autostart {
		if _, err := c.controller.StartJob(ctx, job.ID); err != nil {
			// the job exists in pending; the requester can start it later
			c.logger.Error("Failed to autostart job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()))
		}
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("Failed to ack extraction request",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
		return
	}

	c.logger.Info("Extraction request accepted",
		slog.String("job_id", job.ID),
		slog.String("source_url", msg.SourceURL),
		slog.Bool("autostart", msg.Autostart))
}

func (c *Consumer) reject(delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		c.logger.Error("Failed to nack extraction request",
			slog.String("error", err.Error()))
	}
}
