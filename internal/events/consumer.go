package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
)

const (
	notificationClaimTTL = 7 * 24 * time.Hour
	notificationAttempts = 3
	notificationBackoff  = 2 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NotificationConsumer turns order events into customer emails.
type NotificationConsumer struct {
	reader messageReader
	mailer service.Mailer
	dedup  repository.DedupStore
	logger *logrus.Entry
	stopCh chan struct{}
	// backoff is the wait between attempts at a failed send.
	backoff time.Duration
}

// NewNotificationConsumer creates a consumer on the orders topic.
func NewNotificationConsumer(cfg config.KafkaConfig, mailer service.Mailer, dedup repository.DedupStore, logger *logrus.Entry) *NotificationConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.OrdersTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return &NotificationConsumer{
		reader:  reader,
		mailer:  mailer,
		dedup:   dedup,
		logger:  logger,
		stopCh:  make(chan struct{}),
		backoff: notificationBackoff,
	}
}

// Start begins consuming events.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting notification consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Notification consumer stopped")
			return nil
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case <-c.stopCh:
					c.logger.Info("Notification consumer stopped")
					return nil
				default:
				}
				c.logger.WithError(err).Error("Failed to read message")
				continue
			}

			if !c.process(ctx, msg) {
				c.logger.Info("Notification consumer stopped")
				return ctx.Err()
			}
		}
	}
}

// process handles one message and commits its offset. A failed send is
// retried a few times; after that the message is logged and skipped. It
// returns false when the consumer stops mid-retry, leaving the offset
// uncommitted so the message is redelivered.
func (c *NotificationConsumer) process(ctx context.Context, msg kafka.Message) bool {
	logger := c.logger.WithFields(logrus.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	for attempt := 1; ; attempt++ {
		err := c.handleMessage(ctx, msg)
		if err == nil {
			break
		}
		if attempt == notificationAttempts {
			logger.WithError(err).WithField("attempts", attempt).Error("Dropping notification after repeated failures")
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-c.stopCh:
			return false
		case <-time.After(c.backoff):
		}
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		logger.WithError(err).Error("Failed to commit message")
	}
	return true
}

// Stop stops the consumer.
func (c *NotificationConsumer) Stop() {
	close(c.stopCh)
	if err := c.reader.Close(); err != nil {
		c.logger.WithError(err).Warn("Failed to close Kafka reader")
	}
}

// handleMessage returns an error only when a retry could succeed.
func (c *NotificationConsumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	c.logger.WithFields(logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}).Debug("Received message")

	var event OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.WithError(err).Error("Failed to unmarshal event")
		return nil
	}

	switch event.Type {
	case EventTypeOrderPaid:
		return c.handleOrderPaid(ctx, &event)
	case EventTypeOrderStatusChanged:
		return c.handleStatusChanged(ctx, &event)
	default:
		c.logger.WithField("type", event.Type).Debug("Ignoring event type")
		return nil
	}
}

func (c *NotificationConsumer) handleOrderPaid(ctx context.Context, event *OrderEvent) error {
	var order models.Order
	if err := json.Unmarshal(event.Data, &order); err != nil {
		c.logger.WithError(err).WithField("event_id", event.ID).Error("Failed to decode paid order")
		return nil
	}

	return c.notify(ctx, "order_paid:"+order.ID, &order, service.OrderConfirmationEmail(&order))
}

func (c *NotificationConsumer) handleStatusChanged(ctx context.Context, event *OrderEvent) error {
	var change StatusChange
	if err := json.Unmarshal(event.Data, &change); err != nil || change.Order == nil {
		c.logger.WithField("event_id", event.ID).Error("Failed to decode status change")
		return nil
	}
	if change.NewStatus != models.OrderStatusShipped {
		return nil
	}

	return c.notify(ctx, "order_shipped:"+change.Order.ID, change.Order, service.OrderShippedEmail(change.Order))
}

// notify sends one email per key, so redelivered events do not mail twice.
// The claim is released when the send fails so a retry can take it.
func (c *NotificationConsumer) notify(ctx context.Context, key string, order *models.Order, email *clients.Email) error {
	logger := c.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"key":      key,
	})

	if order.ShippingAddress.Email == "" {
		logger.Debug("Order has no contact email")
		return nil
	}

	claimed, err := c.dedup.Claim(ctx, "notify:"+key, notificationClaimTTL)
	if err != nil {
		logger.WithError(err).Warn("Notification dedup unavailable")
		claimed = true
	}
	if !claimed {
		logger.Info("Notification already sent")
		return nil
	}

	if err := c.mailer.Send(ctx, email); err != nil {
		logger.WithError(err).Error("Failed to send notification")
		if releaseErr := c.dedup.Release(ctx, "notify:"+key); releaseErr != nil {
			logger.WithError(releaseErr).Warn("Failed to release notification claim")
		}
		return err
	}

	logger.Info("Notification sent")
	return nil
}
