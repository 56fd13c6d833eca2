package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
)

var (
	_ service.EventPublisher = (*KafkaPublisher)(nil)
	_ service.EventPublisher = (*MockEventPublisher)(nil)
)

// EventType represents the type of order event.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderPaid          EventType = "order.paid"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// OrderEvent represents an order-related event.
type OrderEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	OrderID       string            `json:"order_id"`
	UserID        string            `json:"user_id"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// StatusChange is the payload of an order.status_changed event.
type StatusChange struct {
	Order          *models.Order      `json:"order"`
	PreviousStatus models.OrderStatus `json:"previous_status"`
	NewStatus      models.OrderStatus `json:"new_status"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes order events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logrus.Entry
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logrus.Entry) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  cfg.OrdersTopic,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order created event.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	p.logger.WithField("order_id", order.ID).Debug("Publishing order created event")

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeOrderCreated, order.ID, order.UserID, data)
	event.Metadata["reference"] = order.PaystackReference
	return p.publish(ctx, event)
}

// PublishOrderPaid publishes an event once the gateway has confirmed payment.
func (p *KafkaPublisher) PublishOrderPaid(ctx context.Context, order *models.Order) error {
	p.logger.WithField("order_id", order.ID).Debug("Publishing order paid event")

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeOrderPaid, order.ID, order.UserID, data)
	event.Metadata["reference"] = order.PaystackReference
	return p.publish(ctx, event)
}

// PublishOrderStatusChanged publishes an order status change event.
func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	p.logger.WithFields(logrus.Fields{
		"order_id":        order.ID,
		"previous_status": previousStatus,
		"new_status":      order.Status,
	}).Debug("Publishing order status changed event")

	data, err := json.Marshal(StatusChange{
		Order:          order,
		PreviousStatus: previousStatus,
		NewStatus:      order.Status,
	})
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeOrderStatusChanged, order.ID, order.UserID, data)
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) createEvent(ctx context.Context, eventType EventType, orderID, userID string, data []byte) *OrderEvent {
	return &OrderEvent{
		ID:            "evt_" + uuid.NewString(),
		Type:          eventType,
		OrderID:       orderID,
		UserID:        userID,
		Data:          data,
		Metadata:      make(map[string]string),
		Timestamp:     time.Now().UTC(),
		CorrelationID: middleware.RequestIDFromContext(ctx),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, event *OrderEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	logger := p.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"order_id":   event.OrderID,
	})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.OrderEventsPublishedTotal.WithLabelValues(string(event.Type), metrics.PublishFailed).Inc()
		logger.WithError(err).Error("Failed to publish event")
		return err
	}

	metrics.OrderEventsPublishedTotal.WithLabelValues(string(event.Type), metrics.PublishOK).Inc()
	logger.Info("Event published")
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// MockEventPublisher is a mock implementation for testing.
type MockEventPublisher struct {
	Events []*OrderEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		Events: make([]*OrderEvent, 0),
	}
}

func (m *MockEventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	m.Events = append(m.Events, &OrderEvent{
		Type:    EventTypeOrderCreated,
		OrderID: order.ID,
	})
	return nil
}

func (m *MockEventPublisher) PublishOrderPaid(ctx context.Context, order *models.Order) error {
	m.Events = append(m.Events, &OrderEvent{
		Type:    EventTypeOrderPaid,
		OrderID: order.ID,
	})
	return nil
}

func (m *MockEventPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error {
	m.Events = append(m.Events, &OrderEvent{
		Type:    EventTypeOrderStatusChanged,
		OrderID: order.ID,
	})
	return nil
}
