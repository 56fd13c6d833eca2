package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

// queueReader replays messages, then blocks until closed.
type queueReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []kafka.Message
	closed    chan struct{}
}

func newQueueReader(msgs ...kafka.Message) *queueReader {
	return &queueReader{messages: msgs, closed: make(chan struct{})}
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.closed:
		return kafka.Message{}, errors.New("reader closed")
	}
}

func (r *queueReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *queueReader) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func (r *queueReader) Close() error {
	close(r.closed)
	return nil
}

type memoryDedup struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (d *memoryDedup) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys[key] {
		return false, nil
	}
	d.keys[key] = true
	return true, nil
}

func (d *memoryDedup) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:                "order-1",
		UserID:            "user-1",
		TotalPrice:        decimal.NewFromInt(2000),
		Status:            models.OrderStatusPaid,
		PaystackReference: "SOL-ref-1",
		ShippingAddress: models.ShippingAddress{
			Name:    "Ada Obi",
			Email:   "ada@example.com",
			Phone:   "+2348000000000",
			Address: "12 Marina, Lagos",
		},
		Items: []models.OrderItem{{ProductID: "p1", Quantity: 2, PriceAtPurchase: decimal.NewFromInt(1000)}},
	}
}

func TestKafkaPublisher_PublishOrderPaid(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w, topic: "storefront.orders", logger: logging.Discard()}
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-123")

	require.NoError(t, p.PublishOrderPaid(ctx, sampleOrder()))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, kafka.Header{Key: "event_type", Value: []byte("order.paid")}, msg.Headers[0])

	var event OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventTypeOrderPaid, event.Type)
	assert.Equal(t, "req-123", event.CorrelationID)
	assert.Equal(t, "SOL-ref-1", event.Metadata["reference"])
	assert.Equal(t, string(msg.Headers[1].Value), event.ID)

	var order models.Order
	require.NoError(t, json.Unmarshal(event.Data, &order))
	assert.True(t, decimal.NewFromInt(2000).Equal(order.TotalPrice))
}

func TestKafkaPublisher_PublishStatusChanged(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w, logger: logging.Discard()}
	order := sampleOrder()
	order.Status = models.OrderStatusShipped

	require.NoError(t, p.PublishOrderStatusChanged(context.Background(), order, models.OrderStatusProcessing))

	var event OrderEvent
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &event))
	var change StatusChange
	require.NoError(t, json.Unmarshal(event.Data, &change))
	assert.Equal(t, models.OrderStatusProcessing, change.PreviousStatus)
	assert.Equal(t, models.OrderStatusShipped, change.NewStatus)
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := &KafkaPublisher{writer: w, logger: logging.Discard()}

	err := p.PublishOrderCreated(context.Background(), sampleOrder())

	assert.EqualError(t, err, "leader not available")
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func encodeEvent(t *testing.T, eventType EventType, data interface{}) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	value, err := json.Marshal(OrderEvent{ID: "evt_1", Type: eventType, OrderID: "order-1", Data: raw})
	require.NoError(t, err)
	return kafka.Message{Topic: "storefront.orders", Value: value}
}

func TestNotificationConsumer_SendsOncePerOrder(t *testing.T) {
	paid := encodeEvent(t, EventTypeOrderPaid, sampleOrder())
	shippedOrder := sampleOrder()
	shippedOrder.Status = models.OrderStatusShipped
	shipped := encodeEvent(t, EventTypeOrderStatusChanged, StatusChange{
		Order:          shippedOrder,
		PreviousStatus: models.OrderStatusProcessing,
		NewStatus:      models.OrderStatusShipped,
	})
	processing := encodeEvent(t, EventTypeOrderStatusChanged, StatusChange{
		Order:          sampleOrder(),
		PreviousStatus: models.OrderStatusPaid,
		NewStatus:      models.OrderStatusProcessing,
	})
	created := encodeEvent(t, EventTypeOrderCreated, sampleOrder())
	garbage := kafka.Message{Value: []byte("not json")}

	reader := newQueueReader(paid, paid, created, processing, garbage, shipped)
	mailer := clients.NewMockMailer()
	c := &NotificationConsumer{
		reader: reader,
		mailer: mailer,
		dedup:  &memoryDedup{keys: make(map[string]bool)},
		logger: logging.Discard(),
		stopCh: make(chan struct{}),
	}

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return reader.commitCount() == 6 }, 2*time.Second, 10*time.Millisecond)
	c.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	sent := mailer.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"ada@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].Subject, "Order confirmed")
	assert.Contains(t, sent[1].Subject, "on its way")
}

func TestNotificationConsumer_ReleasesClaimWhenMailFails(t *testing.T) {
	mailer := clients.NewMockMailer()
	mailer.Err = errors.New("mail api down")
	dedup := &memoryDedup{keys: make(map[string]bool)}
	c := &NotificationConsumer{mailer: mailer, dedup: dedup, logger: logging.Discard()}

	err := c.handleMessage(context.Background(), encodeEvent(t, EventTypeOrderPaid, sampleOrder()))

	assert.Error(t, err)
	assert.Empty(t, dedup.keys)
}

// flakyMailer fails its first sends, up to failures.
type flakyMailer struct {
	*clients.MockMailer
	mu       sync.Mutex
	failures int
	attempts int
}

func (m *flakyMailer) Send(ctx context.Context, email *clients.Email) error {
	m.mu.Lock()
	m.attempts++
	fail := m.attempts <= m.failures
	m.mu.Unlock()
	if fail {
		return errors.New("mail api unavailable")
	}
	return m.MockMailer.Send(ctx, email)
}

func (m *flakyMailer) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func TestNotificationConsumer_RetriesBeforeCommit(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		wantSent     int
		wantAttempts int
	}{
		{name: "transient failure is retried", failures: 1, wantSent: 1, wantAttempts: 2},
		{name: "persistent failure is dropped", failures: 10, wantSent: 0, wantAttempts: notificationAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := newQueueReader(encodeEvent(t, EventTypeOrderPaid, sampleOrder()))
			mailer := &flakyMailer{MockMailer: clients.NewMockMailer(), failures: tt.failures}
			c := &NotificationConsumer{
				reader: reader,
				mailer: mailer,
				dedup:  &memoryDedup{keys: make(map[string]bool)},
				logger: logging.Discard(),
				stopCh: make(chan struct{}),
			}

			done := make(chan error, 1)
			go func() { done <- c.Start(context.Background()) }()

			require.Eventually(t, func() bool { return reader.commitCount() == 1 }, 2*time.Second, 10*time.Millisecond)
			c.Stop()
			require.NoError(t, <-done)

			assert.Len(t, mailer.Sent(), tt.wantSent)
			assert.Equal(t, tt.wantAttempts, mailer.attemptCount())
		})
	}
}

func TestNotificationConsumer_StopDuringRetryLeavesOffset(t *testing.T) {
	reader := newQueueReader(encodeEvent(t, EventTypeOrderPaid, sampleOrder()))
	mailer := &flakyMailer{MockMailer: clients.NewMockMailer(), failures: 10}
	c := &NotificationConsumer{
		reader:  reader,
		mailer:  mailer,
		dedup:   &memoryDedup{keys: make(map[string]bool)},
		logger:  logging.Discard(),
		stopCh:  make(chan struct{}),
		backoff: time.Hour,
	}

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return mailer.attemptCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	c.Stop()
	require.NoError(t, <-done)

	assert.Zero(t, reader.commitCount())
}
