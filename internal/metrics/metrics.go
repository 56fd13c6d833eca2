// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	CheckoutOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_orders_total",
		Help:      "Checkout attempts by result.",
	}, []string{"result"})

	PaymentWebhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_webhooks_total",
		Help:      "Payment webhook deliveries by outcome.",
	}, []string{"outcome"})

	OrderEventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_events_published_total",
		Help:      "Order events written to Kafka by type and result.",
	}, []string{"type", "result"})

	CatalogCacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_cache_requests_total",
		Help:      "Product listing cache lookups by result.",
	}, []string{"result"})
)

// Checkout results.
const (
	CheckoutCreated  = "created"
	CheckoutRejected = "rejected"
	CheckoutFailed   = "failed"
)

// Webhook outcomes.
const (
	WebhookPaid           = "paid"
	WebhookDuplicate      = "duplicate"
	WebhookIgnored        = "ignored"
	WebhookBadSignature   = "bad_signature"
	WebhookAmountMismatch = "amount_mismatch"
	WebhookUnknownOrder   = "unknown_order"
	WebhookFailed         = "failed"
)

// Catalog cache lookup results.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheError  = "error"
	CacheBypass = "bypass"
)

// Event publish results.
const (
	PublishOK     = "ok"
	PublishFailed = "failed"
)
