package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Marketplace records offer lifecycle, settlement and delivery outcomes.
type Marketplace struct {
	offers        *prometheus.CounterVec
	gateway       *prometheus.HistogramVec
	webhooks      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	outbox        *prometheus.CounterVec
}

// NewMarketplace registers the marketplace metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewMarketplace(reg prometheus.Registerer) *Marketplace {
	if reg == nil {
		return &Marketplace{}
	}
	offers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offers_operations_total",
		Help: "Offer operations by kind and outcome.",
	}, []string{"operation", "outcome"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_request_duration_seconds",
		Help:    "Latency of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"call", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notification delivery attempts by template and outcome.",
	}, []string{"template", "outcome"})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox publish attempts by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(offers, gateway, webhooks, notifications, outbox)
	return &Marketplace{
		offers:        offers,
		gateway:       gateway,
		webhooks:      webhooks,
		notifications: notifications,
		outbox:        outbox,
	}
}

// IncOffer counts an offer operation such as create, accept or reject.
func (m *Marketplace) IncOffer(operation, outcome string) {
	if m == nil || m.offers == nil {
		return
	}
	m.offers.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// ObserveGateway records how long a gateway call took.
func (m *Marketplace) ObserveGateway(call, outcome string, d time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(normalizeLabel(call), normalizeLabel(outcome)).Observe(d.Seconds())
}

// IncWebhook counts a verified or rejected webhook delivery.
func (m *Marketplace) IncWebhook(eventType, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncNotification counts a notification attempt.
func (m *Marketplace) IncNotification(template, outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(template), normalizeLabel(outcome)).Inc()
}

// IncOutbox counts an outbox publish attempt.
func (m *Marketplace) IncOutbox(eventType, outcome string) {
	if m == nil || m.outbox == nil {
		return
	}
	m.outbox.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
