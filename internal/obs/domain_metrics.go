package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// DiscountValidationsTotal counts discount code validations by outcome (valid or a rejection reason).
	DiscountValidationsTotal *prometheus.CounterVec
	// DiscountRedemptionsTotal counts redemption attempts by outcome.
	DiscountRedemptionsTotal *prometheus.CounterVec
	// CheckoutSessionsTotal counts hosted checkout session creation outcomes.
	CheckoutSessionsTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// EmailsSentTotal counts outbound emails by kind and result.
	EmailsSentTotal *prometheus.CounterVec
	// BroadcastBatchDuration records how long each bulk email batch takes in milliseconds.
	BroadcastBatchDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		counter := func(name, help string, labels ...string) *prometheus.CounterVec {
			return register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      name,
				Help:      help,
			}, labels))
		}
		DiscountValidationsTotal = counter("discount_validations_total", "Count of discount code validations by outcome.", "outcome")
		DiscountRedemptionsTotal = counter("discount_redemptions_total", "Count of discount code redemptions by outcome.", "outcome")
		CheckoutSessionsTotal = counter("checkout_sessions_total", "Count of hosted checkout session creations by result.", "result")
		PaymentWebhookTotal = counter("payment_webhook_total", "Count of processed payment webhooks by event type and result.", "event", "result")
		EmailsSentTotal = counter("emails_sent_total", "Count of outbound emails by kind and result.", "kind", "result")
		BroadcastBatchDuration = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "email_broadcast_batch_duration_ms",
			Help:      "Duration of bulk email batches in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}))
	})
}
