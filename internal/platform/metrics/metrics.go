// Package metrics holds the Prometheus collectors for the ingestion path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for WebhookRequests.
const (
	OutcomeSuccess         = "success"
	OutcomeNotFound        = "not_found"
	OutcomeInactive        = "inactive"
	OutcomeBadSignature    = "bad_signature"
	OutcomeBadPayload      = "bad_payload"
	OutcomeTransformFailed = "transform_failed"
	OutcomeNoLeadsCreated  = "no_leads_created"
	OutcomeInternalError   = "internal_error"
	OutcomePayloadTooLarge = "payload_too_large"
	providerUnknown        = "unknown"
)

var (
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadhook_webhook_requests_total",
		Help: "Inbound webhook requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	LeadsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadhook_leads_created_total",
		Help: "Leads persisted from webhook payloads.",
	}, []string{"provider"})

	LeadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadhook_lead_failures_total",
		Help: "Per-record lead failures (validation or persistence).",
	}, []string{"provider"})

	ProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadhook_webhook_processing_seconds",
		Help:    "Time spent handling one inbound webhook request.",
		Buckets: prometheus.DefBuckets,
	})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadhook_notification_failures_total",
		Help: "Lead notifications that could not be written.",
	})
)

// ObserveRequest records one finished request.
func ObserveRequest(provider, outcome string, seconds float64) {
	if provider == "" {
		provider = providerUnknown
	}
	WebhookRequests.WithLabelValues(provider, outcome).Inc()
	ProcessingSeconds.Observe(seconds)
}

// ObserveLeads records per-record results of one batch.
func ObserveLeads(provider string, created, failed int) {
	if provider == "" {
		provider = providerUnknown
	}
	if created > 0 {
		LeadsCreated.WithLabelValues(provider).Add(float64(created))
	}
	if failed > 0 {
		LeadFailures.WithLabelValues(provider).Add(float64(failed))
	}
}
