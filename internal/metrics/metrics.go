package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InboundNotifications counts CRM notifications by how their workflow run ended.
	InboundNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgcheck_inbound_notifications_total",
			Help: "CRM outbound-message notifications by outcome",
		},
		[]string{"outcome"},
	)

	// ProviderWebhooks counts provider webhook events by type and outcome.
	ProviderWebhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgcheck_provider_webhooks_total",
			Help: "Provider webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// ResultRecords counts Background_Check__c records posted to the CRM by kind.
	ResultRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgcheck_result_records_total",
			Help: "Background check records posted to the CRM by kind",
		},
		[]string{"kind"},
	)

	// ExternalCallDuration times provider and CRM API calls.
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bgcheck_external_call_duration_seconds",
			Help: "Duration of calls to the provider and CRM",
		},
		[]string{"target", "operation"},
	)
)
