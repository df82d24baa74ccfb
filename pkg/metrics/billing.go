package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels shared by the billing counters.
const (
	OutcomeCreated = "created"
	OutcomeReused  = "reused"
	OutcomeFailed  = "failed"
)

// BillingMetrics counts provisioning, subscription, and sync outcomes.
type BillingMetrics struct {
	provisions    *prometheus.CounterVec
	subscriptions *prometheus.CounterVec
	transitions   *prometheus.CounterVec
}

// NewBillingMetrics registers the billing counters on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	provisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_provision_total",
		Help: "Plan provisioning attempts by outcome.",
	}, []string{"outcome"})
	subscriptions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_create_total",
		Help: "Subscription creation attempts by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_sync_transitions_total",
		Help: "Plan status transitions applied by the subscription sync job.",
	}, []string{"status", "issue"})
	reg.MustRegister(provisions, subscriptions, transitions)
	return &BillingMetrics{
		provisions:    provisions,
		subscriptions: subscriptions,
		transitions:   transitions,
	}
}

func (m *BillingMetrics) IncProvision(outcome string) {
	if m == nil || m.provisions == nil {
		return
	}
	m.provisions.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) IncSubscription(outcome string) {
	if m == nil || m.subscriptions == nil {
		return
	}
	m.subscriptions.WithLabelValues(outcome).Inc()
}

func (m *BillingMetrics) IncTransition(status, issue string) {
	if m == nil || m.transitions == nil {
		return
	}
	if issue == "" {
		issue = "none"
	}
	m.transitions.WithLabelValues(normalizeLabel(status), issue).Inc()
}
