// Package metrics exposes engine counters to prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	invoicesGenerated   prometheus.Counter
	invoicesIssued      prometheus.Counter
	paymentsCompleted   prometheus.Counter
	paymentsFailed      prometheus.Counter
	refundsCompleted    prometheus.Counter
	settlementConflicts prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		invoicesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netbill",
			Name:      "invoices_generated_total",
			Help:      "Invoices generated, excluding idempotent replays.",
		}),
		invoicesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netbill",
			Name:      "invoices_issued_total",
			Help:      "Invoices moved from draft to issued.",
		}),
		paymentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netbill",
			Name:      "payments_completed_total",
			Help:      "Payments settled against invoices.",
		}),
		paymentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netbill",
			Name:      "payments_failed_total",
			Help:      "Payments marked failed.",
		}),
		refundsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netbill",
			Name:      "refunds_completed_total",
			Help:      "Refunds applied back to invoices.",
		}),
		settlementConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netbill",
			Name:      "settlement_conflicts_total",
			Help:      "Optimistic-lock conflicts retried during settlement.",
		}),
	}
	prometheus.MustRegister(
		m.invoicesGenerated,
		m.invoicesIssued,
		m.paymentsCompleted,
		m.paymentsFailed,
		m.refundsCompleted,
		m.settlementConflicts,
	)
	return m
}

func (m *Metrics) InvoiceGenerated() {
	if m != nil {
		m.invoicesGenerated.Inc()
	}
}

func (m *Metrics) InvoiceIssued() {
	if m != nil {
		m.invoicesIssued.Inc()
	}
}

func (m *Metrics) PaymentCompleted() {
	if m != nil {
		m.paymentsCompleted.Inc()
	}
}

func (m *Metrics) PaymentFailed() {
	if m != nil {
		m.paymentsFailed.Inc()
	}
}

func (m *Metrics) RefundCompleted() {
	if m != nil {
		m.refundsCompleted.Inc()
	}
}

func (m *Metrics) SettlementConflict() {
	if m != nil {
		m.settlementConflicts.Inc()
	}
}

var Module = fx.Module("observability.metrics",
	fx.Provide(New),
)
