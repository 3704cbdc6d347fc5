package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingPassTotal counts bundle pricing passes by outcome.
	PricingPassTotal *prometheus.CounterVec
	// SelectionsCreatedTotal counts frozen selections written at add-to-cart.
	SelectionsCreatedTotal prometheus.Counter
	// TaxAllocationTotal counts tax allocation runs by outcome.
	TaxAllocationTotal *prometheus.CounterVec
	// TaxReplaySkippedTotal counts cart lines skipped by the re-entrancy guard.
	TaxReplaySkippedTotal prometheus.Counter
	// ValidationRejectionsTotal counts quantity submissions rejected by kind.
	ValidationRejectionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingPassTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_pass_total",
			Help:      "Count of bundle pricing passes by outcome.",
		}, []string{"result"})
		SelectionsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_created_total",
			Help:      "Number of frozen bundle selections created.",
		})
		TaxAllocationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_allocation_total",
			Help:      "Count of tax allocation runs by outcome.",
		}, []string{"result"})
		TaxReplaySkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tax_replay_skipped_total",
			Help:      "Cart lines skipped because they were already taxed in the pass.",
		})
		ValidationRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "Quantity submissions rejected by violation kind.",
		}, []string{"kind"})

		mustRegisterCollector(reg, PricingPassTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PricingPassTotal = v
			}
		})
		mustRegisterCollector(reg, SelectionsCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				SelectionsCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, TaxAllocationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TaxAllocationTotal = v
			}
		})
		mustRegisterCollector(reg, TaxReplaySkippedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				TaxReplaySkippedTotal = v
			}
		})
		mustRegisterCollector(reg, ValidationRejectionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ValidationRejectionsTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
