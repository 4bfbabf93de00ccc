package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics groups the business-level collectors for the store.
type MarketplaceMetrics struct {
	OrdersCreated       *prometheus.CounterVec
	OrderRevenueCents   prometheus.Counter
	PaymentVerification *prometheus.CounterVec
	CouponValidations   *prometheus.CounterVec
	FeeCycleRuns        prometheus.Counter
	AuthorsBlocked      prometheus.Gauge
}

var (
	marketplaceOnce    sync.Once
	marketplaceMetrics *MarketplaceMetrics
)

// NewMarketplaceMetrics registers and returns the domain collectors. Repeated
// calls return the same set.
func NewMarketplaceMetrics(namespace string, reg prometheus.Registerer) *MarketplaceMetrics {
	marketplaceOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		m := &MarketplaceMetrics{
			OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_created_total",
				Help:      "Completed orders recorded in the ledger.",
			}, []string{"coupon"}),
			OrderRevenueCents: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_revenue_cents_total",
				Help:      "Sum of final order totals in cents.",
			}),
			PaymentVerification: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_verifications_total",
				Help:      "PayPal order verification outcomes.",
			}, []string{"outcome"}),
			CouponValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "coupon_validations_total",
				Help:      "Coupon validation outcomes.",
			}, []string{"outcome"}),
			FeeCycleRuns: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fee_cycle_runs_total",
				Help:      "Platform fee reconciliation passes executed.",
			}),
			AuthorsBlocked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "authors_blocked",
				Help:      "Authors currently blocked for overdue platform fees.",
			}),
		}
		reg.MustRegister(m.OrdersCreated, m.OrderRevenueCents, m.PaymentVerification, m.CouponValidations, m.FeeCycleRuns, m.AuthorsBlocked)
		marketplaceMetrics = m
	})
	return marketplaceMetrics
}
