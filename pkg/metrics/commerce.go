package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the commerce counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Cart transition kinds.
const (
	CartMerge = "merge"
	CartSplit = "split"
)

// CommerceMetrics counts storefront business events. A nil receiver is a no-op.
type CommerceMetrics struct {
	checkouts  *prometheus.CounterVec
	orderTotal prometheus.Histogram
	payments   *prometheus.CounterVec
	cartMoves  *prometheus.CounterVec
	claims     *prometheus.CounterVec
}

// NewCommerceMetrics registers the commerce metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trailpack_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome", "buyer"})
	orderTotal := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trailpack_order_total_pence",
		Help:    "Order totals at checkout in minor units.",
		Buckets: []float64{1000, 2500, 5000, 10000, 25000, 50000, 100000},
	})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trailpack_payments_total",
		Help: "Mock payment settlements by outcome.",
	}, []string{"outcome"})
	cartMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trailpack_cart_transitions_total",
		Help: "Cart merges on login and splits on logout.",
	}, []string{"kind"})
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trailpack_order_claims_total",
		Help: "Guest order claims by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(checkouts, orderTotal, payments, cartMoves, claims)
	return &CommerceMetrics{
		checkouts:  checkouts,
		orderTotal: orderTotal,
		payments:   payments,
		cartMoves:  cartMoves,
		claims:     claims,
	}
}

// IncCheckout counts a checkout attempt. buyer is "user" or "guest".
func (c *CommerceMetrics) IncCheckout(outcome, buyer string) {
	if c == nil || c.checkouts == nil {
		return
	}
	c.checkouts.WithLabelValues(normalizeLabel(outcome), normalizeLabel(buyer)).Inc()
}

// ObserveOrderTotal records the total of a created order.
func (c *CommerceMetrics) ObserveOrderTotal(totalCents int64) {
	if c == nil || c.orderTotal == nil {
		return
	}
	c.orderTotal.Observe(float64(totalCents))
}

// IncPayment counts a settlement attempt.
func (c *CommerceMetrics) IncPayment(outcome string) {
	if c == nil || c.payments == nil {
		return
	}
	c.payments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCartTransition counts a login merge or logout split.
func (c *CommerceMetrics) IncCartTransition(kind string) {
	if c == nil || c.cartMoves == nil {
		return
	}
	c.cartMoves.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncClaim counts a guest order claim attempt.
func (c *CommerceMetrics) IncClaim(outcome string) {
	if c == nil || c.claims == nil {
		return
	}
	c.claims.WithLabelValues(normalizeLabel(outcome)).Inc()
}
