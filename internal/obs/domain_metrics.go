package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CouponEvaluationsTotal counts coupon eligibility evaluations by outcome.
	CouponEvaluationsTotal *prometheus.CounterVec
	// CouponApplicationsTotal counts coupon application attempts by outcome.
	CouponApplicationsTotal *prometheus.CounterVec
	// CouponDiscountAmount records granted discount amounts in minor units.
	CouponDiscountAmount *prometheus.HistogramVec
	// CouponCacheLookups counts coupon cache hits and misses.
	CouponCacheLookups *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CouponEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_evaluations_total",
			Help:      "Count of coupon eligibility evaluations by type and outcome.",
		}, []string{"type", "result"})
		CouponApplicationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_applications_total",
			Help:      "Count of coupon application attempts by type and outcome.",
		}, []string{"type", "result"})
		CouponDiscountAmount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "coupon_discount_amount",
			Help:      "Discount amounts granted per application, in minor currency units.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000},
		}, []string{"type"})
		CouponCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_cache_lookups_total",
			Help:      "Count of coupon cache lookups by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, CouponEvaluationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponEvaluationsTotal = v
			}
		})
		mustRegisterCollector(reg, CouponApplicationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponApplicationsTotal = v
			}
		})
		mustRegisterCollector(reg, CouponDiscountAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CouponDiscountAmount = v
			}
		})
		mustRegisterCollector(reg, CouponCacheLookups, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponCacheLookups = v
			}
		})
	})
}

// IncCouponEvaluation bumps the evaluation counter when metrics are wired.
func IncCouponEvaluation(couponType, result string) {
	if CouponEvaluationsTotal == nil {
		return
	}
	CouponEvaluationsTotal.WithLabelValues(couponType, result).Inc()
}

// IncCouponApplication bumps the application counter when metrics are wired.
func IncCouponApplication(couponType, result string) {
	if CouponApplicationsTotal == nil {
		return
	}
	CouponApplicationsTotal.WithLabelValues(couponType, result).Inc()
}

// IncCouponCacheLookup bumps the cache lookup counter when metrics are wired.
func IncCouponCacheLookup(result string) {
	if CouponCacheLookups == nil {
		return
	}
	CouponCacheLookups.WithLabelValues(result).Inc()
}

// ObserveCouponDiscount records a granted discount amount when metrics are wired.
func ObserveCouponDiscount(couponType string, amount int64) {
	if CouponDiscountAmount == nil {
		return
	}
	CouponDiscountAmount.WithLabelValues(couponType).Observe(float64(amount))
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
