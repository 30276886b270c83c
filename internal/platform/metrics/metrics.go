package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SyncRuns         *prometheus.CounterVec
	CustomersSynced  prometheus.Counter
	SyncDuration     prometheus.Histogram
	CouponsIssued    prometheus.Counter
	CouponsReused    prometheus.Counter
	CouponFailures   prometheus.Counter
	MailSends        *prometheus.CounterVec
	RowsDeleted      prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SyncRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reengage_sync_runs_total",
			Help: "Registry sync runs by outcome (ok, skipped, error).",
		}, []string{"outcome"}),
		CustomersSynced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reengage_customers_synced_total",
			Help: "Customer rows written by registry syncs.",
		}),
		SyncDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reengage_sync_duration_seconds",
			Help:    "Wall time of full registry rebuilds.",
			Buckets: prometheus.DefBuckets,
		}),
		CouponsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reengage_coupons_issued_total",
			Help: "Newly created coupons.",
		}),
		CouponsReused: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reengage_coupons_reused_total",
			Help: "Issuance results served from an existing voucher.",
		}),
		CouponFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reengage_coupon_failures_total",
			Help: "Per-record discount instrument creation failures.",
		}),
		MailSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reengage_mail_sends_total",
			Help: "Test mail sends by outcome (ok, error).",
		}, []string{"outcome"}),
		RowsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reengage_registry_rows_deleted_total",
			Help: "Rows removed through the admin delete actions.",
		}),
	}
}
