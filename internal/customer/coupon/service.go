// Package coupon issues at most one re-engagement coupon per inactive
// customer.
package coupon

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"reengage/internal/commerce"
	"reengage/internal/customer/lock"
	"reengage/internal/customer/models"
	"reengage/internal/customer/store"
	"reengage/internal/platform/metrics"
	"reengage/internal/settings"
	domainerrors "reengage/pkg/domain-errors"
)

// Policy captures the issuance rules. Defaults match the documented coupon:
// 20% off, single use, valid two months, customers inactive for three months.
type Policy struct {
	DiscountPercent int
	ExpiryMonths    int
	InactiveMonths  int
}

func DefaultPolicy() Policy {
	return Policy{DiscountPercent: 20, ExpiryMonths: 2, InactiveMonths: 3}
}

// Service selects inactive customers and issues coupons exactly once per
// customer. The creator may be nil when the discount subsystem is absent;
// issuance then degrades to reporting existing vouchers only.
type Service struct {
	store    store.Store
	creator  commerce.CouponCreator
	settings settings.Store
	lock     *lock.RegistryLock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	policy   Policy
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, creator commerce.CouponCreator, set settings.Store, l *lock.RegistryLock, logger *slog.Logger, policy Policy, opts ...Option) *Service {
	s := &Service{
		store:    st,
		creator:  creator,
		settings: set,
		lock:     l,
		logger:   logger,
		policy:   policy,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result reports one issuance run. Issued contains existing and newly
// created coupons; Failures lists records whose discount instrument could
// not be created (no voucher persisted, retried next run).
type Result struct {
	Issued   []models.IssuedCoupon  `json:"issued"`
	Failures []models.CouponFailure `json:"failures,omitempty"`
}

// Issue walks every inactive customer (no completed order, or none since the
// cutoff) and returns one coupon per customer. Repeated runs are idempotent:
// an existing voucher is reused verbatim and no new instrument is created
// for it. New codes are persisted only after the discount instrument exists,
// so a creation failure is retried on the next run instead of being recorded
// as issued.
func (s *Service) Issue(ctx context.Context) (Result, error) {
	if err := s.lock.TryAcquire("issue coupons"); err != nil {
		return Result{}, domainerrors.Wrap(domainerrors.CodeConflict, "a registry operation is already running", err)
	}
	defer s.lock.Release()

	now := s.now()
	cutoff := now.AddDate(0, -s.policy.InactiveMonths, 0)
	inactive, err := s.store.FindInactive(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("find inactive customers: %w", err)
	}

	var res Result
	for _, rec := range inactive {
		if rec.Email == "" {
			continue
		}

		if rec.Voucher != "" {
			res.Issued = append(res.Issued, issuedFrom(rec, rec.Voucher, true))
			s.count(func(m *metrics.Metrics) { m.CouponsReused.Inc() })
			continue
		}

		if s.creator == nil {
			// Discount subsystem absent: no new coupon creation.
			continue
		}

		code := GenerateCode(rec.Email, now)
		err := s.creator.Create(ctx, commerce.Coupon{
			Code:             code,
			DiscountPercent:  s.policy.DiscountPercent,
			EmailRestriction: rec.Email,
			UsageLimit:       1,
			ExpiresAt:        now.AddDate(0, s.policy.ExpiryMonths, 0),
		})
		if err != nil {
			// Per-record failure: report, keep the voucher unset, continue
			// the batch.
			s.logger.WarnContext(ctx, "coupon creation failed",
				"customer_key", rec.CustomerKey,
				"error", err.Error(),
			)
			res.Failures = append(res.Failures, models.CouponFailure{Email: rec.Email, Error: err.Error()})
			s.count(func(m *metrics.Metrics) { m.CouponFailures.Inc() })
			continue
		}

		stored, err := s.store.SetVoucherIfEmpty(ctx, rec.CustomerKey, code)
		if err != nil {
			return Result{}, fmt.Errorf("persist voucher for %s: %w", rec.CustomerKey, err)
		}
		reused := stored != code
		res.Issued = append(res.Issued, issuedFrom(rec, stored, reused))
		s.count(func(m *metrics.Metrics) {
			if reused {
				m.CouponsReused.Inc()
			} else {
				m.CouponsIssued.Inc()
			}
		})
	}

	// The accumulated result set replaces the previous run and feeds the
	// test-mail feature.
	if err := s.settings.SetLastGeneratedCoupons(ctx, res.Issued); err != nil {
		return Result{}, fmt.Errorf("store issuance results: %w", err)
	}

	s.logger.InfoContext(ctx, "coupons generated",
		"issued", len(res.Issued),
		"failures", len(res.Failures),
	)
	return res, nil
}

// GenerateCode derives a short human-readable coupon code from the customer
// email and the issuance time. Uniqueness at customer-count scale comes from
// the hash; the prefix keeps codes recognizable in the shop backend.
func GenerateCode(email string, now time.Time) string {
	sum := md5.Sum([]byte(email + strconv.FormatInt(now.Unix(), 10)))
	return "REENGAGE-" + strings.ToUpper(hex.EncodeToString(sum[:])[:10])
}

func issuedFrom(rec *models.CustomerRecord, voucher string, reused bool) models.IssuedCoupon {
	return models.IssuedCoupon{
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		Email:         rec.Email,
		LastOrderDate: rec.LastOrderDate,
		Voucher:       voucher,
		Reused:        reused,
	}
}

func (s *Service) count(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
