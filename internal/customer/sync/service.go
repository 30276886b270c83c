// Package sync rebuilds the customer registry from the order ledger and the
// user directory.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reengage/internal/commerce"
	"reengage/internal/customer/key"
	"reengage/internal/customer/lock"
	"reengage/internal/customer/models"
	"reengage/internal/customer/store"
	"reengage/internal/directory"
	"reengage/internal/platform/metrics"
	domainerrors "reengage/pkg/domain-errors"
	"reengage/pkg/platform/sentinel"
)

const defaultPageSize = 500

// Service rebuilds the registry. All collaborators are injected so the
// service runs identically against real sources and test doubles.
type Service struct {
	orders   commerce.OrderSource
	users    directory.Directory
	store    store.Store
	lock     *lock.RegistryLock
	logger   *slog.Logger
	metrics  *metrics.Metrics
	pageSize int
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithPageSize bounds directory batch reads.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(orders commerce.OrderSource, users directory.Directory, st store.Store, l *lock.RegistryLock, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		orders:   orders,
		users:    users,
		store:    st,
		lock:     l,
		logger:   logger,
		pageSize: defaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result reports one sync run. Synced is false when the order ledger is
// unavailable and the registry was left untouched.
type Result struct {
	Synced    bool `json:"synced"`
	Customers int  `json:"customers"`
}

// Sync rebuilds the whole registry: completed-order groups first, then
// directory users whose email the order pass did not cover. The new row set
// is computed up front and applied as one transactional replace, so readers
// never observe a half-built or empty table and previously assigned vouchers
// survive (the store's upsert never writes the voucher column).
func (s *Service) Sync(ctx context.Context) (Result, error) {
	if err := s.lock.TryAcquire("sync"); err != nil {
		return Result{}, domainerrors.Wrap(domainerrors.CodeConflict, "a registry operation is already running", err)
	}
	defer s.lock.Release()

	start := s.now()

	groups, err := s.orders.CompletedOrderGroups(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			// Commerce not installed: degrade to a no-op without touching
			// the existing registry.
			s.logger.InfoContext(ctx, "sync skipped, order ledger unavailable")
			s.countRun("skipped")
			return Result{Synced: false}, nil
		}
		s.countRun("error")
		return Result{}, fmt.Errorf("pull completed orders: %w", err)
	}

	now := s.now()
	recs := make([]*models.CustomerRecord, 0, len(groups))
	handled := make(map[string]bool, len(groups))

	for _, g := range groups {
		userID := g.CustomerID
		if userID < 0 {
			userID = 0
		}
		orderDate := g.LastOrderDate
		recs = append(recs, &models.CustomerRecord{
			CustomerKey:   key.ResolveKey(userID, g.Email, g.FirstName, g.LastName),
			UserID:        userID,
			Email:         g.Email,
			FirstName:     g.FirstName,
			LastName:      g.LastName,
			LastOrderDate: &orderDate,
			UpdatedAt:     now,
		})
		handled[strings.ToLower(g.Email)] = true
	}

	userRecs, err := s.directoryRecords(ctx, handled, now)
	if err != nil {
		s.countRun("error")
		return Result{}, err
	}
	recs = append(recs, userRecs...)

	if err := s.store.Replace(ctx, recs); err != nil {
		s.countRun("error")
		return Result{}, fmt.Errorf("replace registry: %w", err)
	}

	s.logger.InfoContext(ctx, "registry synced",
		"order_groups", len(groups),
		"directory_users", len(userRecs),
		"total", len(recs),
	)
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("ok").Inc()
		s.metrics.CustomersSynced.Add(float64(len(recs)))
		s.metrics.SyncDuration.Observe(s.now().Sub(start).Seconds())
	}
	return Result{Synced: true, Customers: len(recs)}, nil
}

// directoryRecords pages through the directory and returns one record per
// registered user whose email was not covered by a completed order. These
// carry no order date.
func (s *Service) directoryRecords(ctx context.Context, handled map[string]bool, now time.Time) ([]*models.CustomerRecord, error) {
	var out []*models.CustomerRecord
	for offset := 0; ; offset += s.pageSize {
		page, err := s.users.ListUsers(ctx, offset, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list directory users: %w", err)
		}
		for _, u := range page {
			if handled[strings.ToLower(u.Email)] {
				continue
			}
			firstName, err := s.users.GetAttribute(ctx, u.ID, directory.AttrFirstName)
			if err != nil {
				return nil, fmt.Errorf("user %d first name: %w", u.ID, err)
			}
			lastName, err := s.users.GetAttribute(ctx, u.ID, directory.AttrLastName)
			if err != nil {
				return nil, fmt.Errorf("user %d last name: %w", u.ID, err)
			}
			out = append(out, &models.CustomerRecord{
				CustomerKey: key.ResolveKey(u.ID, u.Email, firstName, lastName),
				UserID:      u.ID,
				Email:       u.Email,
				FirstName:   firstName,
				LastName:    lastName,
				UpdatedAt:   now,
			})
		}
		if len(page) < s.pageSize {
			return out, nil
		}
	}
}

func (s *Service) countRun(outcome string) {
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues(outcome).Inc()
	}
}
