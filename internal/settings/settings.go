// Package settings persists the editable pieces of the re-engagement
// workflow: the HTML mail template and the result list of the last coupon
// run (the sole feed of the test-mail feature).
package settings

import (
	"context"
	"sync"

	"reengage/internal/customer/models"
)

// DefaultEmailTemplate seeds installations that never stored a template.
// {first_name} and {voucher} are substituted at send time.
const DefaultEmailTemplate = `
<p>Dear {first_name},</p>
<p>we noticed you have not ordered in a while.
We would like to win you back with an exclusive voucher:</p>
<p><strong>{voucher}</strong></p>
<p>20% off your next order.<br>
Valid for 2 months.</p>
<p>We look forward to seeing you!</p>
`

// Store persists workflow configuration and the last issuance result set.
type Store interface {
	// EmailTemplate returns the stored template, or DefaultEmailTemplate
	// when none was saved yet.
	EmailTemplate(ctx context.Context) (string, error)
	SetEmailTemplate(ctx context.Context, tpl string) error

	// LastGeneratedCoupons returns the result list of the most recent
	// issuance run; empty when no run happened yet.
	LastGeneratedCoupons(ctx context.Context) ([]models.IssuedCoupon, error)
	// SetLastGeneratedCoupons replaces the previous result list.
	SetLastGeneratedCoupons(ctx context.Context, coupons []models.IssuedCoupon) error
}

// MemoryStore keeps settings in memory for tests and single-node dev setups.
type MemoryStore struct {
	mu       sync.RWMutex
	template string
	coupons  []models.IssuedCoupon
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) EmailTemplate(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.template == "" {
		return DefaultEmailTemplate, nil
	}
	return s.template, nil
}

func (s *MemoryStore) SetEmailTemplate(_ context.Context, tpl string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = tpl
	return nil
}

func (s *MemoryStore) LastGeneratedCoupons(context.Context) ([]models.IssuedCoupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.IssuedCoupon{}, s.coupons...), nil
}

func (s *MemoryStore) SetLastGeneratedCoupons(_ context.Context, coupons []models.IssuedCoupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons = append([]models.IssuedCoupon{}, coupons...)
	return nil
}
