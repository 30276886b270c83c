// Package commerce defines the contracts the registry requires from the
// commerce subsystem: the completed-order ledger feeding syncs and the
// discount instrument creator used by coupon issuance. Both collaborators
// are optional at runtime; sources report sentinel.ErrUnavailable when the
// subsystem is not installed.
package commerce

import (
	"context"
	"time"

	"reengage/internal/customer/models"
)

// OrderSource exposes completed orders grouped by billing identity.
type OrderSource interface {
	// CompletedOrderGroups returns one group per distinct
	// (billing email, first name, last name) with the most recent order
	// date and the maximum observed customer id. Returns
	// sentinel.ErrUnavailable when the order ledger is absent.
	CompletedOrderGroups(ctx context.Context) ([]models.OrderGroup, error)
}

// Coupon is the discount instrument created for an inactive customer.
type Coupon struct {
	Code             string
	DiscountPercent  int
	EmailRestriction string
	UsageLimit       int
	ExpiresAt        time.Time
}

// CouponCreator persists discount instruments in the commerce subsystem.
type CouponCreator interface {
	Create(ctx context.Context, coupon Coupon) error
}
