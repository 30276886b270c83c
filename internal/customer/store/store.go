// Package store persists the customer registry. Implementations must uphold
// the voucher invariant: an upsert never writes the voucher column, so a
// previously assigned coupon survives any number of rebuilds. Only
// SetVoucherIfEmpty mutates vouchers, and only when none is present.
package store

import (
	"context"
	"time"

	"reengage/internal/customer/models"
	"reengage/pkg/platform/sentinel"
)

// ErrNotFound keeps store-level 404s consistent across implementations.
var ErrNotFound = sentinel.ErrNotFound

// Store is the registry contract consumed by the synchronizer, the issuance
// engine, and the admin surface.
type Store interface {
	// Upsert inserts or updates one row keyed by CustomerKey. On collision
	// the identity fields and UpdatedAt are overwritten; the stored voucher
	// is preserved.
	Upsert(ctx context.Context, rec *models.CustomerRecord) error

	// Replace applies a full new row set as one transactional merge:
	// every record is upserted and rows whose key is absent from recs are
	// deleted. A failure anywhere leaves the previous registry intact.
	Replace(ctx context.Context, recs []*models.CustomerRecord) error

	// Truncate atomically empties the registry.
	Truncate(ctx context.Context) error

	// DeleteByID removes one row and reports whether a row was removed.
	DeleteByID(ctx context.Context, id int64) (bool, error)

	// ListAll returns the registry ordered by last order date ascending,
	// records without an order first.
	ListAll(ctx context.Context) ([]*models.CustomerRecord, error)

	// FindInactive returns records with no completed order or one strictly
	// older than cutoff.
	FindInactive(ctx context.Context, cutoff time.Time) ([]*models.CustomerRecord, error)

	// SetVoucherIfEmpty assigns code to the record unless a voucher is
	// already present, and returns the voucher that is stored afterwards.
	// Returns ErrNotFound when the key does not exist.
	SetVoucherIfEmpty(ctx context.Context, customerKey, code string) (string, error)
}
