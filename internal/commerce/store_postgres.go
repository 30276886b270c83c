package commerce

import (
	"context"
	"database/sql"
	"fmt"

	"reengage/internal/customer/models"
	"reengage/pkg/platform/sentinel"
)

// PostgresOrderSource reads the commerce subsystem's order tables. The
// grouping mirrors the registry's deduplication rule: one row per distinct
// (billing email, first name, last name), MAX(customer_id) as the
// representative id since an authenticated id dominates guest zeros.
type PostgresOrderSource struct {
	db *sql.DB
}

func NewPostgresOrderSource(db *sql.DB) *PostgresOrderSource {
	return &PostgresOrderSource{db: db}
}

// Available probes for the order tables so a sync can degrade to a no-op
// instead of truncating the registry when commerce is not installed.
func (s *PostgresOrderSource) available(ctx context.Context) (bool, error) {
	var reg sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT to_regclass('orders')`).Scan(&reg)
	if err != nil {
		return false, fmt.Errorf("probe order ledger: %w", err)
	}
	return reg.Valid, nil
}

func (s *PostgresOrderSource) CompletedOrderGroups(ctx context.Context) ([]models.OrderGroup, error) {
	ok, err := s.available(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("order ledger not installed: %w", sentinel.ErrUnavailable)
	}

	query := `
		SELECT
			COALESCE(MAX(o.customer_id), 0) AS customer_id,
			o.billing_email AS email,
			MAX(o.created_at) AS last_order_date,
			COALESCE(a.first_name, '') AS first_name,
			COALESCE(a.last_name, '') AS last_name
		FROM orders o
		LEFT JOIN order_addresses a
			ON a.order_id = o.id AND a.address_type = 'billing'
		WHERE o.status = 'completed'
		GROUP BY o.billing_email, COALESCE(a.first_name, ''), COALESCE(a.last_name, '')
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query completed orders: %w", err)
	}
	defer rows.Close()

	var out []models.OrderGroup
	for rows.Next() {
		var g models.OrderGroup
		if err := rows.Scan(&g.CustomerID, &g.Email, &g.LastOrderDate, &g.FirstName, &g.LastName); err != nil {
			return nil, fmt.Errorf("scan order group: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order groups: %w", err)
	}
	return out, nil
}

// PostgresCouponCreator writes discount instruments to the commerce coupons
// table.
type PostgresCouponCreator struct {
	db *sql.DB
}

func NewPostgresCouponCreator(db *sql.DB) *PostgresCouponCreator {
	return &PostgresCouponCreator{db: db}
}

// EnsureSchema creates the coupons table when the commerce subsystem does
// not manage it itself. Idempotent.
func (c *PostgresCouponCreator) EnsureSchema(ctx context.Context) error {
	stmt := `
		CREATE TABLE IF NOT EXISTS coupons (
			code VARCHAR(50) PRIMARY KEY,
			discount_type VARCHAR(20) NOT NULL DEFAULT 'percent',
			amount INT NOT NULL,
			email_restriction VARCHAR(191) NOT NULL,
			usage_limit INT NOT NULL DEFAULT 1,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure coupons schema: %w", err)
	}
	return nil
}

func (c *PostgresCouponCreator) Create(ctx context.Context, coupon Coupon) error {
	query := `
		INSERT INTO coupons (code, discount_type, amount, email_restriction, usage_limit, expires_at)
		VALUES ($1, 'percent', $2, $3, $4, $5)
	`
	_, err := c.db.ExecContext(ctx, query,
		coupon.Code,
		coupon.DiscountPercent,
		coupon.EmailRestriction,
		coupon.UsageLimit,
		coupon.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create coupon: %w", err)
	}
	return nil
}
