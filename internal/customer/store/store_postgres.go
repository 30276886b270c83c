package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"reengage/internal/customer/models"
	"reengage/pkg/platform/tx"
)

// PostgresStore persists the customer registry in PostgreSQL.
// This store is pure I/O; selection policy (cutoffs, code generation) belongs
// in the services.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the registry table and runs the one-time migration for
// installations that predate the customer_key column: add the column, drop
// the legacy unique email constraint, and install the unique customer_key
// index. Every step is idempotent; callers run it before first use.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reengage_customers (
			id BIGSERIAL PRIMARY KEY,
			customer_key VARCHAR(191) NOT NULL DEFAULT '',
			user_id BIGINT NOT NULL DEFAULT 0,
			email VARCHAR(191) NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			last_order_date TIMESTAMPTZ,
			voucher VARCHAR(50),
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`ALTER TABLE reengage_customers ADD COLUMN IF NOT EXISTS customer_key VARCHAR(191) NOT NULL DEFAULT ''`,
		`ALTER TABLE reengage_customers DROP CONSTRAINT IF EXISTS reengage_customers_email_key`,
		`DROP INDEX IF EXISTS reengage_customers_email_uniq`,
		`CREATE UNIQUE INDEX IF NOT EXISTS reengage_customers_customer_key ON reengage_customers (customer_key)`,
		`CREATE INDEX IF NOT EXISTS reengage_customers_email ON reengage_customers (email)`,
		`CREATE INDEX IF NOT EXISTS reengage_customers_user_id ON reengage_customers (user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure registry schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec *models.CustomerRecord) error {
	if rec == nil {
		return fmt.Errorf("customer record is required")
	}
	// voucher is deliberately absent from the conflict update list so an
	// upsert can never clear a previously assigned coupon.
	query := `
		INSERT INTO reengage_customers (customer_key, user_id, email, first_name, last_name, last_order_date, voucher, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7)
		ON CONFLICT (customer_key) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_order_date = EXCLUDED.last_order_date,
			updated_at = EXCLUDED.updated_at
	`
	q := tx.QuerierFrom(ctx, s.db)
	_, err := q.ExecContext(ctx, query,
		rec.CustomerKey,
		rec.UserID,
		rec.Email,
		rec.FirstName,
		rec.LastName,
		nullableTime(rec.LastOrderDate),
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

// Replace upserts every record and deletes rows absent from recs inside one
// transaction, so a failure mid-rebuild rolls back to the pre-sync registry
// and readers never observe an empty table.
func (s *PostgresStore) Replace(ctx context.Context, recs []*models.CustomerRecord) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	txCtx := tx.WithTx(ctx, dbTx)
	keys := make([]string, 0, len(recs))
	for _, rec := range recs {
		if err := s.Upsert(txCtx, rec); err != nil {
			return err
		}
		keys = append(keys, rec.CustomerKey)
	}

	if len(keys) == 0 {
		if _, err := dbTx.ExecContext(ctx, `DELETE FROM reengage_customers`); err != nil {
			return fmt.Errorf("replace delete all: %w", err)
		}
	} else {
		del := `DELETE FROM reengage_customers WHERE NOT (customer_key = ANY($1))`
		if _, err := dbTx.ExecContext(ctx, del, pq.Array(keys)); err != nil {
			return fmt.Errorf("replace delete missing: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (s *PostgresStore) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE TABLE reengage_customers`); err != nil {
		return fmt.Errorf("truncate registry: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reengage_customers WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete customer row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete customer row: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.CustomerRecord, error) {
	query := `
		SELECT id, customer_key, user_id, email, first_name, last_name, last_order_date, voucher, updated_at
		FROM reengage_customers
		ORDER BY last_order_date ASC NULLS FIRST, id ASC
	`
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()
	return scanCustomers(rows)
}

func (s *PostgresStore) FindInactive(ctx context.Context, cutoff time.Time) ([]*models.CustomerRecord, error) {
	query := `
		SELECT id, customer_key, user_id, email, first_name, last_name, last_order_date, voucher, updated_at
		FROM reengage_customers
		WHERE last_order_date IS NULL OR last_order_date < $1
		ORDER BY last_order_date ASC NULLS FIRST, id ASC
	`
	q := tx.QuerierFrom(ctx, s.db)
	rows, err := q.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find inactive customers: %w", err)
	}
	defer rows.Close()
	return scanCustomers(rows)
}

// SetVoucherIfEmpty atomically assigns code unless a voucher already exists,
// then reports the voucher actually stored. The conditional UPDATE prevents a
// concurrent assignment from being clobbered.
func (s *PostgresStore) SetVoucherIfEmpty(ctx context.Context, customerKey, code string) (string, error) {
	update := `
		UPDATE reengage_customers
		SET voucher = $2
		WHERE customer_key = $1 AND (voucher IS NULL OR voucher = '')
	`
	q := tx.QuerierFrom(ctx, s.db)
	res, err := q.ExecContext(ctx, update, customerKey, code)
	if err != nil {
		return "", fmt.Errorf("set voucher: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", fmt.Errorf("set voucher: %w", err)
	} else if n > 0 {
		return code, nil
	}

	var existing sql.NullString
	row := q.QueryRowContext(ctx, `SELECT voucher FROM reengage_customers WHERE customer_key = $1`, customerKey)
	if err := row.Scan(&existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read voucher: %w", err)
	}
	return existing.String, nil
}

func scanCustomers(rows *sql.Rows) ([]*models.CustomerRecord, error) {
	var out []*models.CustomerRecord
	for rows.Next() {
		var (
			rec       models.CustomerRecord
			orderDate sql.NullTime
			voucher   sql.NullString
		)
		err := rows.Scan(&rec.ID, &rec.CustomerKey, &rec.UserID, &rec.Email,
			&rec.FirstName, &rec.LastName, &orderDate, &voucher, &rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		if orderDate.Valid {
			t := orderDate.Time
			rec.LastOrderDate = &t
		}
		rec.Voucher = voucher.String
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return out, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
