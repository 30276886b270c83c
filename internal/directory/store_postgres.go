package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"reengage/internal/customer/models"
)

// PostgresDirectory reads the users table plus its key-value attributes
// side table (the directory keeps names out of the main row).
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) ListUsers(ctx context.Context, offset, limit int) ([]models.DirectoryUser, error) {
	query := `SELECT id, email FROM users ORDER BY id ASC OFFSET $1 LIMIT $2`
	rows, err := d.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []models.DirectoryUser
	for rows.Next() {
		var u models.DirectoryUser
		if err := rows.Scan(&u.ID, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (d *PostgresDirectory) GetAttribute(ctx context.Context, userID int64, key string) (string, error) {
	query := `SELECT attr_value FROM user_attributes WHERE user_id = $1 AND attr_key = $2`
	var value string
	err := d.db.QueryRowContext(ctx, query, userID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get user attribute: %w", err)
	}
	return value, nil
}
