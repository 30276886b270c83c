// Package directory exposes the user directory the synchronizer reconciles
// against the order ledger.
package directory

import (
	"context"

	"reengage/internal/customer/models"
)

// Directory lists registered users and resolves their name attributes.
// Listing is paged so syncs over large directories read in bounded batches.
type Directory interface {
	ListUsers(ctx context.Context, offset, limit int) ([]models.DirectoryUser, error)
	// GetAttribute returns the attribute value for a user, or "" when the
	// attribute is not set.
	GetAttribute(ctx context.Context, userID int64, key string) (string, error)
}

// Attribute keys used by the synchronizer.
const (
	AttrFirstName = "first_name"
	AttrLastName  = "last_name"
)
