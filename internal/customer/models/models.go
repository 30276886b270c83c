package models

import "time"

// CustomerRecord is one row of the customer registry: a single deduplicated
// identity drawn from the order ledger and the user directory.
type CustomerRecord struct {
	ID          int64
	CustomerKey string
	// UserID is the directory user id; 0 for guest identities.
	UserID    int64
	Email     string
	FirstName string
	LastName  string
	// LastOrderDate is nil when no completed order was observed.
	LastOrderDate *time.Time
	// Voucher is empty until the issuance engine assigns a coupon code.
	// Syncs never clear or replace a non-empty voucher.
	Voucher   string
	UpdatedAt time.Time
}

// OrderGroup is one completed-order grouping from the order source:
// (billing email, first name, last name) with the most recent order date and
// the maximum observed customer id.
type OrderGroup struct {
	CustomerID    int64
	Email         string
	FirstName     string
	LastName      string
	LastOrderDate time.Time
}

// DirectoryUser is one entry of the user directory listing.
type DirectoryUser struct {
	ID    int64
	Email string
}

// IssuedCoupon is one entry of the issuance result set. Reused marks results
// served from a previously assigned voucher.
type IssuedCoupon struct {
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	LastOrderDate *time.Time `json:"last_order_date,omitempty"`
	Voucher       string     `json:"voucher"`
	Reused        bool       `json:"reused"`
}

// CouponFailure reports a record whose discount instrument could not be
// created. The record keeps no voucher and is retried on the next run.
type CouponFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}
