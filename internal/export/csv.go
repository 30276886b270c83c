// Package export streams the customer registry as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"reengage/internal/customer/models"
)

var header = []string{"id", "customer_key", "user_id", "email", "first_name", "last_name", "last_order_date", "voucher", "updated_at"}

// WriteCSV writes the records with a header row. Timestamps are RFC 3339;
// a missing order date stays empty.
func WriteCSV(w io.Writer, recs []*models.CustomerRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range recs {
		orderDate := ""
		if rec.LastOrderDate != nil && !rec.LastOrderDate.IsZero() {
			orderDate = rec.LastOrderDate.Format(time.RFC3339)
		}
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.CustomerKey,
			strconv.FormatInt(rec.UserID, 10),
			rec.Email,
			rec.FirstName,
			rec.LastName,
			orderDate,
			rec.Voucher,
			rec.UpdatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
