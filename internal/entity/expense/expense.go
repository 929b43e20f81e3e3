package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is used when the user omits the category token.
const DefaultCategory = "Lain-lain"

// Record is a stored expenses row. Records are append-only: once
// inserted they are never updated or deleted.
type Record struct {
	ID          int64
	UserID      int64
	Amount      decimal.Decimal
	Description string
	Category    string
	Date        time.Time
	RecordedAt  time.Time
}
