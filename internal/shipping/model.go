package shipping

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// Rate is a per-region fee entry. Rates are administered and served but
// checkout charges the flat fee only.
type Rate struct {
	ID        uuid.UUID       `json:"id"`
	Province  string          `json:"province"`
	District  *string         `json:"district"`
	Ward      *string         `json:"ward"`
	Rate      decimal.Decimal `json:"rate"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
