package cart

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity caps a single cart row, merges included.
const MaxQuantity = 1000

type CartItem struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	Size      *string   `json:"size"`
	Color     *string   `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductSnapshot is the live product state read together with a cart row.
type ProductSnapshot struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL *string         `json:"imageUrl"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"isActive"`
}

type CartLine struct {
	CartItem
	Product ProductSnapshot `json:"product"`
}

// LineTotal is the live price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// The table stores "" for an unset size or color so the unique key stays
// stable; callers see nil.
func toKey(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func fromKey(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
