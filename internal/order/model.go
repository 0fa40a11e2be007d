package order

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var knownStatuses = map[Status]bool{
	StatusPending:    true,
	StatusConfirmed:  true,
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCancelled:  true,
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	return knownStatuses[s]
}

type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentBankTransfer
}

const PaymentStatusPending = "pending"

type OrderItem struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"orderId"`
	ProductID    uuid.UUID       `json:"productId"`
	ProductName  string          `json:"productName,omitempty"`
	ProductImage *string         `json:"productImage,omitempty"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Size         *string         `json:"size"`
	Color        *string         `json:"color"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Customer is the account behind an order, shown in the admin order list.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"userId"`
	Status           Status          `json:"status"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	PaymentStatus    string          `json:"paymentStatus"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingFee      decimal.Decimal `json:"shippingFee"`
	Total            decimal.Decimal `json:"total"`
	CustomerName     string          `json:"customerName"`
	CustomerPhone    string          `json:"customerPhone"`
	CustomerEmail    string          `json:"customerEmail"`
	ShippingAddress  string          `json:"shippingAddress"`
	ShippingProvince string          `json:"shippingProvince"`
	ShippingDistrict string          `json:"shippingDistrict"`
	ShippingWard     string          `json:"shippingWard"`
	Notes            *string         `json:"notes"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	Items            []OrderItem     `json:"items,omitempty"`
	Customer         *Customer       `json:"user,omitempty"`
}

type PlaceOrderInput struct {
	ShippingAddress  string
	CustomerPhone    string
	ShippingProvince string
	ShippingDistrict string
	ShippingWard     string
	PaymentMethod    PaymentMethod
	Notes            *string
	// IdempotencyKey is optional; a repeated key is rejected while it is held.
	IdempotencyKey string
}

// StatusChange describes what UpdateOrderStatus did to an order.
type StatusChange struct {
	OrderID       uuid.UUID
	From          Status
	To            Status
	StockRestored bool
	StockReserved bool
}

func (c StatusChange) Changed() bool {
	return c.From != c.To
}
