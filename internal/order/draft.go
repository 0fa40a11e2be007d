package order

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
	"github.com/vasiliy-maslov/fashion-storefront/internal/cart"
	"github.com/vasiliy-maslov/fashion-storefront/internal/user"
)

// BuildOrder turns the caller's cart into an unsaved pending order.
// Prices come from the live product rows in lines, never from the client,
// and are copied onto each item.
func BuildOrder(u *user.User, lines []cart.CartLine, in PlaceOrderInput, shippingFee decimal.Decimal) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentCOD
	}

	var missing []string
	if in.ShippingAddress == "" {
		missing = append(missing, "shippingAddress")
	}
	if in.CustomerPhone == "" {
		missing = append(missing, "customerPhone")
	}
	if len(missing) > 0 {
		return nil, apperr.NewValidationError("missing required fields", missing...)
	}
	if !in.PaymentMethod.Valid() {
		return nil, apperr.NewValidationError("payment method must be cod or bank_transfer", "paymentMethod")
	}

	subtotal := decimal.Zero
	items := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		if !line.Product.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, line.Product.Name)
		}

		subtotal = subtotal.Add(line.LineTotal())
		items = append(items, OrderItem{
			ProductID:    line.ProductID,
			ProductName:  line.Product.Name,
			ProductImage: line.Product.ImageURL,
			Quantity:     line.Quantity,
			Price:        line.Product.Price,
			Size:         line.Size,
			Color:        line.Color,
		})
	}

	return &Order{
		UserID:           u.ID,
		Status:           StatusPending,
		PaymentMethod:    in.PaymentMethod,
		PaymentStatus:    PaymentStatusPending,
		Subtotal:         subtotal,
		ShippingFee:      shippingFee,
		Total:            subtotal.Add(shippingFee),
		CustomerName:     u.FullName(),
		CustomerPhone:    in.CustomerPhone,
		CustomerEmail:    u.Email,
		ShippingAddress:  in.ShippingAddress,
		ShippingProvince: strings.TrimSpace(in.ShippingProvince),
		ShippingDistrict: strings.TrimSpace(in.ShippingDistrict),
		ShippingWard:     strings.TrimSpace(in.ShippingWard),
		Notes:            in.Notes,
		Items:            items,
	}, nil
}
