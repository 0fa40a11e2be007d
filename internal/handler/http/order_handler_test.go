package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
	"github.com/vasiliy-maslov/fashion-storefront/internal/order"
)

func placeOrderBody() map[string]interface{} {
	return map[string]interface{}{
		"shippingAddress":  "12 Nguyễn Huệ",
		"customerPhone":    "0901234567",
		"shippingProvince": "Hồ Chí Minh",
		"shippingDistrict": "Quận 1",
		"shippingWard":     "Bến Nghé",
		"paymentMethod":    "cod",
	}
}

func TestOrderHandler_PlaceOrder_Success(t *testing.T) {
	s := newTestServer(t, nil)
	caller := newCustomer()

	wantInput := order.PlaceOrderInput{
		ShippingAddress:  "12 Nguyễn Huệ",
		CustomerPhone:    "0901234567",
		ShippingProvince: "Hồ Chí Minh",
		ShippingDistrict: "Quận 1",
		ShippingWard:     "Bến Nghé",
		PaymentMethod:    order.PaymentCOD,
		IdempotencyKey:   "checkout-1",
	}
	placed := &order.Order{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      caller.UserID,
		Status:      order.StatusPending,
		Subtotal:    decimal.NewFromInt(500000),
		ShippingFee: decimal.NewFromInt(30000),
		Total:       decimal.NewFromInt(530000),
	}
	s.orders.On("PlaceOrder", mock.Anything, caller.UserID, mock.MatchedBy(func(in order.PlaceOrderInput) bool {
		return cmp.Diff(wantInput, in) == ""
	})).Return(placed, nil).Once()

	body, err := json.Marshal(placeOrderBody())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token(t, caller))
	req.Header.Set("Idempotency-Key", " checkout-1 ")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp order.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, placed.ID, resp.ID)
	assert.True(t, placed.Total.Equal(resp.Total))
	assert.Equal(t, order.StatusPending, resp.Status)
}

func TestOrderHandler_PlaceOrder_Failures(t *testing.T) {
	caller := newCustomer()

	testCases := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{"Empty cart", order.ErrEmptyCart, http.StatusBadRequest, "EMPTY_CART"},
		{"Insufficient stock", order.ErrInsufficientStock, http.StatusBadRequest, "INSUFFICIENT_STOCK"},
		{"Missing shipping fields", apperr.NewValidationError("missing required fields", "shippingAddress", "customerPhone"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"Duplicate submission", order.ErrDuplicateSubmission, http.StatusConflict, "CONFLICT"},
		{"Datastore failure", errors.New("service: failed to place order: connection refused"), http.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.orders.On("PlaceOrder", mock.Anything, caller.UserID, mock.Anything).Return(nil, tc.serviceErr).Once()

			rr := s.do(t, http.MethodPost, "/api/orders", &caller, placeOrderBody())

			require.Equal(t, tc.wantStatus, rr.Code)
			assert.Equal(t, tc.wantCode, decodeError(t, rr).Code)
		})
	}
}

func TestOrderHandler_PlaceOrder_ValidationDetails(t *testing.T) {
	s := newTestServer(t, nil)
	caller := newCustomer()
	s.orders.On("PlaceOrder", mock.Anything, caller.UserID, mock.Anything).
		Return(nil, apperr.NewValidationError("missing required fields", "shippingAddress", "customerPhone")).Once()

	rr := s.do(t, http.MethodPost, "/api/orders", &caller, map[string]string{})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, "missing required fields", resp.Error)
	assert.Equal(t, []string{"shippingAddress", "customerPhone"}, resp.Details)
}

func TestOrderHandler_PlaceOrder_InternalErrorHidesDetails(t *testing.T) {
	s := newTestServer(t, nil)
	caller := newCustomer()
	s.orders.On("PlaceOrder", mock.Anything, caller.UserID, mock.Anything).
		Return(nil, errors.New("pq: password authentication failed")).Once()

	rr := s.do(t, http.MethodPost, "/api/orders", &caller, placeOrderBody())

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to create order", decodeError(t, rr).Error)
}

func TestOrderHandler_PlaceOrder_UnknownPaymentMethod(t *testing.T) {
	s := newTestServer(t, nil)
	caller := newCustomer()

	body := placeOrderBody()
	body["paymentMethod"] = "crypto"
	rr := s.do(t, http.MethodPost, "/api/orders", &caller, body)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	s.orders.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderHandler_ListMyOrders(t *testing.T) {
	s := newTestServer(t, nil)
	caller := newCustomer()

	orders := []order.Order{{ID: uuid.Must(uuid.NewV4()), UserID: caller.UserID, Items: []order.OrderItem{{Quantity: 2}}}}
	s.orders.On("GetOrdersByUserID", mock.Anything, caller.UserID).Return(orders, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/orders", &caller, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []order.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Len(t, resp[0].Items, 1)
}

func TestOrderHandler_GetOrder_AdminOnly(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())

	t.Run("Customer is forbidden", func(t *testing.T) {
		s := newTestServer(t, nil)
		caller := newCustomer()

		rr := s.do(t, http.MethodGet, "/api/orders/"+orderID.String(), &caller, nil)

		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "FORBIDDEN", decodeError(t, rr).Code)
	})

	t.Run("Admin gets the order", func(t *testing.T) {
		s := newTestServer(t, nil)
		admin := newAdmin()
		s.orders.On("GetOrderByID", mock.Anything, orderID).Return(&order.Order{ID: orderID}, nil).Once()

		rr := s.do(t, http.MethodGet, "/api/orders/"+orderID.String(), &admin, nil)

		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Unknown order", func(t *testing.T) {
		s := newTestServer(t, nil)
		admin := newAdmin()
		s.orders.On("GetOrderByID", mock.Anything, orderID).Return(nil, order.ErrOrderNotFound).Once()

		rr := s.do(t, http.MethodGet, "/api/orders/"+orderID.String(), &admin, nil)

		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "order not found", decodeError(t, rr).Error)
	})
}

func TestOrderHandler_UpdateOrderStatus(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	admin := newAdmin()

	for _, path := range []string{"/api/orders/" + orderID.String() + "/status", "/api/admin/orders/" + orderID.String() + "/status"} {
		t.Run(path, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.orders.On("UpdateOrderStatus", mock.Anything, orderID, order.StatusCancelled).
				Return(&order.Order{ID: orderID, Status: order.StatusCancelled}, nil).Once()

			rr := s.do(t, http.MethodPut, path, &admin, map[string]string{"status": "cancelled"})

			require.Equal(t, http.StatusOK, rr.Code)
			var resp order.Order
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, order.StatusCancelled, resp.Status)
		})
	}

	t.Run("Unknown status", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.orders.On("UpdateOrderStatus", mock.Anything, orderID, order.Status("lost")).
			Return(nil, apperr.NewValidationError("unknown order status lost", "status")).Once()

		rr := s.do(t, http.MethodPut, "/api/admin/orders/"+orderID.String()+"/status", &admin, map[string]string{"status": "lost"})

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Reopen without stock", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.orders.On("UpdateOrderStatus", mock.Anything, orderID, order.StatusPending).
			Return(nil, order.ErrInsufficientStock).Once()

		rr := s.do(t, http.MethodPut, "/api/admin/orders/"+orderID.String()+"/status", &admin, map[string]string{"status": "pending"})

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "INSUFFICIENT_STOCK", decodeError(t, rr).Code)
	})
}

func TestOrderHandler_ListAllOrders(t *testing.T) {
	s := newTestServer(t, nil)
	admin := newAdmin()

	orders := []order.Order{{ID: uuid.Must(uuid.NewV4()), Customer: &order.Customer{FirstName: "Lan"}}}
	s.orders.On("ListOrders", mock.Anything).Return(orders, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/admin/orders", &admin, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []order.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp, 1)
	require.NotNil(t, resp[0].Customer)
	assert.Equal(t, "Lan", resp[0].Customer.FirstName)
}
