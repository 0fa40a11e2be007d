package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/fashion-storefront/internal/auth"
	storefrontHttp "github.com/vasiliy-maslov/fashion-storefront/internal/handler/http"
)

const testSecret = "test-secret"

type testServer struct {
	router    *chi.Mux
	verifier  *auth.Verifier
	carts     *MockCartService
	orders    *MockOrderService
	reviews   *MockReviewService
	catalog   *MockCatalogService
	users     *MockUserService
	shipping  *MockShippingService
	dashboard *MockDashboardService
}

func newTestServer(t *testing.T, limiter *storefrontHttp.RateLimiter) *testServer {
	t.Helper()

	s := &testServer{
		verifier:  auth.NewVerifier(testSecret),
		carts:     new(MockCartService),
		orders:    new(MockOrderService),
		reviews:   new(MockReviewService),
		catalog:   new(MockCatalogService),
		users:     new(MockUserService),
		shipping:  new(MockShippingService),
		dashboard: new(MockDashboardService),
	}
	s.router = storefrontHttp.NewRouter(storefrontHttp.Handlers{
		Cart:      storefrontHttp.NewCartHandler(s.carts),
		Orders:    storefrontHttp.NewOrderHandler(s.orders, limiter),
		Reviews:   storefrontHttp.NewReviewHandler(s.reviews, limiter),
		Catalog:   storefrontHttp.NewCatalogHandler(s.catalog, s.reviews),
		Users:     storefrontHttp.NewUserHandler(s.users),
		Shipping:  storefrontHttp.NewShippingHandler(s.shipping),
		Dashboard: storefrontHttp.NewDashboardHandler(s.dashboard),
	}, s.verifier)

	t.Cleanup(func() {
		s.carts.AssertExpectations(t)
		s.orders.AssertExpectations(t)
		s.reviews.AssertExpectations(t)
		s.catalog.AssertExpectations(t)
		s.users.AssertExpectations(t)
		s.shipping.AssertExpectations(t)
		s.dashboard.AssertExpectations(t)
	})

	return s
}

func (s *testServer) token(t *testing.T, id auth.Identity) string {
	t.Helper()

	token, err := s.verifier.Sign(id, validClaims())
	require.NoError(t, err)
	return token
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
}

func newCustomer() auth.Identity {
	return auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleCustomer}
}

func newAdmin() auth.Identity {
	return auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleAdmin}
}

// do sends a request through the router. A nil identity sends no token.
func (s *testServer) do(t *testing.T, method, path string, id *auth.Identity, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		jsonBody, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if id != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, *id))
	}

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) storefrontHttp.ErrorResponse {
	t.Helper()

	var errorResponse storefrontHttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errorResponse), "Failed to decode error response body")
	return errorResponse
}
