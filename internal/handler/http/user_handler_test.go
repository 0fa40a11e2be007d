package http_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/fashion-storefront/internal/auth"
	"github.com/vasiliy-maslov/fashion-storefront/internal/user"
)

func TestUserHandler_GetCurrentUser(t *testing.T) {
	s := newTestServer(t, nil)
	caller := newCustomer()
	s.users.On("GetUserByID", mock.Anything, caller.UserID).
		Return(&user.User{ID: caller.UserID, FirstName: "Lan", Role: auth.RoleCustomer}, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/auth/user", &caller, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp user.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Lan", resp.FirstName)
}

func TestUserHandler_SyncProfile_UsesTokenSubject(t *testing.T) {
	s := newTestServer(t, nil)
	caller := newCustomer()
	s.users.On("SyncProfile", mock.Anything, mock.MatchedBy(func(u *user.User) bool {
		return u.ID == caller.UserID && u.Email == "lan@example.com" && u.Role == ""
	})).Return(&user.User{ID: caller.UserID, Email: "lan@example.com", Role: auth.RoleCustomer}, nil).Once()

	rr := s.do(t, http.MethodPut, "/api/auth/user", &caller,
		map[string]string{"firstName": "Lan", "lastName": "Nguyen", "email": "lan@example.com"})

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestUserHandler_SyncProfile_RejectsRoleField(t *testing.T) {
	s := newTestServer(t, nil)
	caller := newCustomer()

	rr := s.do(t, http.MethodPut, "/api/auth/user", &caller,
		map[string]string{"email": "lan@example.com", "role": "admin"})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeError(t, rr).Error, "Invalid request payload")
}

func TestUserHandler_ListUsers(t *testing.T) {
	s := newTestServer(t, nil)
	admin := newAdmin()
	s.users.On("ListUsers", mock.Anything).Return([]user.User{{Email: "a@example.com"}, {Email: "b@example.com"}}, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/users", &admin, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp []user.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp, 2)
}

func TestUserHandler_UpdateRole(t *testing.T) {
	admin := newAdmin()
	userID := uuid.Must(uuid.NewV4())

	t.Run("Promote", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.users.On("UpdateUserRole", mock.Anything, userID, auth.RoleAdmin).Return(nil).Once()

		rr := s.do(t, http.MethodPut, "/api/users/"+userID.String()+"/role", &admin, map[string]string{"role": "admin"})

		require.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("Unknown role", func(t *testing.T) {
		s := newTestServer(t, nil)

		rr := s.do(t, http.MethodPut, "/api/users/"+userID.String()+"/role", &admin, map[string]string{"role": "root"})

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Unknown user", func(t *testing.T) {
		s := newTestServer(t, nil)
		s.users.On("UpdateUserRole", mock.Anything, userID, auth.RoleCustomer).Return(user.ErrNotFound).Once()

		rr := s.do(t, http.MethodPut, "/api/users/"+userID.String()+"/role", &admin, map[string]string{"role": "customer"})

		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}
