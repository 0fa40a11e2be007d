// Package auth resolves the caller identity once per request and carries it
// on the request context. Sessions and login live in an external provider;
// this service only verifies the bearer token that provider issues.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/fashion-storefront/internal/apperr"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

type Identity struct {
	UserID uuid.UUID
	Role   Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

var (
	ErrMissingToken = fmt.Errorf("missing bearer token: %w", apperr.ErrUnauthorized)
	ErrInvalidToken = fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
	ErrAdminOnly    = fmt.Errorf("admin role required: %w", apperr.ErrForbidden)
)

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses an HS256 token whose subject is the user id.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}

	userID, err := uuid.FromString(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}

	role := claims.Role
	if role == "" {
		role = RoleCustomer
	}
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}

	return Identity{UserID: userID, Role: role}, nil
}

// Sign issues a token for id. Used by tests and local tooling.
func (v *Verifier) Sign(id Identity, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = id.UserID.String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: id.Role, RegisteredClaims: claims})
	return token.SignedString(v.secret)
}

// Middleware attaches the identity when a valid bearer token is present.
// Requests without a token pass through anonymously; a malformed or
// expired token is rejected.
func (v *Verifier) Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				onError(w, r, ErrMissingToken)
				return
			}

			id, err := v.Verify(tokenString)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("auth: rejected bearer token")
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func RequireUser(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				onError(w, r, ErrMissingToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				onError(w, r, ErrMissingToken)
				return
			}
			if !id.IsAdmin() {
				onError(w, r, ErrAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
