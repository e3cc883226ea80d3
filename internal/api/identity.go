// internal/api/identity.go
package api

import (
	"context"
	"net/http"
	"strings"

	"banking-assistant/internal/common/auth"
	apperrors "banking-assistant/internal/common/errors"
)

// Identifier derives the authenticated customer from a request. Message text is
// never consulted.
type Identifier interface {
	Identify(r *http.Request) (string, error)
}

// HeaderIdentifier trusts a header set by an upstream gateway.
type HeaderIdentifier struct {
	Header string
}

func (h HeaderIdentifier) Identify(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(h.Header))
	if id == "" {
		return "", apperrors.NewUnauthenticatedError("missing " + h.Header + " header")
	}
	return id, nil
}

// TokenIntrospector is the part of the Keycloak client the API needs.
type TokenIntrospector interface {
	CustomerID(ctx context.Context, token, claim string) (string, error)
}

var _ TokenIntrospector = (*auth.KeycloakClient)(nil)

// KeycloakIdentifier introspects the bearer token and reads the customer claim.
type KeycloakIdentifier struct {
	Introspector TokenIntrospector
	Claim        string
}

func (k KeycloakIdentifier) Identify(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", apperrors.NewUnauthenticatedError("missing bearer token")
	}
	return k.Introspector.CustomerID(r.Context(), strings.TrimSpace(token), k.Claim)
}

type customerKey struct{}

func withCustomer(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerKey{}, customerID)
}

// CustomerFrom returns the customer stored by the authentication middleware.
func CustomerFrom(ctx context.Context) string {
	id, _ := ctx.Value(customerKey{}).(string)
	return id
}
