// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"banking-assistant/internal/common/errors"
)

// KeycloakClient introspects bearer tokens so the HTTP surface can derive the
// authenticated customer. The customer id is never read from message text.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// TokenInfo holds the information returned by the token introspection endpoint.
type TokenInfo struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Sub       string `json:"sub,omitempty"`
	Iss       string `json:"iss,omitempty"`

	// Claims keeps every introspected claim, including custom mappers.
	Claims map[string]interface{} `json:"-"`
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// ValidateToken checks if an access token is valid and active.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	introspectURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("token_type_hint", "access_token")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, introspectURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("create introspection request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewUnauthenticatedError("introspection request failed: " + err.Error()).
			WithMetadata("transient", true)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUnauthenticatedError("read introspection response: " + err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewUnauthenticatedError(fmt.Sprintf("introspection returned status %d", resp.StatusCode)).
			WithMetadata("transient", isTransientHTTPError(resp.StatusCode))
	}

	var tokenInfo TokenInfo
	if err := json.Unmarshal(body, &tokenInfo); err != nil {
		return nil, errors.NewUnauthenticatedError("decode introspection response: " + err.Error())
	}
	if err := json.Unmarshal(body, &tokenInfo.Claims); err != nil {
		return nil, errors.NewUnauthenticatedError("decode introspection claims: " + err.Error())
	}

	if !tokenInfo.Active {
		return nil, errors.NewUnauthenticatedError("token is expired, revoked or malformed")
	}
	return &tokenInfo, nil
}

// CustomerID validates the token and returns the string value of claim.
func (k *KeycloakClient) CustomerID(ctx context.Context, token, claim string) (string, error) {
	info, err := k.ValidateToken(ctx, token)
	if err != nil {
		return "", err
	}
	if claim == "" || claim == "sub" {
		if info.Sub == "" {
			return "", errors.NewMissingCustomerIDError()
		}
		return info.Sub, nil
	}
	value, ok := info.Claims[claim].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", errors.NewMissingCustomerIDError()
	}
	return value, nil
}

func isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
