package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Credential locations.
const (
	AuthorizationHeader = "Authorization"
	AccessTokenCookie   = "access_token"
	DefaultScheme       = "bearer"
)

// TokenVerifier verifies JWT/OIDC tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*TokenClaims, error)
}

// TokenClaims holds the claims from a verified token.
type TokenClaims struct {
	Subject  string
	Audience []string
	Issuer   string
	Expiry   time.Time
	Claims   map[string]any
}

// TokenAuthenticator resolves the caller from a bearer token. The
// Authorization header is checked first; when it is absent or carries
// another scheme, the access_token cookie is used instead.
type TokenAuthenticator struct {
	verifier TokenVerifier
	scheme   string
}

// NewTokenAuthenticator creates an authenticator for the "bearer" scheme.
func NewTokenAuthenticator(verifier TokenVerifier) *TokenAuthenticator {
	return &TokenAuthenticator{
		verifier: verifier,
		scheme:   DefaultScheme,
	}
}

// Authenticate looks up a candidate token and verifies it. It returns
// (nil, nil) when neither the header nor the cookie carries a token.
// Verifier errors are returned as-is.
func (a *TokenAuthenticator) Authenticate(
	r *http.Request,
) (*AuthInfo, error) {
	if token, ok := a.headerToken(r); ok {
		return a.verify(r, token, TokenSourceHeader)
	}

	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return a.verify(r, c.Value, TokenSourceCookie)
	}

	return nil, nil
}

// Method returns the authentication method type.
func (a *TokenAuthenticator) Method() AuthMethod {
	return AuthMethodBearer
}

// headerToken extracts the credential following a matching scheme.
func (a *TokenAuthenticator) headerToken(r *http.Request) (string, bool) {
	value := r.Header.Get(AuthorizationHeader)
	if value == "" {
		return "", false
	}

	parts := strings.Fields(value)
	if len(parts) == 0 || !strings.EqualFold(parts[0], a.scheme) {
		return "", false
	}

	return strings.Join(parts[1:], " "), true
}

func (a *TokenAuthenticator) verify(
	r *http.Request,
	token string,
	source TokenSource,
) (*AuthInfo, error) {
	claims, err := a.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}

	return &AuthInfo{
		Method:  AuthMethodBearer,
		Source:  source,
		Subject: claims.Subject,
		Claims:  claims.Claims,
	}, nil
}
