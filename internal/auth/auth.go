// Package auth provides authentication for the REST API.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthMethod represents the authentication method used.
type AuthMethod string

const (
	// AuthMethodNone indicates no authentication.
	AuthMethodNone AuthMethod = "none"
	// AuthMethodBearer indicates a JWT access token from a header or cookie.
	AuthMethodBearer AuthMethod = "bearer"
)

// TokenSource records where a credential was found.
type TokenSource string

const (
	// TokenSourceHeader is the Authorization header.
	TokenSourceHeader TokenSource = "header"
	// TokenSourceCookie is the access_token cookie.
	TokenSourceCookie TokenSource = "cookie"
)

// AuthInfo holds authenticated identity information.
type AuthInfo struct {
	Method  AuthMethod
	Source  TokenSource
	Subject string
	Claims  map[string]any
}

// Authenticator validates a request and returns auth info.
//
// A nil *AuthInfo with a nil error means the request carried no
// credential at all. A non-nil error means a credential was presented
// and rejected.
type Authenticator interface {
	Authenticate(r *http.Request) (*AuthInfo, error)
	Method() AuthMethod
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// contextKey is the type for context keys in this package.
type contextKey string

// authInfoKey is the context key for AuthInfo.
const authInfoKey contextKey = "auth_info"

// FromContext retrieves AuthInfo from the context.
func FromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

// WithAuthInfo stores AuthInfo in the context.
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}
