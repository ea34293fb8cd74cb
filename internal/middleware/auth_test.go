package middleware_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/items-api/internal/auth"
	"github.com/vyrodovalexey/items-api/internal/middleware"
	"github.com/vyrodovalexey/items-api/internal/model"
)

// stubAuthenticator returns a fixed result and counts calls.
type stubAuthenticator struct {
	info  *auth.AuthInfo
	err   error
	calls int
}

func (a *stubAuthenticator) Authenticate(_ *http.Request) (*auth.AuthInfo, error) {
	a.calls++
	return a.info, a.err
}

func (a *stubAuthenticator) Method() auth.AuthMethod {
	return auth.AuthMethodBearer
}

// recordingHandler notes whether it ran and echoes the subject.
type recordingHandler struct {
	called bool
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	if info, ok := auth.FromContext(r.Context()); ok {
		_, _ = w.Write([]byte(info.Subject))
		return
	}
	_, _ = w.Write([]byte("anonymous"))
}

func TestAuth_PublicPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		wantPublic bool
	}{
		{"health", http.MethodGet, "/health", true},
		{"ready", http.MethodGet, "/ready", true},
		{"metrics", http.MethodGet, "/metrics", true},
		{"login", http.MethodPost, "/api/auth/login", true},
		{"logout", http.MethodPost, "/api/auth/logout", true},
		{"preflight", http.MethodOptions, "/api/items", true},
		{"items", http.MethodGet, "/api/items", false},
		{"item feed", http.MethodGet, "/ws/items", false},
		{"prefix lookalike", http.MethodGet, "/healthz", false},
		{"auth lookalike", http.MethodPost, "/api/authx", false},
		{"reset", http.MethodPost, "/api/test/reset-db", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			authn := &stubAuthenticator{}
			next := &recordingHandler{}
			h := middleware.Auth(authn, zap.NewNop())(next)
			rr := httptest.NewRecorder()

			// Act
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			// Assert
			assert.Equal(t, tt.wantPublic, next.called)
			if tt.wantPublic {
				assert.Zero(t, authn.calls)
			} else {
				assert.Equal(t, http.StatusUnauthorized, rr.Code)
			}
		})
	}
}

func TestAuth_Authenticated(t *testing.T) {
	t.Parallel()

	// Arrange
	authn := &stubAuthenticator{info: &auth.AuthInfo{
		Method:  auth.AuthMethodBearer,
		Source:  auth.TokenSourceCookie,
		Subject: "testuser",
	}}
	next := &recordingHandler{}
	h := middleware.Auth(authn, zap.NewNop())(next)
	rr := httptest.NewRecorder()

	// Act
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/items", nil))

	// Assert
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "testuser", rr.Body.String())
}

func TestAuth_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantChallenge string
		wantMessage   string
	}{
		{
			name:          "no credential",
			wantChallenge: `Bearer realm="items-api"`,
			wantMessage:   "authentication required",
		},
		{
			name:          "invalid token",
			err:           fmt.Errorf("%w: signature is invalid", auth.ErrInvalidToken),
			wantChallenge: `Bearer realm="items-api", error="invalid_token"`,
			wantMessage:   "invalid token",
		},
		{
			name:          "expired token",
			err:           fmt.Errorf("%w: exp in the past", auth.ErrTokenExpired),
			wantChallenge: `Bearer realm="items-api", error="invalid_token"`,
			wantMessage:   "token has expired",
		},
		{
			name:          "verifier failure",
			err:           fmt.Errorf("%w: jwks unreachable", auth.ErrJWKSFetch),
			wantChallenge: `Bearer realm="items-api", error="invalid_token"`,
			wantMessage:   "invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			next := &recordingHandler{}
			h := middleware.Auth(&stubAuthenticator{err: tt.err}, zap.NewNop())(next)
			rr := httptest.NewRecorder()

			// Act
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/items", nil))

			// Assert
			assert.False(t, next.called)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, tt.wantChallenge, rr.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body model.ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, http.StatusUnauthorized, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestAuth_LogsFailureAtWarn(t *testing.T) {
	t.Parallel()

	// Arrange
	core, logs := observer.New(zap.DebugLevel)
	h := middleware.Auth(&stubAuthenticator{err: auth.ErrInvalidToken}, zap.New(core))(&recordingHandler{})

	// Act
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/items", nil))

	// Assert
	entries := logs.FilterMessage("authentication failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "/api/items", entries[0].ContextMap()["path"])
}
