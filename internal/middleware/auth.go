package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/items-api/internal/auth"
)

// publicPaths don't require authentication. Sub-paths are public too.
var publicPaths = map[string]bool{
	"/health":   true,
	"/ready":    true,
	"/metrics":  true,
	"/api/auth": true,
	"/api/test": true,
}

// Authentication outcomes recorded in the auth_attempts_total metric.
const (
	outcomeSuccess = "success"
	outcomeMissing = "missing"
	outcomeInvalid = "invalid"
	outcomeExpired = "expired"
)

// Auth returns a middleware that authenticates requests. A request with
// no credential is rejected with auth.ErrUnauthenticated; a rejected
// credential is answered with the authenticator's error. In both cases
// the wrapped handler is not called. Public paths and CORS preflight
// requests pass through.
func Auth(
	authenticator auth.Authenticator,
	logger *zap.Logger,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(
			w http.ResponseWriter,
			r *http.Request,
		) {
			if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			info, err := authenticator.Authenticate(r)
			if err == nil && info == nil {
				err = auth.ErrUnauthenticated
			}
			if err != nil {
				authAttemptsTotal.WithLabelValues(outcome(err), "none").Inc()
				logger.Warn("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err),
				)
				writeAuthError(w, err)
				return
			}

			authAttemptsTotal.WithLabelValues(outcomeSuccess, string(info.Source)).Inc()
			logger.Debug("authentication successful",
				zap.String("subject", info.Subject),
				zap.String("source", string(info.Source)),
				zap.String("path", r.URL.Path),
			)

			ctx := auth.WithAuthInfo(r.Context(), info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isPublicPath matches exact public paths and their sub-paths
// (/api/auth/login), but not paths that merely share a prefix (/healthz).
func isPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}

	for p := range publicPaths {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}

	return false
}

func outcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return outcomeMissing
	case errors.Is(err, auth.ErrTokenExpired):
		return outcomeExpired
	default:
		return outcomeInvalid
	}
}

// writeAuthError writes a 401 JSON body with a Bearer challenge.
func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrUnauthenticated) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="items-api"`)
	} else {
		w.Header().Set("WWW-Authenticate", `Bearer realm="items-api", error="invalid_token"`)
	}

	writeError(w, http.StatusUnauthorized, authMessage(err))
}

// authMessage hides verifier internals from the client.
func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return "authentication required"
	case errors.Is(err, auth.ErrTokenExpired):
		return auth.ErrTokenExpired.Error()
	default:
		return auth.ErrInvalidToken.Error()
	}
}
