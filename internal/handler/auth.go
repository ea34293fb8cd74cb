package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/items-api/internal/auth"
	"github.com/vyrodovalexey/items-api/internal/model"
	"github.com/vyrodovalexey/items-api/internal/service"
)

// TokenIssuer mints access tokens for a subject.
type TokenIssuer interface {
	Issue(subject string) (token string, expiry time.Time, err error)
	Lifetime() time.Duration
}

// CredentialChecker validates a username and password.
type CredentialChecker interface {
	Check(username, password string) (string, error)
}

// CookieOptions controls the attributes of the access_token cookie.
type CookieOptions struct {
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
	Domain   string
}

// AuthHandler serves session login and logout.
type AuthHandler struct {
	issuer   TokenIssuer
	users    CredentialChecker
	cookie   CookieOptions
	validate *service.Validator
	logger   *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(
	issuer TokenIssuer,
	users CredentialChecker,
	cookie CookieOptions,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		issuer:   issuer,
		users:    users,
		cookie:   cookie,
		validate: service.NewValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the login and logout routes on an /api subrouter.
func (h *AuthHandler) RegisterRoutes(api *mux.Router) {
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
}

// Login handles POST /api/auth/login. Valid credentials receive an
// access_token cookie that the token authenticator accepts.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input model.LoginInput
	if err := decodeJSON(r, &input); err != nil {
		handleError(w, r, h.logger, err, "login")
		return
	}

	if err := h.validate.Struct(input); err != nil {
		handleError(w, r, h.logger, err, "login")
		return
	}

	subject, err := h.users.Check(*input.Username, *input.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			handleError(w, r, h.logger, err, "login")
			return
		}
		h.logger.Warn("login rejected",
			zap.String("username", *input.Username),
			zap.String("remote_addr", r.RemoteAddr),
		)
		writeJSON(w, h.logger, http.StatusUnauthorized, model.DetailResponse{Detail: "Invalid credentials"})
		return
	}

	token, _, err := h.issuer.Issue(subject)
	if err != nil {
		handleError(w, r, h.logger, err, "login")
		return
	}

	http.SetCookie(w, h.newCookie(token, int(h.issuer.Lifetime().Seconds())))
	h.logger.Info("login succeeded", zap.String("subject", subject))
	writeJSON(w, h.logger, http.StatusOK, model.MessageResponse{Message: "Login successful"})
}

// Logout handles POST /api/auth/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.newCookie("", -1))
	writeJSON(w, h.logger, http.StatusOK, model.MessageResponse{Message: "Logged out"})
}

// newCookie builds the access_token cookie. A negative maxAge expires it.
func (h *AuthHandler) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    value,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: h.cookie.HTTPOnly,
		SameSite: h.cookie.SameSite,
	}
}
