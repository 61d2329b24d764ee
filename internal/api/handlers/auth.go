package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/eventleads/server/internal/api/middleware"
	"github.com/eventleads/server/internal/api/problem"
	"github.com/eventleads/server/internal/audit"
	"github.com/eventleads/server/internal/domain/identity"
	"github.com/eventleads/server/internal/metrics"
	"github.com/go-playground/validator/v10"
)

// AuthHandler exposes the identity lifecycle over HTTP.
type AuthHandler struct {
	lifecycle   *identity.Service
	validate    *validator.Validate
	frontendURL string
	env         string
}

func NewAuthHandler(lifecycle *identity.Service, frontendURL, env string) *AuthHandler {
	return &AuthHandler{
		lifecycle:   lifecycle,
		validate:    validator.New(),
		frontendURL: frontendURL,
		env:         env,
	}
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=200"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Signup handles POST /api/v1/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.lifecycle.Signup(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		metrics.SignupsTotal.WithLabelValues("failure").Inc()
		h.writeLifecycleError(w, r, err)
		return
	}

	metrics.SignupsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusCreated, MessageResponse{
		Message: "Account created. Check your email for a verification link.",
	})
}

// Verify handles GET /api/v1/auth/verify?token=... and redirects to the
// frontend login page with the outcome in the query string.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		h.redirectVerify(w, r, "invalid")
		return
	}

	err := h.lifecycle.Verify(r.Context(), raw, requestMeta(r))
	switch {
	case err == nil:
		h.redirectVerify(w, r, "")
	case errors.Is(err, identity.ErrExpired):
		h.redirectVerify(w, r, "expired")
	case errors.Is(err, identity.ErrAlreadyConsumed):
		h.redirectVerify(w, r, "already_used")
	case errors.Is(err, identity.ErrInvalidToken):
		h.redirectVerify(w, r, "invalid")
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal,
			"Verification failed", err, h.env)
	}
}

func (h *AuthHandler) redirectVerify(w http.ResponseWriter, r *http.Request, verifyError string) {
	target := h.frontendURL + "/login?verified=1"
	if verifyError != "" {
		target = h.frontendURL + "/login?verify_error=" + url.QueryEscape(verifyError)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Resend handles POST /api/v1/auth/resend. The response does not reveal
// whether the email belongs to an account.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.lifecycle.ResendVerification(r.Context(), req.Email, requestMeta(r)); err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "If the account exists and is unverified, a new verification email has been sent.",
	})
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	signed, err := h.lifecycle.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		h.writeLifecycleError(w, r, err)
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, LoginResponse{AccessToken: signed, TokenType: "bearer"})
}

// ResetRequest handles POST /api/v1/auth/reset/request with the same
// generic response for known and unknown emails.
func (h *AuthHandler) ResetRequest(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.lifecycle.RequestReset(r.Context(), req.Email, requestMeta(r)); err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		Message: "If the account exists, a password reset email has been sent.",
	})
}

type ResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=200"`
}

// ResetConfirm handles POST /api/v1/auth/reset/confirm.
func (h *AuthHandler) ResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req ResetConfirmRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.lifecycle.ConfirmReset(r.Context(), req.Token, req.NewPassword, requestMeta(r)); err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset. You can now log in."})
}

// Logout handles POST /api/v1/auth/logout. Sessions are stateless; the
// event is recorded and the client discards its token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized,
			"Authentication required", nil, h.env)
		return
	}

	h.lifecycle.Logout(r.Context(), claims.Subject, requestMeta(r))
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out."})
}

type MeResponse struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	OrgID           string `json:"org_id,omitempty"`
	Role            string `json:"role"`
	NeedsOnboarding bool   `json:"needs_onboarding"`
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized,
			"Authentication required", nil, h.env)
		return
	}

	cred, err := h.lifecycle.Profile(r.Context(), claims.Subject)
	if err != nil {
		h.writeLifecycleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{
		UserID:          cred.ID,
		Email:           cred.Email,
		FirstName:       cred.FirstName,
		LastName:        cred.LastName,
		OrgID:           claims.OrgID,
		Role:            claims.Role,
		NeedsOnboarding: h.lifecycle.NeedsOnboarding(r.Context(), claims.OrgID),
	})
}

// decode parses and validates a JSON request body, writing the 400 itself
// on failure.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeAndValidate(w, r, dst, h.validate, h.env)
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation, writing a 400 problem on any failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, validate *validator.Validate, env string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation,
			"Invalid request body", err, env)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation,
			"Invalid request", err, env, problem.WithErrors(validationErrors(err)))
		return false
	}
	return true
}

func (h *AuthHandler) writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	writeLifecycleError(w, r, err, h.env)
}

// writeLifecycleError maps typed lifecycle failures to problem responses.
func writeLifecycleError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var limited *identity.RateLimitedError
	switch {
	case errors.As(err, &limited):
		metrics.RateLimitedTotal.WithLabelValues(limited.Reason).Inc()
		seconds := int(limited.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited,
			"Too many requests", err, env,
			problem.WithDetail(fmt.Sprintf("Rate limited (%s). Retry after %d seconds.", limited.Reason, seconds)))
	case errors.Is(err, identity.ErrAlreadyExists):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeAlreadyExists,
			"Account already exists", err, env)
	case errors.Is(err, identity.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized,
			"Invalid email or password", err, env)
	case errors.Is(err, identity.ErrUnverified):
		problem.Write(w, r, http.StatusForbidden, problem.TypeEmailUnverified,
			"Email not verified", err, env)
	case errors.Is(err, identity.ErrInvalidToken):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeInvalidToken,
			"Invalid token", err, env)
	case errors.Is(err, identity.ErrExpired):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeTokenExpired,
			"Token expired", err, env)
	case errors.Is(err, identity.ErrAlreadyConsumed):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeTokenConsumed,
			"Token already used", err, env)
	case errors.Is(err, identity.ErrForbidden):
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden,
			"Admin role required", err, env)
	case errors.Is(err, identity.ErrMissingOrg),
		errors.Is(err, identity.ErrInvalidRole),
		errors.Is(err, identity.ErrPasswordTooShort),
		errors.Is(err, identity.ErrPasswordTooLong):
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation,
			"Invalid request", err, env)
	case errors.Is(err, identity.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound,
			"Not found", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeInternal,
			"Internal error", err, env)
	}
}

func validationErrors(err error) map[string]interface{} {
	fields := make(map[string]interface{})
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		for _, fe := range invalid {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}

func requestMeta(r *http.Request) audit.RequestMeta {
	meta := audit.MetaFromRequest(r)
	if id := middleware.GetRequestID(r.Context()); id != "" {
		meta.RequestID = id
	}
	return meta
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
