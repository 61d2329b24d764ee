package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventleads/server/internal/api/middleware"
	"github.com/eventleads/server/internal/api/problem"
	"github.com/eventleads/server/internal/domain/identity"
	"github.com/eventleads/server/internal/metrics"
	"github.com/go-playground/validator/v10"
)

// InvitationsHandler covers the invite lifecycle: admin-issued creation,
// unauthenticated preview, and unauthenticated acceptance.
type InvitationsHandler struct {
	lifecycle *identity.Service
	validate  *validator.Validate
	env       string
}

func NewInvitationsHandler(lifecycle *identity.Service, env string) *InvitationsHandler {
	return &InvitationsHandler{
		lifecycle: lifecycle,
		validate:  validator.New(),
		env:       env,
	}
}

type CreateInvitationRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"omitempty,oneof=User Admin SystemAdmin"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type InvitationResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Create handles POST /api/v1/invitations. Requires an admin session.
func (h *InvitationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized,
			"Authentication required", nil, h.env)
		return
	}

	var req CreateInvitationRequest
	if !h.decode(w, r, &req) {
		return
	}

	inv, err := h.lifecycle.CreateInvitation(r.Context(),
		identity.IssuerContext{
			SubjectID: claims.Subject,
			OrgID:     claims.OrgID,
			Role:      claims.Role,
		},
		identity.CreateInvitationParams{
			Email:     req.Email,
			Role:      req.Role,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
		requestMeta(r),
	)
	if err != nil {
		writeLifecycleError(w, r, err, h.env)
		return
	}

	metrics.InvitationsTotal.WithLabelValues("created").Inc()
	writeJSON(w, http.StatusCreated, InvitationResponse{
		ID:        inv.ID,
		Email:     inv.Email,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
	})
}

type InvitationPreviewResponse struct {
	Email     string    `json:"email"`
	InvitedBy string    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Preview handles GET /api/v1/invitations/{token}/preview. Public: the
// accept page shows who invited whom before asking for a password.
func (h *InvitationsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("token")
	if raw == "" {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound,
			"Invitation not found", nil, h.env)
		return
	}

	inv, inviter, err := h.lifecycle.PreviewInvitation(r.Context(), raw)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound,
				"Invitation not found", err, h.env)
			return
		}
		writeLifecycleError(w, r, err, h.env)
		return
	}

	writeJSON(w, http.StatusOK, InvitationPreviewResponse{
		Email:     inv.Email,
		InvitedBy: inviter,
		ExpiresAt: inv.ExpiresAt,
	})
}

type AcceptInvitationRequest struct {
	Password string `json:"password" validate:"required,min=8,max=200"`
}

type AcceptInvitationResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// Accept handles POST /api/v1/invitations/{token}/accept. Public: the
// invitee has no session yet.
func (h *InvitationsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("token")
	if raw == "" {
		problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound,
			"Invitation not found", nil, h.env)
		return
	}

	var req AcceptInvitationRequest
	if !h.decode(w, r, &req) {
		return
	}

	cred, err := h.lifecycle.AcceptInvitation(r.Context(), raw, req.Password, requestMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidToken):
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound,
				"Invitation not found", err, h.env)
		case errors.Is(err, identity.ErrExpired):
			problem.Write(w, r, http.StatusGone, problem.TypeTokenExpired,
				"Invitation expired", err, h.env)
		case errors.Is(err, identity.ErrAlreadyConsumed):
			problem.Write(w, r, http.StatusGone, problem.TypeTokenConsumed,
				"Invitation already used", err, h.env)
		default:
			writeLifecycleError(w, r, err, h.env)
		}
		return
	}

	metrics.InvitationsTotal.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusOK, AcceptInvitationResponse{
		Message: "Invitation accepted. You can now log in.",
		Email:   cred.Email,
	})
}

func (h *InvitationsHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeAndValidate(w, r, dst, h.validate, h.env)
}
