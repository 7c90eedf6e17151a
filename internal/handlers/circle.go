package handlers

import (
	"net/http"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/middleware"
	"family-memory-backend/internal/models"
	"family-memory-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// CircleHandler handles family-circle HTTP requests
type CircleHandler struct {
	circleService *services.CircleService
}

// NewCircleHandler creates a new circle handler
func NewCircleHandler(circleService *services.CircleService) *CircleHandler {
	return &CircleHandler{circleService: circleService}
}

// parseRoleParam validates the {role} URL parameter against the closed set
func parseRoleParam(r *http.Request) (models.Role, error) {
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		return "", apperr.E(apperr.Validation, err.Error())
	}
	return role, nil
}

type sendInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=Viewer Commenter Contributor"`
}

// SendInvite handles POST /api/v1/circle/invites
func (h *CircleHandler) SendInvite(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var req sendInviteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	if err := h.circleService.SendInvite(r.Context(), ownerID, req.Email, models.Role(req.Role)); err != nil {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Failed to send invite")
		respondAppError(w, err)
		return
	}
	respondJSON(w, map[string]string{"message": "invitation sent"}, http.StatusOK)
}

type inviteRegisterRequest struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// InviteRegister handles POST /api/v1/invites/{role}/{ownerID}/register
func (h *CircleHandler) InviteRegister(w http.ResponseWriter, r *http.Request) {
	role, err := parseRoleParam(r)
	if err != nil {
		respondAppError(w, err)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")

	var req inviteRegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	user, token, err := h.circleService.RegisterInvitee(r.Context(), ownerID, role, req.Username, req.Email, req.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().
		Str("owner_id", ownerID).
		Str("user_id", user.ID).
		Str("role", string(role)).
		Msg("Invitee registered")
	respondJSON(w, authResponse{User: user, Token: token}, http.StatusCreated)
}

// InviteLogin handles POST /api/v1/invites/{role}/{ownerID}/login
func (h *CircleHandler) InviteLogin(w http.ResponseWriter, r *http.Request) {
	role, err := parseRoleParam(r)
	if err != nil {
		respondAppError(w, err)
		return
	}
	ownerID := chi.URLParam(r, "ownerID")

	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	user, token, err := h.circleService.LoginInvitee(r.Context(), ownerID, role, req.Email, req.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, authResponse{User: user, Token: token}, http.StatusOK)
}

// ListCircle handles GET /api/v1/circle
func (h *CircleHandler) ListCircle(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	members, err := h.circleService.ListCircle(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if members == nil {
		members = []models.CircleMember{}
	}

	respondJSON(w, map[string]any{
		"count": len(members),
		"data":  members,
	}, http.StatusOK)
}

type updateRoleRequest struct {
	MemberID string `json:"member_id" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=Viewer Commenter Contributor"`
}

// UpdateRole handles PUT /api/v1/circle/role. The authenticated user is
// the relation owner; there is no admin override.
func (h *CircleHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetUserID(r.Context())

	var req updateRoleRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	if err := h.circleService.UpdateRole(r.Context(), ownerID, req.MemberID, models.Role(req.Role)); err != nil {
		respondAppError(w, err)
		return
	}

	members, err := h.circleService.ListCircle(r.Context(), ownerID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"message": "family role updated",
		"data":    members,
	}, http.StatusOK)
}
