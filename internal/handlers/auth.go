package handlers

import (
	"net/http"

	"family-memory-backend/internal/middleware"
	"family-memory-backend/internal/models"
	"family-memory-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration, login and profile requests
type AuthHandler struct {
	userService *services.UserService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	user, token, err := h.userService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	respondJSON(w, authResponse{User: user, Token: token}, http.StatusCreated)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	user, token, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, authResponse{User: user, Token: token}, http.StatusOK)
}

// Profile handles GET /api/v1/users/me
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, user, http.StatusOK)
}

// UpdateProfile handles PUT /api/v1/users/me (multipart form)
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := r.ParseMultipartForm(maxMultipartSize); err != nil {
		respondError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	req := services.UpdateProfileRequest{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}

	if files := r.MultipartForm.File["profile_image"]; len(files) > 0 {
		uploads, err := readUploads(files[:1])
		if err != nil {
			respondAppError(w, err)
			return
		}
		req.Image = uploads[0].Data
		req.ImageContentType = uploads[0].ContentType
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, user, http.StatusOK)
}
