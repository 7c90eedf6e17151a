package handlers

import (
	"net/http"
	"time"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/middleware"
	"family-memory-backend/internal/models"
	"family-memory-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// MemoryHandler handles memory HTTP requests
type MemoryHandler struct {
	memoryService *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memoryService *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

// Create handles POST /api/v1/memories (multipart form)
func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := r.ParseMultipartForm(maxMultipartSize); err != nil {
		respondError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	title := r.FormValue("title")
	description := r.FormValue("description")
	if title == "" || description == "" {
		respondError(w, "title and description are required", http.StatusBadRequest)
		return
	}

	stage, err := models.ParseLifeStage(r.FormValue("life_stage"))
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	date := time.Now()
	if d := r.FormValue("date"); d != "" {
		parsed, err := time.Parse(time.RFC3339, d)
		if err != nil {
			respondError(w, "date must be RFC3339", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	uploads, err := readUploads(r.MultipartForm.File["images"])
	if err != nil {
		respondAppError(w, err)
		return
	}

	memory, err := h.memoryService.CreateMemory(r.Context(), userID, services.CreateMemoryRequest{
		Title:       title,
		LifeStage:   stage,
		Description: description,
		Date:        date,
		IsPrivate:   r.FormValue("is_private") == "true",
		Images:      uploads,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create memory")
		respondAppError(w, err)
		return
	}
	respondJSON(w, memory, http.StatusCreated)
}

// ListOwn handles GET /api/v1/memories
func (h *MemoryHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	memories, err := h.memoryService.ListOwn(r.Context(), userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if memories == nil {
		memories = []*models.MemoryWithAuthor{}
	}

	respondJSON(w, map[string]any{
		"count":    len(memories),
		"memories": memories,
	}, http.StatusOK)
}

// FamilyTimeline handles GET /api/v1/memories/family
func (h *MemoryHandler) FamilyTimeline(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	memories, err := h.memoryService.FamilyTimeline(r.Context(), userID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	if memories == nil {
		memories = []*models.MemoryWithAuthor{}
	}

	respondJSON(w, map[string]any{
		"count":    len(memories),
		"memories": memories,
	}, http.StatusOK)
}

// GetOne handles GET /api/v1/memories/{memoryID}
func (h *MemoryHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memoryID := chi.URLParam(r, "memoryID")

	memory, err := h.memoryService.GetMemory(r.Context(), userID, memoryID)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, memory, http.StatusOK)
}

// Update handles PUT /api/v1/memories/{memoryID} (multipart form)
func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memoryID := chi.URLParam(r, "memoryID")

	if err := r.ParseMultipartForm(maxMultipartSize); err != nil {
		respondError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	req := services.UpdateMemoryRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
	}

	if s := r.FormValue("life_stage"); s != "" {
		stage, err := models.ParseLifeStage(s)
		if err != nil {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.LifeStage = stage
	}

	if d := r.FormValue("date"); d != "" {
		parsed, err := time.Parse(time.RFC3339, d)
		if err != nil {
			respondError(w, "date must be RFC3339", http.StatusBadRequest)
			return
		}
		req.Date = &parsed
	}

	if p := r.FormValue("is_private"); p != "" {
		isPrivate := p == "true"
		req.IsPrivate = &isPrivate
	}

	req.RemoveImageIDs = r.MultipartForm.Value["removed_images"]

	uploads, err := readUploads(r.MultipartForm.File["images"])
	if err != nil {
		respondAppError(w, err)
		return
	}
	req.AddImages = uploads

	memory, err := h.memoryService.UpdateMemory(r.Context(), userID, memoryID, req)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, memory, http.StatusOK)
}

// Delete handles DELETE /api/v1/memories/{memoryID}
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memoryID := chi.URLParam(r, "memoryID")

	if err := h.memoryService.DeleteMemory(r.Context(), userID, memoryID); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, map[string]string{"message": "memory deleted"}, http.StatusOK)
}

type commentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

// Comment handles POST /api/v1/memories/{memoryID}/comments
func (h *MemoryHandler) Comment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memoryID := chi.URLParam(r, "memoryID")

	var req commentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	comment, err := h.memoryService.AddComment(r.Context(), userID, memoryID, req.Comment)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, comment, http.StatusCreated)
}

type reactionRequest struct {
	Type string `json:"type" validate:"required,oneof=like heart smile"`
}

// React handles PUT /api/v1/memories/{memoryID}/reaction
func (h *MemoryHandler) React(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	memoryID := chi.URLParam(r, "memoryID")

	var req reactionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondAppError(w, err)
		return
	}

	typ, err := models.ParseReactionType(req.Type)
	if err != nil {
		respondAppError(w, apperr.E(apperr.Validation, err.Error()))
		return
	}

	summary, err := h.memoryService.ToggleReaction(r.Context(), userID, memoryID, typ)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, summary, http.StatusOK)
}
