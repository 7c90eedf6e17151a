package handlers

import (
	"net/http"
	"strings"

	"family-memory-backend/internal/middleware"
	"family-memory-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// BlogHandler handles blog and admin HTTP requests
type BlogHandler struct {
	blogService *services.BlogService
}

// NewBlogHandler creates a new blog handler
func NewBlogHandler(blogService *services.BlogService) *BlogHandler {
	return &BlogHandler{blogService: blogService}
}

func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Create handles POST /api/v1/admin/blogs (multipart form)
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	uploads, err := readUploads(r.MultipartForm.File["images"])
	if err != nil {
		respondAppError(w, err)
		return
	}

	blog, err := h.blogService.CreateBlog(r.Context(), userID, services.CreateBlogRequest{
		Title:       title,
		Description: description,
		Tags:        parseTags(r.FormValue("tags")),
		Images:      uploads,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create blog")
		respondAppError(w, err)
		return
	}
	respondJSON(w, blog, http.StatusCreated)
}

// Update handles PUT /api/v1/admin/blogs/{blogID} (multipart form)
func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	blogID := chi.URLParam(r, "blogID")

	if err := r.ParseMultipartForm(maxMultipartSize); err != nil {
		respondError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	uploads, err := readUploads(r.MultipartForm.File["images"])
	if err != nil {
		respondAppError(w, err)
		return
	}

	var tags []string
	if _, ok := r.MultipartForm.Value["tags"]; ok {
		tags = parseTags(r.FormValue("tags"))
		if tags == nil {
			tags = []string{}
		}
	}

	blog, err := h.blogService.UpdateBlog(r.Context(), userID, blogID, services.UpdateBlogRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Tags:        tags,
		Images:      uploads,
	})
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, blog, http.StatusOK)
}

// Delete handles DELETE /api/v1/admin/blogs/{blogID}
func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	blogID := chi.URLParam(r, "blogID")

	if err := h.blogService.DeleteBlog(r.Context(), userID, blogID); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, map[string]string{"message": "blog deleted"}, http.StatusOK)
}

// List handles GET /api/v1/admin/blogs
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.blogService.ListBlogs(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, map[string]any{"blogs": blogs}, http.StatusOK)
}

// GetOne handles GET /api/v1/admin/blogs/{blogID}
func (h *BlogHandler) GetOne(w http.ResponseWriter, r *http.Request) {
	blog, err := h.blogService.GetBlog(r.Context(), chi.URLParam(r, "blogID"))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, blog, http.StatusOK)
}

// ListUsers handles GET /api/v1/admin/users
func (h *BlogHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.blogService.ListAllUsers(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"count": len(users),
		"data":  users,
	}, http.StatusOK)
}

// ListMemories handles GET /api/v1/admin/memories
func (h *BlogHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := h.blogService.ListAllMemories(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"count":    len(memories),
		"memories": memories,
	}, http.StatusOK)
}

// Statistics handles GET /api/v1/admin/statistics
func (h *BlogHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.blogService.Stats(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}
