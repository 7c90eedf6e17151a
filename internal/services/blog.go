package services

import (
	"context"
	"fmt"
	"time"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BlogStore persists blogs
type BlogStore interface {
	Create(ctx context.Context, blog *models.Blog) error
	GetByID(ctx context.Context, id string) (*models.Blog, error)
	ListAll(ctx context.Context) ([]*models.Blog, error)
	Update(ctx context.Context, blog *models.Blog) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// BlogService handles blog CRUD and the admin aggregate views
type BlogService struct {
	blogs    BlogStore
	users    UserStore
	memories MemoryStore
	images   ImageStore
}

// NewBlogService creates a new blog service
func NewBlogService(blogs BlogStore, users UserStore, memories MemoryStore, images ImageStore) *BlogService {
	return &BlogService{
		blogs:    blogs,
		users:    users,
		memories: memories,
		images:   images,
	}
}

// CreateBlogRequest carries a new blog
type CreateBlogRequest struct {
	Title       string
	Description string
	Tags        []string
	Images      []ImageUpload
}

// CreateBlog uploads the images and inserts the blog
func (s *BlogService) CreateBlog(ctx context.Context, userID string, req CreateBlogRequest) (*models.Blog, error) {
	if len(req.Images) == 0 {
		return nil, apperr.E(apperr.Validation, "images are required")
	}
	if len(req.Images) > maxMemoryImages {
		return nil, apperr.E(apperr.Validation, "max 10 images allowed")
	}

	images := make([]models.Image, 0, len(req.Images))
	for _, up := range req.Images {
		img, err := s.images.Upload(ctx, up.Data, up.ContentType)
		if err != nil {
			s.cleanup(ctx, images)
			return nil, fmt.Errorf("failed to upload blog image: %w", err)
		}
		images = append(images, img)
	}

	if req.Tags == nil {
		req.Tags = []string{}
	}

	now := time.Now()
	blog := &models.Blog{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Images:      images,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.blogs.Create(ctx, blog); err != nil {
		s.cleanup(ctx, images)
		return nil, fmt.Errorf("failed to create blog: %w", err)
	}
	return blog, nil
}

func (s *BlogService) cleanup(ctx context.Context, images []models.Image) {
	for _, img := range images {
		if err := s.images.Delete(ctx, img.ID); err != nil {
			log.Error().Err(err).Str("image_id", img.ID).Msg("Failed to clean up uploaded blog image")
		}
	}
}

// UpdateBlogRequest carries optional blog changes
type UpdateBlogRequest struct {
	Title       string
	Description string
	Tags        []string
	Images      []ImageUpload // replaces all existing images when present
}

// UpdateBlog applies changes to the requester's own blog. New images
// replace the stored set entirely.
func (s *BlogService) UpdateBlog(ctx context.Context, requesterID, blogID string, req UpdateBlogRequest) (*models.Blog, error) {
	blog, err := s.blogs.GetByID(ctx, blogID)
	if err != nil {
		return nil, err
	}
	if blog.UserID != requesterID {
		return nil, apperr.E(apperr.Forbidden, "not allowed to update this blog")
	}

	updated := false
	if req.Title != "" {
		blog.Title = req.Title
		updated = true
	}
	if req.Description != "" {
		blog.Description = req.Description
		updated = true
	}
	if req.Tags != nil {
		blog.Tags = req.Tags
		updated = true
	}

	var old []models.Image
	if len(req.Images) > 0 {
		if len(req.Images) > maxMemoryImages {
			return nil, apperr.E(apperr.Validation, "max 10 images allowed")
		}
		images := make([]models.Image, 0, len(req.Images))
		for _, up := range req.Images {
			img, err := s.images.Upload(ctx, up.Data, up.ContentType)
			if err != nil {
				s.cleanup(ctx, images)
				return nil, fmt.Errorf("failed to upload blog image: %w", err)
			}
			images = append(images, img)
		}
		old = blog.Images
		blog.Images = images
		updated = true
	}

	if !updated {
		return nil, apperr.E(apperr.Validation, "no fields provided to update")
	}

	blog.UpdatedAt = time.Now()
	if err := s.blogs.Update(ctx, blog); err != nil {
		if len(req.Images) > 0 {
			s.cleanup(ctx, blog.Images)
		}
		return nil, err
	}

	// Old images are unreferenced now.
	s.cleanup(ctx, old)
	return blog, nil
}

// DeleteBlog removes the requester's own blog and its stored images
func (s *BlogService) DeleteBlog(ctx context.Context, requesterID, blogID string) error {
	blog, err := s.blogs.GetByID(ctx, blogID)
	if err != nil {
		return err
	}
	if blog.UserID != requesterID {
		return apperr.E(apperr.Forbidden, "not allowed to delete this blog")
	}

	for _, img := range blog.Images {
		if err := s.images.Delete(ctx, img.ID); err != nil {
			return fmt.Errorf("failed to delete blog image: %w", err)
		}
	}
	return s.blogs.Delete(ctx, blogID)
}

// ListBlogs returns every blog, newest first
func (s *BlogService) ListBlogs(ctx context.Context) ([]*models.Blog, error) {
	return s.blogs.ListAll(ctx)
}

// GetBlog returns a single blog
func (s *BlogService) GetBlog(ctx context.Context, id string) (*models.Blog, error) {
	return s.blogs.GetByID(ctx, id)
}

// ListAllUsers returns every user for the admin surface
func (s *BlogService) ListAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.ListAll(ctx)
}

// ListAllMemories returns every memory with its author for the admin surface
func (s *BlogService) ListAllMemories(ctx context.Context) ([]*models.MemoryWithAuthor, error) {
	return s.memories.ListAll(ctx)
}

// Stats is the admin aggregate view
type Stats struct {
	Users           int `json:"users"`
	Memories        int `json:"memories"`
	PrivateMemories int `json:"private_memories"`
	PublicMemories  int `json:"public_memories"`
	Blogs           int `json:"blogs"`
}

// Stats returns aggregate counts across the system
func (s *BlogService) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	total, private, err := s.memories.Count(ctx)
	if err != nil {
		return nil, err
	}
	blogs, err := s.blogs.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Users:           users,
		Memories:        total,
		PrivateMemories: private,
		PublicMemories:  total - private,
		Blogs:           blogs,
	}, nil
}
