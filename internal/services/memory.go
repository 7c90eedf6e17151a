package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"
	"family-memory-backend/internal/policy"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxMemoryImages  = 10
	maxCommentLength = 500
)

// MemoryStore persists memories and their nested collections
type MemoryStore interface {
	Create(ctx context.Context, memory *models.Memory) error
	GetByID(ctx context.Context, id string) (*models.Memory, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.MemoryWithAuthor, error)
	ListTimeline(ctx context.Context, requesterID string, memberIDs []string) ([]*models.MemoryWithAuthor, error)
	ListAll(ctx context.Context) ([]*models.MemoryWithAuthor, error)
	Update(ctx context.Context, memory *models.Memory) error
	Delete(ctx context.Context, id string) error
	AddImages(ctx context.Context, memoryID string, images []models.Image) error
	RemoveImage(ctx context.Context, memoryID, imageID string) error
	AddComment(ctx context.Context, memoryID string, comment models.Comment) error
	GetReaction(ctx context.Context, memoryID, userID string) (models.ReactionType, bool, error)
	SetReaction(ctx context.Context, memoryID, userID string, typ models.ReactionType) error
	RemoveReaction(ctx context.Context, memoryID, userID string) error
	ListReactions(ctx context.Context, memoryID string) ([]models.Reaction, error)
	Count(ctx context.Context) (total, private int, err error)
}

// MemoryService handles memory business logic, gated by the access policy
type MemoryService struct {
	memories MemoryStore
	circle   CircleStore
	images   ImageStore
}

// NewMemoryService creates a new memory service
func NewMemoryService(memories MemoryStore, circle CircleStore, images ImageStore) *MemoryService {
	return &MemoryService{
		memories: memories,
		circle:   circle,
		images:   images,
	}
}

// authorize runs the access policy for the requester against a memory.
// The relation fed into the decision is the one the memory owner granted
// the requester.
func (s *MemoryService) authorize(ctx context.Context, requesterID string, memory *models.Memory, action policy.Action) error {
	rel := policy.Relation{}
	if requesterID != memory.UserID {
		role, ok, err := s.circle.Get(ctx, memory.UserID, requesterID)
		if err != nil {
			return err
		}
		rel = policy.Relation{Role: role, Exists: ok}
	}

	decision := policy.Decide(requesterID, policy.Resource{
		OwnerID:   memory.UserID,
		IsPrivate: memory.IsPrivate,
	}, rel, action)

	if !decision.Allowed {
		return apperr.E(apperr.Forbidden, decision.Reason)
	}
	return nil
}

// ImageUpload is one image payload attached to a create or edit request
type ImageUpload struct {
	Data        []byte
	ContentType string
}

// uploadAll pushes every image to the store. If any upload fails, the ones
// already stored are deleted again so nothing is left referenced nowhere.
func (s *MemoryService) uploadAll(ctx context.Context, uploads []ImageUpload) ([]models.Image, error) {
	images := make([]models.Image, 0, len(uploads))
	for _, up := range uploads {
		img, err := s.images.Upload(ctx, up.Data, up.ContentType)
		if err != nil {
			s.deleteAll(ctx, images)
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		images = append(images, img)
	}
	return images, nil
}

func (s *MemoryService) deleteAll(ctx context.Context, images []models.Image) {
	for _, img := range images {
		if err := s.images.Delete(ctx, img.ID); err != nil {
			log.Error().Err(err).Str("image_id", img.ID).Msg("Failed to clean up uploaded image")
		}
	}
}

// CreateMemoryRequest carries a new memory
type CreateMemoryRequest struct {
	Title       string
	LifeStage   models.LifeStage
	Description string
	Date        time.Time
	IsPrivate   bool
	Images      []ImageUpload
}

// CreateMemory uploads the images and inserts the memory. Uploaded images
// are removed again if the insert fails.
func (s *MemoryService) CreateMemory(ctx context.Context, userID string, req CreateMemoryRequest) (*models.Memory, error) {
	if len(req.Images) == 0 {
		return nil, apperr.E(apperr.Validation, "images are required")
	}
	if len(req.Images) > maxMemoryImages {
		return nil, apperr.E(apperr.Validation, "max 10 images allowed")
	}

	images, err := s.uploadAll(ctx, req.Images)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	memory := &models.Memory{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       req.Title,
		LifeStage:   req.LifeStage,
		Description: req.Description,
		Date:        req.Date,
		IsPrivate:   req.IsPrivate,
		Images:      images,
		Reactions:   []models.Reaction{},
		Comments:    []models.Comment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.memories.Create(ctx, memory); err != nil {
		s.deleteAll(ctx, images)
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}

	log.Info().
		Str("memory_id", memory.ID).
		Str("user_id", userID).
		Int("images", len(images)).
		Msg("Memory created")
	return memory, nil
}

// GetMemory returns a single memory after a read check
func (s *MemoryService) GetMemory(ctx context.Context, requesterID, memoryID string) (*models.Memory, error) {
	memory, err := s.memories.GetByID(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requesterID, memory, policy.ActionRead); err != nil {
		return nil, err
	}
	return memory, nil
}

// ListOwn returns all of the user's own memories, newest first
func (s *MemoryService) ListOwn(ctx context.Context, userID string) ([]*models.MemoryWithAuthor, error) {
	return s.memories.ListByOwner(ctx, userID)
}

// FamilyTimeline returns the requester's own memories (any visibility)
// unioned with the public memories of every circle member, newest first.
func (s *MemoryService) FamilyTimeline(ctx context.Context, userID string) ([]*models.MemoryWithAuthor, error) {
	members, err := s.circle.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	memberIDs := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID != userID {
			memberIDs = append(memberIDs, m.UserID)
		}
	}

	return s.memories.ListTimeline(ctx, userID, memberIDs)
}

// UpdateMemoryRequest carries optional memory changes. Empty fields are
// left untouched.
type UpdateMemoryRequest struct {
	Title          string
	LifeStage      models.LifeStage
	Description    string
	Date           *time.Time
	IsPrivate      *bool
	RemoveImageIDs []string
	AddImages      []ImageUpload
}

// UpdateMemory applies changes after an edit check. Removed images are
// deleted from the image store; added images count against the per-memory
// cap and are cleaned up when a later step fails.
func (s *MemoryService) UpdateMemory(ctx context.Context, requesterID, memoryID string, req UpdateMemoryRequest) (*models.Memory, error) {
	memory, err := s.memories.GetByID(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requesterID, memory, policy.ActionEdit); err != nil {
		return nil, err
	}

	if req.Title != "" {
		memory.Title = req.Title
	}
	if req.LifeStage != "" {
		memory.LifeStage = req.LifeStage
	}
	if req.Description != "" {
		memory.Description = req.Description
	}
	if req.Date != nil {
		memory.Date = *req.Date
	}
	if req.IsPrivate != nil {
		memory.IsPrivate = *req.IsPrivate
	}

	// Removal ids must reference this memory's own images. Keys are global,
	// so an unchecked id would let an editor delete assets still referenced
	// by other records.
	owned := make(map[string]bool, len(memory.Images))
	for _, img := range memory.Images {
		owned[img.ID] = true
	}
	for _, imageID := range req.RemoveImageIDs {
		if !owned[imageID] {
			return nil, apperr.E(apperr.Validation, "image does not belong to this memory")
		}
	}

	remaining := len(memory.Images)
	for _, imageID := range req.RemoveImageIDs {
		if err := s.images.Delete(ctx, imageID); err != nil {
			return nil, fmt.Errorf("failed to delete image: %w", err)
		}
		if err := s.memories.RemoveImage(ctx, memoryID, imageID); err != nil {
			return nil, err
		}
		remaining--
	}

	if len(req.AddImages) > 0 {
		if remaining+len(req.AddImages) > maxMemoryImages {
			return nil, apperr.E(apperr.Validation, "max 10 images allowed")
		}
		added, err := s.uploadAll(ctx, req.AddImages)
		if err != nil {
			return nil, err
		}
		if err := s.memories.AddImages(ctx, memoryID, added); err != nil {
			s.deleteAll(ctx, added)
			return nil, err
		}
	}

	memory.UpdatedAt = time.Now()
	if err := s.memories.Update(ctx, memory); err != nil {
		return nil, err
	}

	return s.memories.GetByID(ctx, memoryID)
}

// DeleteMemory removes a memory, its sub-collections and its stored images
func (s *MemoryService) DeleteMemory(ctx context.Context, requesterID, memoryID string) error {
	memory, err := s.memories.GetByID(ctx, memoryID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, requesterID, memory, policy.ActionEdit); err != nil {
		return err
	}

	for _, img := range memory.Images {
		if err := s.images.Delete(ctx, img.ID); err != nil {
			return fmt.Errorf("failed to delete image: %w", err)
		}
	}

	if err := s.memories.Delete(ctx, memoryID); err != nil {
		return err
	}

	log.Info().
		Str("memory_id", memoryID).
		Str("user_id", requesterID).
		Msg("Memory deleted")
	return nil
}

// AddComment appends a comment after a comment check
func (s *MemoryService) AddComment(ctx context.Context, requesterID, memoryID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.E(apperr.Validation, "comment is required")
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return nil, apperr.E(apperr.Validation, "comment exceeds 500 characters")
	}

	memory, err := s.memories.GetByID(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requesterID, memory, policy.ActionComment); err != nil {
		return nil, err
	}

	comment := models.Comment{
		ID:        uuid.New().String(),
		UserID:    requesterID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.memories.AddComment(ctx, memoryID, comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// ReactionSummary is the state of a memory's reactions after a toggle
type ReactionSummary struct {
	Counts       map[models.ReactionType]int `json:"reaction_counts"`
	UserReaction models.ReactionType         `json:"user_reaction,omitempty"`
}

// ToggleReaction flips the requester's reaction: none of this type yet
// adds it, the same type clears it, a different type replaces it. Reacting
// requires the same access level as commenting.
func (s *MemoryService) ToggleReaction(ctx context.Context, requesterID, memoryID string, typ models.ReactionType) (*ReactionSummary, error) {
	memory, err := s.memories.GetByID(ctx, memoryID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, requesterID, memory, policy.ActionComment); err != nil {
		return nil, err
	}

	existing, ok, err := s.memories.GetReaction(ctx, memoryID, requesterID)
	if err != nil {
		return nil, err
	}

	switch {
	case !ok:
		err = s.memories.SetReaction(ctx, memoryID, requesterID, typ)
	case existing == typ:
		err = s.memories.RemoveReaction(ctx, memoryID, requesterID)
	default:
		err = s.memories.SetReaction(ctx, memoryID, requesterID, typ)
	}
	if err != nil {
		return nil, err
	}

	reactions, err := s.memories.ListReactions(ctx, memoryID)
	if err != nil {
		return nil, err
	}

	summary := &ReactionSummary{
		Counts: map[models.ReactionType]int{
			models.ReactionLike:  0,
			models.ReactionHeart: 0,
			models.ReactionSmile: 0,
		},
	}
	for _, re := range reactions {
		summary.Counts[re.Type]++
		if re.UserID == requesterID {
			summary.UserReaction = re.Type
		}
	}
	return summary, nil
}
