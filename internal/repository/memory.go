package repository

import (
	"context"
	"fmt"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryRepository handles database operations for memories and their
// nested image, reaction and comment collections. The (memory_id, user_id)
// primary key on reactions enforces one reaction per user on every write
// path, not just the toggle endpoint.
type MemoryRepository struct {
	db *pgxpool.Pool
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(db *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// Create inserts a memory and its images in one transaction
func (r *MemoryRepository) Create(ctx context.Context, memory *models.Memory) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO memories (id, user_id, title, life_stage, description, date, is_private, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, query,
		memory.ID, memory.UserID, memory.Title, memory.LifeStage,
		memory.Description, memory.Date, memory.IsPrivate,
		memory.CreatedAt, memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create memory: %w", err)
	}

	for i, img := range memory.Images {
		_, err = tx.Exec(ctx,
			`INSERT INTO memory_images (memory_id, image_id, url, position) VALUES ($1, $2, $3, $4)`,
			memory.ID, img.ID, img.URL, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert memory image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit memory: %w", err)
	}
	return nil
}

const memoryColumns = `id, user_id, title, life_stage, description, date, is_private, created_at, updated_at`

func scanMemory(row pgx.Row) (*models.Memory, error) {
	var m models.Memory
	err := row.Scan(
		&m.ID, &m.UserID, &m.Title, &m.LifeStage, &m.Description,
		&m.Date, &m.IsPrivate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID retrieves a memory with all nested collections
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE id = $1`
	memory, err := scanMemory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.E(apperr.NotFound, "memory not found")
		}
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}

	memory.Images, err = r.listImages(ctx, id)
	if err != nil {
		return nil, err
	}
	memory.Reactions, err = r.ListReactions(ctx, id)
	if err != nil {
		return nil, err
	}
	memory.Comments, err = r.listComments(ctx, id)
	if err != nil {
		return nil, err
	}
	return memory, nil
}

func (r *MemoryRepository) listImages(ctx context.Context, memoryID string) ([]models.Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT image_id, url FROM memory_images WHERE memory_id = $1 ORDER BY position`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.URL); err != nil {
			return nil, fmt.Errorf("failed to scan memory image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *MemoryRepository) listComments(ctx context.Context, memoryID string) ([]models.Comment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, text, created_at FROM comments WHERE memory_id = $1 ORDER BY created_at`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *MemoryRepository) queryWithAuthor(ctx context.Context, query string, args ...any) ([]*models.MemoryWithAuthor, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var memories []*models.MemoryWithAuthor
	for rows.Next() {
		var m models.MemoryWithAuthor
		err := rows.Scan(
			&m.ID, &m.UserID, &m.Title, &m.LifeStage, &m.Description,
			&m.Date, &m.IsPrivate, &m.CreatedAt, &m.UpdatedAt,
			&m.AuthorName, &m.AuthorImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memories: %w", err)
	}

	for _, m := range memories {
		if m.Images, err = r.listImages(ctx, m.ID); err != nil {
			return nil, err
		}
	}
	return memories, nil
}

const memoryAuthorColumns = `
	m.id, m.user_id, m.title, m.life_stage, m.description, m.date,
	m.is_private, m.created_at, m.updated_at, u.username, u.profile_image_url`

// ListByOwner retrieves all memories of one user, newest first
func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.MemoryWithAuthor, error) {
	query := `
		SELECT ` + memoryAuthorColumns + `
		FROM memories m
		JOIN users u ON u.id = m.user_id
		WHERE m.user_id = $1
		ORDER BY m.created_at DESC
	`
	return r.queryWithAuthor(ctx, query, ownerID)
}

// ListTimeline retrieves the requester's own memories plus the public
// memories of the given circle members, newest first. The requester id is
// excluded from memberIDs by the caller; the query dedupes regardless.
func (r *MemoryRepository) ListTimeline(ctx context.Context, requesterID string, memberIDs []string) ([]*models.MemoryWithAuthor, error) {
	query := `
		SELECT DISTINCT ` + memoryAuthorColumns + `
		FROM memories m
		JOIN users u ON u.id = m.user_id
		WHERE m.user_id = $1
		   OR (m.user_id = ANY($2) AND m.is_private = false)
		ORDER BY m.created_at DESC
	`
	return r.queryWithAuthor(ctx, query, requesterID, memberIDs)
}

// ListAll retrieves every memory with its author, newest first
func (r *MemoryRepository) ListAll(ctx context.Context) ([]*models.MemoryWithAuthor, error) {
	query := `
		SELECT ` + memoryAuthorColumns + `
		FROM memories m
		JOIN users u ON u.id = m.user_id
		ORDER BY m.created_at DESC
	`
	return r.queryWithAuthor(ctx, query)
}

// Update persists mutated memory fields
func (r *MemoryRepository) Update(ctx context.Context, memory *models.Memory) error {
	query := `
		UPDATE memories
		SET title = $1, life_stage = $2, description = $3, date = $4,
		    is_private = $5, updated_at = $6
		WHERE id = $7
	`
	result, err := r.db.Exec(ctx, query,
		memory.Title, memory.LifeStage, memory.Description, memory.Date,
		memory.IsPrivate, memory.UpdatedAt, memory.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.E(apperr.NotFound, "memory not found")
	}
	return nil
}

// Delete removes a memory; images, reactions and comments cascade
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.E(apperr.NotFound, "memory not found")
	}
	return nil
}

// AddImages appends images to a memory
func (r *MemoryRepository) AddImages(ctx context.Context, memoryID string, images []models.Image) error {
	var position int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(position)+1, 0) FROM memory_images WHERE memory_id = $1`, memoryID).Scan(&position)
	if err != nil {
		return fmt.Errorf("failed to get image position: %w", err)
	}
	for i, img := range images {
		_, err := r.db.Exec(ctx,
			`INSERT INTO memory_images (memory_id, image_id, url, position) VALUES ($1, $2, $3, $4)`,
			memoryID, img.ID, img.URL, position+i,
		)
		if err != nil {
			return fmt.Errorf("failed to add memory image: %w", err)
		}
	}
	return nil
}

// RemoveImage removes one image reference from a memory
func (r *MemoryRepository) RemoveImage(ctx context.Context, memoryID, imageID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM memory_images WHERE memory_id = $1 AND image_id = $2`, memoryID, imageID)
	if err != nil {
		return fmt.Errorf("failed to remove memory image: %w", err)
	}
	return nil
}

// AddComment appends a comment to a memory
func (r *MemoryRepository) AddComment(ctx context.Context, memoryID string, comment models.Comment) error {
	query := `INSERT INTO comments (id, memory_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, query, comment.ID, memoryID, comment.UserID, comment.Text, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

// GetReaction returns the user's reaction on a memory, if any
func (r *MemoryRepository) GetReaction(ctx context.Context, memoryID, userID string) (models.ReactionType, bool, error) {
	var typ models.ReactionType
	err := r.db.QueryRow(ctx,
		`SELECT type FROM reactions WHERE memory_id = $1 AND user_id = $2`, memoryID, userID).Scan(&typ)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get reaction: %w", err)
	}
	return typ, true, nil
}

// SetReaction upserts the user's reaction on a memory
func (r *MemoryRepository) SetReaction(ctx context.Context, memoryID, userID string, typ models.ReactionType) error {
	query := `
		INSERT INTO reactions (memory_id, user_id, type)
		VALUES ($1, $2, $3)
		ON CONFLICT (memory_id, user_id) DO UPDATE SET type = EXCLUDED.type
	`
	_, err := r.db.Exec(ctx, query, memoryID, userID, typ)
	if err != nil {
		return fmt.Errorf("failed to set reaction: %w", err)
	}
	return nil
}

// RemoveReaction clears the user's reaction on a memory
func (r *MemoryRepository) RemoveReaction(ctx context.Context, memoryID, userID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM reactions WHERE memory_id = $1 AND user_id = $2`, memoryID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", err)
	}
	return nil
}

// ListReactions returns all reactions on a memory
func (r *MemoryRepository) ListReactions(ctx context.Context, memoryID string) ([]models.Reaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id, type FROM reactions WHERE memory_id = $1`, memoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reactions: %w", err)
	}
	defer rows.Close()

	reactions := []models.Reaction{}
	for rows.Next() {
		var re models.Reaction
		if err := rows.Scan(&re.UserID, &re.Type); err != nil {
			return nil, fmt.Errorf("failed to scan reaction: %w", err)
		}
		reactions = append(reactions, re)
	}
	return reactions, rows.Err()
}

// Count returns total and private memory counts
func (r *MemoryRepository) Count(ctx context.Context) (total, private int, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_private) FROM memories`).Scan(&total, &private)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return total, private, nil
}
