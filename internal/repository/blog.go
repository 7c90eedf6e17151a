package repository

import (
	"context"
	"fmt"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BlogRepository handles database operations for blogs
type BlogRepository struct {
	db *pgxpool.Pool
}

// NewBlogRepository creates a new blog repository
func NewBlogRepository(db *pgxpool.Pool) *BlogRepository {
	return &BlogRepository{db: db}
}

// Create inserts a blog and its images in one transaction
func (r *BlogRepository) Create(ctx context.Context, blog *models.Blog) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO blogs (id, user_id, title, description, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, query,
		blog.ID, blog.UserID, blog.Title, blog.Description, blog.Tags,
		blog.CreatedAt, blog.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create blog: %w", err)
	}

	for i, img := range blog.Images {
		_, err = tx.Exec(ctx,
			`INSERT INTO blog_images (blog_id, image_id, url, position) VALUES ($1, $2, $3, $4)`,
			blog.ID, img.ID, img.URL, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert blog image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit blog: %w", err)
	}
	return nil
}

func (r *BlogRepository) listImages(ctx context.Context, blogID string) ([]models.Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT image_id, url FROM blog_images WHERE blog_id = $1 ORDER BY position`, blogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blog images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.URL); err != nil {
			return nil, fmt.Errorf("failed to scan blog image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// GetByID retrieves a blog by ID
func (r *BlogRepository) GetByID(ctx context.Context, id string) (*models.Blog, error) {
	query := `SELECT id, user_id, title, description, tags, created_at, updated_at FROM blogs WHERE id = $1`
	var blog models.Blog
	err := r.db.QueryRow(ctx, query, id).Scan(
		&blog.ID, &blog.UserID, &blog.Title, &blog.Description, &blog.Tags,
		&blog.CreatedAt, &blog.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperr.E(apperr.NotFound, "blog not found")
		}
		return nil, fmt.Errorf("failed to get blog: %w", err)
	}

	blog.Images, err = r.listImages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &blog, nil
}

// ListAll retrieves every blog, newest first
func (r *BlogRepository) ListAll(ctx context.Context) ([]*models.Blog, error) {
	query := `SELECT id, user_id, title, description, tags, created_at, updated_at FROM blogs ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list blogs: %w", err)
	}
	defer rows.Close()

	var blogs []*models.Blog
	for rows.Next() {
		var blog models.Blog
		err := rows.Scan(
			&blog.ID, &blog.UserID, &blog.Title, &blog.Description, &blog.Tags,
			&blog.CreatedAt, &blog.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blog: %w", err)
		}
		blogs = append(blogs, &blog)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blogs: %w", err)
	}

	for _, blog := range blogs {
		if blog.Images, err = r.listImages(ctx, blog.ID); err != nil {
			return nil, err
		}
	}
	return blogs, nil
}

// Update persists mutated blog fields and replaces its images
func (r *BlogRepository) Update(ctx context.Context, blog *models.Blog) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE blogs SET title = $1, description = $2, tags = $3, updated_at = $4 WHERE id = $5`
	result, err := tx.Exec(ctx, query, blog.Title, blog.Description, blog.Tags, blog.UpdatedAt, blog.ID)
	if err != nil {
		return fmt.Errorf("failed to update blog: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.E(apperr.NotFound, "blog not found")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM blog_images WHERE blog_id = $1`, blog.ID); err != nil {
		return fmt.Errorf("failed to clear blog images: %w", err)
	}
	for i, img := range blog.Images {
		_, err = tx.Exec(ctx,
			`INSERT INTO blog_images (blog_id, image_id, url, position) VALUES ($1, $2, $3, $4)`,
			blog.ID, img.ID, img.URL, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert blog image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit blog update: %w", err)
	}
	return nil
}

// Delete removes a blog; images cascade
func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete blog: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.E(apperr.NotFound, "blog not found")
	}
	return nil
}

// Count returns the number of blogs
func (r *BlogRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM blogs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count blogs: %w", err)
	}
	return count, nil
}
