package repository

import (
	"context"
	"fmt"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CircleRepository handles database operations for family-circle relations.
// The (owner_id, member_id) primary key makes duplicate relations
// impossible at the store level, so concurrent invites to the same owner
// cannot clobber or double-append each other's entries.
type CircleRepository struct {
	db *pgxpool.Pool
}

// NewCircleRepository creates a new circle repository
func NewCircleRepository(db *pgxpool.Pool) *CircleRepository {
	return &CircleRepository{db: db}
}

// Ensure creates the relation if it does not exist yet. An existing
// relation is left untouched, whatever role it carries.
func (r *CircleRepository) Ensure(ctx context.Context, rel models.CircleRelation) error {
	query := `
		INSERT INTO circle_relations (owner_id, member_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, member_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, rel.OwnerID, rel.MemberID, rel.Role, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to ensure circle relation: %w", err)
	}
	return nil
}

// UpdateRole overwrites the role of an existing relation
func (r *CircleRepository) UpdateRole(ctx context.Context, ownerID, memberID string, role models.Role) error {
	query := `UPDATE circle_relations SET role = $1 WHERE owner_id = $2 AND member_id = $3`
	result, err := r.db.Exec(ctx, query, role, ownerID, memberID)
	if err != nil {
		return fmt.Errorf("failed to update circle role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.E(apperr.NotFound, "family member not found")
	}
	return nil
}

// Get returns the role the owner granted the member, if any
func (r *CircleRepository) Get(ctx context.Context, ownerID, memberID string) (models.Role, bool, error) {
	query := `SELECT role FROM circle_relations WHERE owner_id = $1 AND member_id = $2`
	var role models.Role
	err := r.db.QueryRow(ctx, query, ownerID, memberID).Scan(&role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get circle relation: %w", err)
	}
	return role, true, nil
}

// ListByOwner returns the owner's relations resolved to member identities
func (r *CircleRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.CircleMember, error) {
	query := `
		SELECT cr.member_id, u.username, u.profile_image_url, cr.role
		FROM circle_relations cr
		JOIN users u ON u.id = cr.member_id
		WHERE cr.owner_id = $1
		ORDER BY cr.created_at
	`
	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list circle: %w", err)
	}
	defer rows.Close()

	var members []models.CircleMember
	for rows.Next() {
		var m models.CircleMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.ProfileImageURL, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan circle member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating circle members: %w", err)
	}
	return members, nil
}
