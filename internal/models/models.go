package models

import (
	"fmt"
	"time"
)

// Role is the level of access an owner grants a circle member.
type Role string

const (
	RoleViewer      Role = "Viewer"
	RoleCommenter   Role = "Commenter"
	RoleContributor Role = "Contributor"
)

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleViewer, RoleCommenter, RoleContributor:
		return Role(s), nil
	}
	return "", fmt.Errorf("invalid role %q, allowed roles: Viewer, Commenter, Contributor", s)
}

// CanComment reports whether the role allows commenting.
func (r Role) CanComment() bool {
	return r == RoleCommenter || r == RoleContributor
}

// CanEdit reports whether the role allows editing.
func (r Role) CanEdit() bool {
	return r == RoleContributor
}

// ReactionType is one of the closed set of reactions a memory accepts.
type ReactionType string

const (
	ReactionLike  ReactionType = "like"
	ReactionHeart ReactionType = "heart"
	ReactionSmile ReactionType = "smile"
)

// ParseReactionType validates a reaction type string.
func ParseReactionType(s string) (ReactionType, error) {
	switch ReactionType(s) {
	case ReactionLike, ReactionHeart, ReactionSmile:
		return ReactionType(s), nil
	}
	return "", fmt.Errorf("invalid reaction type %q", s)
}

// LifeStage buckets a memory on the owner's timeline.
type LifeStage string

const (
	StageEarlyYears LifeStage = "Early Years"
	StageSchool     LifeStage = "School Years"
	StageCollege    LifeStage = "College"
	StageMarriage   LifeStage = "Marriage & Relationships"
	StageCareer     LifeStage = "Career"
	StageRetirement LifeStage = "Retirement & Reflections"
)

// ParseLifeStage validates a life stage string.
func ParseLifeStage(s string) (LifeStage, error) {
	switch LifeStage(s) {
	case StageEarlyYears, StageSchool, StageCollege, StageMarriage, StageCareer, StageRetirement:
		return LifeStage(s), nil
	}
	return "", fmt.Errorf("invalid life stage %q", s)
}

// User represents a registered user.
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	ProfileImageID  string    `json:"-"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	IsAdmin         bool      `json:"is_admin"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CircleRelation is one directional family-circle entry: it lives on the
// owner's side and names the member together with the role the owner
// granted them. A→B and B→A are independent records.
type CircleRelation struct {
	OwnerID   string    `json:"owner_id"`
	MemberID  string    `json:"member_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CircleMember is a relation resolved against the member's public identity.
type CircleMember struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	Role            Role   `json:"role"`
}

// Image is a stored image reference.
type Image struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Reaction is a single user's reaction to a memory. At most one exists
// per (memory, user) pair.
type Reaction struct {
	UserID string       `json:"user_id"`
	Type   ReactionType `json:"type"`
}

// Comment is an append-only comment on a memory.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Memory is a shared content item owned by exactly one user.
type Memory struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	LifeStage   LifeStage  `json:"life_stage"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	IsPrivate   bool       `json:"is_private"`
	Images      []Image    `json:"images"`
	Reactions   []Reaction `json:"reactions"`
	Comments    []Comment  `json:"comments"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MemoryWithAuthor enriches a memory with its author's public identity.
type MemoryWithAuthor struct {
	Memory
	AuthorName     string `json:"author_name"`
	AuthorImageURL string `json:"author_image_url,omitempty"`
}

// Blog is an admin-surface content item.
type Blog struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Images      []Image   `json:"images"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
