// Package policy is the single decision point for resource access. Every
// gated operation asks Decide instead of re-deriving permission logic
// inline. The function is pure: the caller supplies the relation the
// resource owner granted the requester, and no store is consulted here.
package policy

import "family-memory-backend/internal/models"

// Action is an operation attempted on a resource.
type Action string

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	ActionEdit    Action = "edit"
)

// Resource describes the content item being accessed.
type Resource struct {
	OwnerID   string
	IsPrivate bool
}

// Relation is the role the resource owner granted the requester.
// Exists is false when no circle relation is present.
type Relation struct {
	Role   models.Role
	Exists bool
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Stable denial reasons surfaced to clients.
const (
	ReasonPrivate      = "memory is private"
	ReasonCannotMutate = "not allowed to comment"
	ReasonCannotEdit   = "not allowed to edit"
	ReasonNotAllowed   = "not allowed"
)

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Decide evaluates whether the requester may perform action on the resource.
// The owner holds full rights. Reads only see public resources; private
// content stays owner-only regardless of circle role (circle members see
// each other's public content through the timeline union, one level up).
// Commenting needs Commenter or Contributor; editing needs Contributor.
func Decide(requesterID string, res Resource, rel Relation, action Action) Decision {
	if requesterID == res.OwnerID {
		return allow()
	}

	switch action {
	case ActionRead:
		if res.IsPrivate {
			return deny(ReasonPrivate)
		}
		return allow()
	case ActionComment:
		if rel.Exists && rel.Role.CanComment() {
			return allow()
		}
		return deny(ReasonCannotMutate)
	case ActionEdit:
		if rel.Exists && rel.Role.CanEdit() {
			return allow()
		}
		return deny(ReasonCannotEdit)
	}

	return deny(ReasonNotAllowed)
}
