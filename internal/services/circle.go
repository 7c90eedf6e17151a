package services

import (
	"context"
	"fmt"
	"time"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// CircleStore persists family-circle relations. Ensure must be idempotent
// and atomic per relation so concurrent invites to one owner cannot lose
// entries.
type CircleStore interface {
	Ensure(ctx context.Context, rel models.CircleRelation) error
	UpdateRole(ctx context.Context, ownerID, memberID string, role models.Role) error
	Get(ctx context.Context, ownerID, memberID string) (models.Role, bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.CircleMember, error)
}

// EmailSender is the outbound mail collaborator
type EmailSender interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

// CircleService manages the directional relation between a circle owner
// and its members, and the invite paths that create it.
type CircleService struct {
	users       UserStore
	circle      CircleStore
	mail        EmailSender
	userSvc     *UserService
	frontendURL string
}

// NewCircleService creates a new circle service
func NewCircleService(users UserStore, circle CircleStore, mail EmailSender, userSvc *UserService, frontendURL string) *CircleService {
	return &CircleService{
		users:       users,
		circle:      circle,
		mail:        mail,
		userSvc:     userSvc,
		frontendURL: frontendURL,
	}
}

// EstablishRelation idempotently ensures both directional records between
// owner and member exist. The member's side always defaults to Viewer: an
// invitee never receives elevated rights on the inviter's content just by
// accepting. The owner's side gets requestedRole (Viewer when empty).
// Existing records on either side are left untouched.
func (s *CircleService) EstablishRelation(ctx context.Context, ownerID, memberID string, requestedRole models.Role) error {
	if ownerID == memberID {
		return apperr.E(apperr.Validation, "cannot add yourself to your own circle")
	}

	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return apperr.E(apperr.NotFound, "inviter user not found")
		}
		return err
	}
	if _, err := s.users.GetByID(ctx, memberID); err != nil {
		return err
	}

	if requestedRole == "" {
		requestedRole = models.RoleViewer
	}

	now := time.Now()

	err := s.circle.Ensure(ctx, models.CircleRelation{
		OwnerID:   memberID,
		MemberID:  ownerID,
		Role:      models.RoleViewer,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to link member side: %w", err)
	}

	err = s.circle.Ensure(ctx, models.CircleRelation{
		OwnerID:   ownerID,
		MemberID:  memberID,
		Role:      requestedRole,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to link owner side: %w", err)
	}

	log.Debug().
		Str("owner_id", ownerID).
		Str("member_id", memberID).
		Str("role", string(requestedRole)).
		Msg("Circle relation established")
	return nil
}

// UpdateRole overwrites the role the owner granted an existing member.
// Only the owner of the relation may call this.
func (s *CircleService) UpdateRole(ctx context.Context, ownerID, memberID string, role models.Role) error {
	return s.circle.UpdateRole(ctx, ownerID, memberID, role)
}

// GetRelation returns the role the owner granted the member, if any.
// An unknown owner is NotFound, not an empty relation.
func (s *CircleService) GetRelation(ctx context.Context, ownerID, memberID string) (models.Role, bool, error) {
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return "", false, err
	}
	return s.circle.Get(ctx, ownerID, memberID)
}

// ListCircle returns the owner's circle resolved to member identities.
// An unknown owner is NotFound, not an empty circle.
func (s *CircleService) ListCircle(ctx context.Context, ownerID string) ([]models.CircleMember, error) {
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.circle.ListByOwner(ctx, ownerID)
}

// SendInvite mails an invitation link for the owner's circle. Nothing
// about the relation changes until the invitee follows the link. The link
// targets registration or login depending on whether the address already
// has an account.
func (s *CircleService) SendInvite(ctx context.Context, ownerID, email string, role models.Role) error {
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return err
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check invitee email: %w", err)
	}

	action := "register"
	label := "Register & Join"
	if exists {
		action = "login"
		label = "Login & Join"
	}
	link := fmt.Sprintf("%s/%s/%s/%s", s.frontendURL, action, role, ownerID)

	body := fmt.Sprintf(`<div style="font-family: Arial, sans-serif;">
  <h2>Hello</h2>
  <p>%s invited you to join their <strong>Family Circle</strong> as <strong>%s</strong>.</p>
  <p>Click below to continue:</p>
  <a href="%s" style="display:inline-block;padding:12px 20px;background-color:#4285F4;color:white;text-decoration:none;border-radius:6px;font-weight:bold;">%s</a>
  <p style="margin-top:20px;font-size:12px;color:gray;">If you didn't expect this invitation, ignore this email.</p>
</div>`, owner.Username, role, link, label)

	if err := s.mail.Send(ctx, email, "You're invited to join my Family Circle", body); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to send invitation email", err)
	}

	log.Info().
		Str("owner_id", ownerID).
		Str("role", string(role)).
		Msg("Circle invitation sent")
	return nil
}

// RegisterInvitee creates the invitee's account and links both sides of
// the relation, with the requested role flowing to the inviter's side.
func (s *CircleService) RegisterInvitee(ctx context.Context, ownerID string, role models.Role, username, email, password string) (*models.User, string, error) {
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, "", apperr.E(apperr.NotFound, "inviter user not found")
		}
		return nil, "", err
	}

	user, token, err := s.userSvc.Register(ctx, username, email, password)
	if err != nil {
		return nil, "", err
	}

	if err := s.EstablishRelation(ctx, ownerID, user.ID, role); err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// LoginInvitee authenticates an existing invitee and links both sides of
// the relation. Re-following an invite link is a no-op on existing records.
func (s *CircleService) LoginInvitee(ctx context.Context, ownerID string, role models.Role, email, password string) (*models.User, string, error) {
	if _, err := s.users.GetByID(ctx, ownerID); err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, "", apperr.E(apperr.NotFound, "inviter user not found")
		}
		return nil, "", err
	}

	user, token, err := s.userSvc.Login(ctx, email, password)
	if err != nil {
		return nil, "", err
	}

	if err := s.EstablishRelation(ctx, ownerID, user.ID, role); err != nil {
		return nil, "", err
	}
	return user, token, nil
}
