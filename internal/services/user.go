package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"family-memory-backend/internal/apperr"
	"family-memory-backend/internal/models"
	"family-memory-backend/internal/oauth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	jwtExpDays = 30
	bcryptCost = 12
)

// UserStore is the identity store consumed by the services
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	ListAll(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int, error)
}

// ImageStore is the external image storage collaborator
type ImageStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (models.Image, error)
	Delete(ctx context.Context, id string) error
}

// UserService handles identity and authentication business logic
type UserService struct {
	users     UserStore
	images    ImageStore
	jwtSecret string
}

// NewUserService creates a new user service
func NewUserService(users UserStore, images ImageStore, jwtSecret string) *UserService {
	return &UserService{
		users:     users,
		images:    images,
		jwtSecret: jwtSecret,
	}
}

// Register creates a new account and returns it with a signed token
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, "", apperr.E(apperr.Conflict, "email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a signed token.
// Unknown email and bad password produce the same error.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, "", apperr.E(apperr.Unauthorized, "invalid credentials")
		}
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperr.E(apperr.Unauthorized, "invalid credentials")
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetProfile returns a user by id
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfileRequest carries optional profile changes. Empty fields are
// left untouched.
type UpdateProfileRequest struct {
	Username         string
	Email            string
	Password         string
	Image            []byte
	ImageContentType string
}

// UpdateProfile applies profile changes. A new profile image replaces the
// stored one; the previous image is removed from the image store.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updated := false

	if req.Username != "" {
		user.Username = req.Username
		updated = true
	}

	if req.Email != "" && !strings.EqualFold(req.Email, user.Email) {
		exists, err := s.users.EmailExists(ctx, req.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if exists {
			return nil, apperr.E(apperr.Conflict, "email already in use")
		}
		user.Email = strings.ToLower(req.Email)
		updated = true
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
		updated = true
	}

	var uploaded models.Image
	oldImageID := ""
	if len(req.Image) > 0 {
		uploaded, err = s.images.Upload(ctx, req.Image, req.ImageContentType)
		if err != nil {
			return nil, fmt.Errorf("failed to upload profile image: %w", err)
		}
		oldImageID = user.ProfileImageID
		user.ProfileImageID = uploaded.ID
		user.ProfileImageURL = uploaded.URL
		updated = true
	}

	if !updated {
		return nil, apperr.E(apperr.Validation, "no fields provided to update")
	}

	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		// Don't leave the fresh upload orphaned.
		if uploaded.ID != "" {
			_ = s.images.Delete(ctx, uploaded.ID)
		}
		return nil, err
	}

	if oldImageID != "" {
		_ = s.images.Delete(ctx, oldImageID)
	}
	return user, nil
}

// FindOrCreateFederated maps a provider identity to a user record,
// creating one on first login.
func (s *UserService) FindOrCreateFederated(ctx context.Context, ident oauth.Identity) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, ident.Email)
	if err == nil {
		return user, nil
	}
	if apperr.KindOf(err) != apperr.NotFound {
		return nil, fmt.Errorf("failed to look up federated user: %w", err)
	}

	// First federated login: the account gets an unusable random password,
	// credentials can be set later through the profile.
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.New().String()), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	username := strings.ToLower(strings.ReplaceAll(ident.Name, " ", ""))
	if username == "" {
		username = "user"
	}
	username = fmt.Sprintf("%s%d", username, rand.Intn(1000))

	now := time.Now()
	user = &models.User{
		ID:              uuid.New().String(),
		Username:        username,
		Email:           strings.ToLower(ident.Email),
		PasswordHash:    string(hash),
		ProfileImageURL: ident.PhotoURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create federated user: %w", err)
	}
	return user, nil
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return "", errors.New("user_id not found in token")
	}

	return userID, nil
}
