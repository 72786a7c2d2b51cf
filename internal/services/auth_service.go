package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rag-assistant/internal/models"
	"rag-assistant/internal/repositories"
)

// SessionTTL is the absolute lifetime of an auth session, counted from
// creation and never refreshed by activity.
const SessionTTL = 24 * time.Hour

// ErrInvalidCredentials is returned on a failed login attempt. The same
// error covers unknown usernames and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService handles account registration and session lifecycle.
type AuthService struct {
	users  repositories.UserRepository
	logger *log.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(users repositories.UserRepository, logger *log.Logger) *AuthService {
	return &AuthService{
		users:  users,
		logger: logger,
	}
}

// Register creates a new account with a bcrypt password hash. Usernames and
// emails must be unique.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.users.UserExists(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, repositories.UserAlreadyExistsError(req.Username)
	}

	if req.Email != "" {
		inUse, err := s.users.EmailInUse(ctx, req.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if inUse {
			return nil, &models.ValidationError{Field: "email", Message: "email already registered"}
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        req.Email,
		CreatedAt:    time.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Printf("Registered user %s", user.Username)
	return user, nil
}

// Login validates credentials and issues a session token with an absolute
// 24 hour expiry.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		var repoErr *repositories.UserRepositoryError
		if errors.As(err, &repoErr) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session := &models.AuthSession{
		SessionID: uuid.New().String(),
		Username:  user.Username,
		Expires:   time.Now().Add(SessionTTL),
	}
	if err := s.users.CreateSession(ctx, session, SessionTTL); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Printf("User %s logged in", user.Username)
	return &models.LoginResponse{
		SessionID: session.SessionID,
		Username:  session.Username,
		Expires:   session.Expires,
	}, nil
}

// Logout deletes the session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.users.DeleteSession(ctx, sessionID)
}

// ValidateSession resolves a session token to its live session. Expired
// sessions surface as not found.
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	return s.users.GetSession(ctx, sessionID)
}

// AddDocument records a document name or URL in the user's manifest.
func (s *AuthService) AddDocument(ctx context.Context, username, document string) error {
	return s.users.AddUserDocument(ctx, username, document)
}

// ListDocuments returns the user's document manifest in upload order.
func (s *AuthService) ListDocuments(ctx context.Context, username string) ([]string, error) {
	return s.users.ListUserDocuments(ctx, username)
}

// UserCollection is the per-user document collection name used when user
// namespacing is enabled.
func UserCollection(username string) string {
	return username + "_documents"
}

// UserSessionID is the per-user conversation session identifier used when
// user namespacing is enabled.
func UserSessionID(username string) string {
	return username + "_user_session"
}
