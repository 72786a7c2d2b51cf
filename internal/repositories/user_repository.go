package repositories

import (
	"context"
	"time"

	"rag-assistant/internal/models"
)

// UserRepository defines the interface for user account and auth session
// storage. Sessions expire 24 hours after creation (absolute, not sliding).
type UserRepository interface {
	// Accounts
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, username string) (*models.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
	EmailInUse(ctx context.Context, email string) (bool, error)

	// Per-user document manifest
	AddUserDocument(ctx context.Context, username, document string) error
	ListUserDocuments(ctx context.Context, username string) ([]string, error)

	// Auth sessions
	CreateSession(ctx context.Context, session *models.AuthSession, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*models.AuthSession, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Health
	Ping(ctx context.Context) error
}

// SequenceStore hands out per-session monotonic sequence numbers. The
// counter is store-side and atomic, so concurrent writers to one session
// can never produce duplicate or skipped numbers.
type SequenceStore interface {
	NextSequence(ctx context.Context, sessionID string) (int, error)
}

// UserRepositoryError represents errors from the user repository.
type UserRepositoryError struct {
	Operation string
	Username  string
	Err       error
	Message   string
}

func (e *UserRepositoryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Operation + ": " + e.Err.Error()
	}
	return e.Operation + ": unknown error"
}

func (e *UserRepositoryError) Unwrap() error {
	return e.Err
}

// NewUserRepositoryError creates a new user repository error.
func NewUserRepositoryError(operation, username string, err error, message string) *UserRepositoryError {
	return &UserRepositoryError{
		Operation: operation,
		Username:  username,
		Err:       err,
		Message:   message,
	}
}

// UserNotFoundError reports a missing account.
func UserNotFoundError(username string) error {
	return NewUserRepositoryError("get_user", username, nil, "user not found: "+username)
}

// UserAlreadyExistsError reports a duplicate account.
func UserAlreadyExistsError(username string) error {
	return NewUserRepositoryError("create_user", username, nil, "username already exists: "+username)
}

// SessionNotFoundError reports a missing or expired session.
func SessionNotFoundError(sessionID string) error {
	return NewUserRepositoryError("get_session", "", nil, "session not found: "+sessionID)
}
