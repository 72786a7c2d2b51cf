package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-assistant/internal/models"
)

const (
	userKeyPrefix     = "user:"
	userEmailPrefix   = "user_email:"
	userDocsPrefix    = "user_docs:"
	authSessionPrefix = "auth_session:"
	chatSeqPrefix     = "chat_seq:"
)

// RedisUserRepository implements UserRepository backed by Redis.
type RedisUserRepository struct {
	client *redis.Client
}

// NewRedisUserRepository creates a new Redis-backed user repository.
func NewRedisUserRepository(client *redis.Client) *RedisUserRepository {
	return &RedisUserRepository{client: client}
}

// CreateUser stores a new account. Fails if the username is taken.
func (r *RedisUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	key := userKeyPrefix + user.Username

	data, err := json.Marshal(user)
	if err != nil {
		return NewUserRepositoryError("create_user", user.Username, err, "failed to marshal user")
	}

	ok, err := r.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return NewUserRepositoryError("create_user", user.Username, err, "")
	}
	if !ok {
		return UserAlreadyExistsError(user.Username)
	}

	if user.Email != "" {
		if err := r.client.Set(ctx, userEmailPrefix+user.Email, user.Username, 0).Err(); err != nil {
			return NewUserRepositoryError("create_user", user.Username, err, "failed to index email")
		}
	}
	return nil
}

// GetUser retrieves an account by username.
func (r *RedisUserRepository) GetUser(ctx context.Context, username string) (*models.User, error) {
	data, err := r.client.Get(ctx, userKeyPrefix+username).Result()
	if errors.Is(err, redis.Nil) {
		return nil, UserNotFoundError(username)
	}
	if err != nil {
		return nil, NewUserRepositoryError("get_user", username, err, "")
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, NewUserRepositoryError("get_user", username, err, "failed to unmarshal user")
	}
	return &user, nil
}

// UserExists checks whether an account exists.
func (r *RedisUserRepository) UserExists(ctx context.Context, username string) (bool, error) {
	n, err := r.client.Exists(ctx, userKeyPrefix+username).Result()
	if err != nil {
		return false, NewUserRepositoryError("user_exists", username, err, "")
	}
	return n > 0, nil
}

// EmailInUse checks whether an email is already registered.
func (r *RedisUserRepository) EmailInUse(ctx context.Context, email string) (bool, error) {
	n, err := r.client.Exists(ctx, userEmailPrefix+email).Result()
	if err != nil {
		return false, NewUserRepositoryError("email_in_use", "", err, "")
	}
	return n > 0, nil
}

// AddUserDocument appends a document name or URL to the user's manifest.
func (r *RedisUserRepository) AddUserDocument(ctx context.Context, username, document string) error {
	exists, err := r.UserExists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return UserNotFoundError(username)
	}
	if err := r.client.RPush(ctx, userDocsPrefix+username, document).Err(); err != nil {
		return NewUserRepositoryError("add_user_document", username, err, "")
	}
	return nil
}

// ListUserDocuments returns the user's document manifest in upload order.
func (r *RedisUserRepository) ListUserDocuments(ctx context.Context, username string) ([]string, error) {
	docs, err := r.client.LRange(ctx, userDocsPrefix+username, 0, -1).Result()
	if err != nil {
		return nil, NewUserRepositoryError("list_user_documents", username, err, "")
	}
	return docs, nil
}

// CreateSession stores an auth session with the given TTL. Expiry is
// absolute from creation; the TTL is never refreshed on access.
func (r *RedisUserRepository) CreateSession(ctx context.Context, session *models.AuthSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return NewUserRepositoryError("create_session", session.Username, err, "failed to marshal session")
	}
	if err := r.client.Set(ctx, authSessionPrefix+session.SessionID, data, ttl).Err(); err != nil {
		return NewUserRepositoryError("create_session", session.Username, err, "")
	}
	return nil
}

// GetSession retrieves a live session. Expired sessions are gone from Redis
// and surface as not found.
func (r *RedisUserRepository) GetSession(ctx context.Context, sessionID string) (*models.AuthSession, error) {
	data, err := r.client.Get(ctx, authSessionPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, SessionNotFoundError(sessionID)
	}
	if err != nil {
		return nil, NewUserRepositoryError("get_session", "", err, "")
	}

	var session models.AuthSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, NewUserRepositoryError("get_session", "", err, "failed to unmarshal session")
	}
	return &session, nil
}

// DeleteSession removes a session (logout).
func (r *RedisUserRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, authSessionPrefix+sessionID).Err(); err != nil {
		return NewUserRepositoryError("delete_session", "", err, "")
	}
	return nil
}

// Ping checks if Redis is alive.
func (r *RedisUserRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NextSequence atomically increments and returns the per-session message
// counter. The first call for a session returns 1.
func (r *RedisUserRepository) NextSequence(ctx context.Context, sessionID string) (int, error) {
	n, err := r.client.Incr(ctx, chatSeqPrefix+sessionID).Result()
	if err != nil {
		return 0, NewUserRepositoryError("next_sequence", "", err, "failed to increment sequence counter")
	}
	return int(n), nil
}
