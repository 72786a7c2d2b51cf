package models

import "time"

// User is a registered account. PasswordHash is a bcrypt digest; the clear
// password never leaves the auth service.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	Email        string    `json:"email"`
	CreatedAt    time.Time `json:"created_at"`
	Documents    []string  `json:"documents"`
}

// AuthSession is an issued login session. Expiry is absolute: 24 hours from
// creation, not from last activity.
type AuthSession struct {
	SessionID string    `json:"session_id"`
	Username  string    `json:"username"`
	Expires   time.Time `json:"expires"`
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// Validate validates the register request.
func (r *RegisterRequest) Validate() error {
	if r.Username == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if len(r.Password) < 8 {
		return &ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	if r.Email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	return nil
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued session token.
type LoginResponse struct {
	SessionID string    `json:"session_id"`
	Username  string    `json:"username"`
	Expires   time.Time `json:"expires"`
}
