package core

import (
	"context"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type (
	User struct {
		ID string `json:"id"`
		// Subject is the external identity, e.g. "google:1234" or an OIDC sub.
		// Credential accounts use "local:" followed by the email.
		Subject      string    `json:"subject"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		AvatarURL    string    `json:"avatarUrl,omitempty"`
		PasswordHash string    `json:"-"`
		Role         string    `json:"role"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	UserStore interface {
		// CreateUser fails with ErrConflict when the email is taken.
		CreateUser(ctx context.Context, user *User) error
		FindUserByEmail(ctx context.Context, email string) (*User, error)
		FindUserBySubject(ctx context.Context, subject string) (*User, error)
		// UpsertOAuthUser creates the user on first login and refreshes the
		// profile fields afterwards. The stored role is never overwritten.
		// It fails with ErrConflict when the email belongs to another user.
		UpsertOAuthUser(ctx context.Context, user *User) error
	}
)
