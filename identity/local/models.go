// Package localidp is the self-hosted identity provider: bcrypt credentials
// in a user store, JWT access tokens, refresh sessions in redis, and
// auth-state events dispatched to registered listeners.
package localidp

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shule-app/shule/identity"
)

// ErrUserNotFound is the repository-level absence sentinel.
var ErrUserNotFound = errors.New("user not found")

// User is a stored account. Metadata is the opaque attribute bag surfaced on
// the Principal; the provider stores it verbatim.
type User struct {
	ID           string                 `json:"id" db:"id"`
	Email        string                 `json:"email" db:"email"`
	PasswordHash []byte                 `json:"-" db:"password_hash"`
	Metadata     map[string]interface{} `json:"metadata" db:"-"`
	IsActive     bool                   `json:"is_active" db:"is_active"`
	CreatedAt    time.Time              `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time              `json:"updated_at" db:"updated_at"` // UTC
	LastLogin    time.Time              `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Principal converts the stored account to the boundary shape.
func (u *User) Principal() *identity.Principal {
	p := &identity.Principal{ID: u.ID, Email: u.Email, Metadata: u.Metadata}
	return p.Clone()
}

// Repository is the account store.
type Repository interface {
	CreateUser(ctx context.Context, usr User) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// MergeUserMetadata merges the given keys into the stored attribute bag.
	MergeUserMetadata(ctx context.Context, id string, metadata map[string]interface{}) (User, error)
	SetUserPassword(ctx context.Context, id string, hash []byte) error
	SetLastLogin(ctx context.Context, id string, at time.Time) (User, error)
}
