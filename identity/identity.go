// Package identity defines the boundary to the identity provider: the
// authenticated Principal, the provider Session wrapping it, and the Provider
// interface the session core consumes. Concrete providers live in
// sub-packages; the session core depends only on the shapes defined here.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrNoSession          = errors.New("no active session")
	ErrNotAuthenticated   = errors.New("no authenticated user")
	ErrAccountDeactivated = errors.New("account deactivated")
)

// Principal is the authenticated identity object returned by the provider.
// Metadata is an opaque attribute bag supplied at signup/update time; the
// provider stores it verbatim and never interprets it.
type Principal struct {
	ID       string                 `json:"id"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Clone returns a copy with its own metadata map, so that callers can never
// mutate provider-owned state through a shared reference.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Session is the provider-side session: an access token and the Principal it
// authenticates.
type Session struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	User         *Principal `json:"user"`
}

// Event tags an auth-state change pushed by the provider.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// Listener receives auth-state changes. sess is nil for EventSignedOut.
// Listeners are invoked asynchronously on the provider's own dispatch
// goroutine, one event at a time, in emission order.
type Listener func(evt Event, sess *Session)

// Provider is the black-box identity service. Implementations own credential
// verification and session persistence; consumers only see {Session, error}
// and {Principal, error} shapes.
type Provider interface {
	// GetSession returns the current session, or ErrNoSession when signed out.
	GetSession(ctx context.Context) (*Session, error)

	// OnAuthStateChange registers a long-lived listener. The returned func
	// unregisters it.
	OnAuthStateChange(l Listener) (unsubscribe func())

	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*Session, error)
	SignOut(ctx context.Context) error

	// UpdateUser merges metadata into the current Principal's attribute bag.
	// Fails with ErrNotAuthenticated when no session is active.
	UpdateUser(ctx context.Context, metadata map[string]interface{}) (*Principal, error)
}
