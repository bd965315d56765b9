package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/identity"
)

// Result is the outcome of a user-initiated auth operation. Sign-in failure
// is an expected, recoverable outcome invoked from interactive flows, so it
// is reported inline rather than raised.
type Result struct {
	OK  bool   `json:"ok"`
	Err string `json:"error,omitempty"`
}

func succeeded() Result { return Result{OK: true} }

func failed(err error) Result { return Result{Err: err.Error()} }

// CacheInvalidator purges all tenant-scoped cached query results. Wired to
// the surrounding query cache; purging on sign-out is mandatory so stale data
// from one school can never be shown to the next user on the same device.
type CacheInvalidator interface {
	Clear(ctx context.Context) error
}

// Controller owns the session lifecycle. It is the only writer of the Store:
// it resolves the provider session at startup, consumes auth-state change
// events for the rest of the process lifetime, and exposes the sign-in /
// sign-up / sign-out / update operations.
type Controller struct {
	provider identity.Provider
	store    *Store
	cache    CacheInvalidator
	logger   core.Logger

	initOnce sync.Once
	unsub    func()
}

func NewController(provider identity.Provider, store *Store, cache CacheInvalidator, logger core.Logger) *Controller {
	return &Controller{
		provider: provider,
		store:    store,
		cache:    cache,
		logger:   logger,
	}
}

// Initialize fetches the current provider session once, resolves the tenant,
// populates the Store and registers the long-lived auth-state listener.
// Subsequent calls are no-ops.
func (c *Controller) Initialize(ctx context.Context) {
	c.initOnce.Do(func() {
		sess, err := c.provider.GetSession(ctx)
		switch {
		case err == nil:
			c.apply(sess)
		case errors.Is(err, identity.ErrNoSession):
			c.apply(nil)
		default:
			// The session stays unresolved: a provider that never answers is
			// indistinguishable from "still loading", by contract.
			c.logger.Error("session: initial fetch failed", err)
		}
		c.unsub = c.provider.OnAuthStateChange(c.onAuthStateChange)
	})
}

// Close unregisters the auth-state listener.
func (c *Controller) Close() {
	if c.unsub != nil {
		c.unsub()
	}
}

// onAuthStateChange fully recomputes the session tuple from the event's
// session and overwrites the Store. Never an incremental patch: an in-flight
// stale resolution simply loses the subsequent overwrite.
func (c *Controller) onAuthStateChange(evt identity.Event, sess *identity.Session) {
	if evt == identity.EventSignedOut {
		c.apply(nil)
		c.purgeCache(context.Background())
		return
	}
	c.apply(sess)
}

// apply replaces the Store state from a provider session. A nil session (or
// session without a user) empties it.
func (c *Controller) apply(sess *identity.Session) {
	if sess == nil || sess.User == nil {
		c.store.set(State{Phase: PhaseEmpty})
		return
	}

	next := resolveState(sess.User)
	if next.Phase == PhaseNoTenant {
		c.logger.Warn("session: authenticated principal has no school id", map[string]interface{}{"principal": next.Principal.ID})
	}
	c.store.set(next)
}

// SignIn delegates the credential check to the provider. On success the
// Store is updated by the subsequent auth-state event, not by this call:
// callers must not assume synchronous session availability.
func (c *Controller) SignIn(ctx context.Context, email, password string) Result {
	if _, err := c.provider.SignInWithPassword(ctx, email, password); err != nil {
		return failed(err)
	}
	return succeeded()
}

// SignUp registers a new principal. metadata becomes the attribute bag the
// tenant extractor will later read; it is passed through unmodified, the
// provisioning step that fills in the school id is external.
func (c *Controller) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) Result {
	if _, err := c.provider.SignUp(ctx, email, password, metadata); err != nil {
		return failed(err)
	}
	return succeeded()
}

// SignOut clears the session and purges all tenant-scoped cached results.
// Signing out of an already-empty session is a no-op, not an error.
func (c *Controller) SignOut(ctx context.Context) Result {
	if err := c.provider.SignOut(ctx); err != nil && !errors.Is(err, identity.ErrNoSession) {
		return failed(err)
	}
	c.store.set(State{Phase: PhaseEmpty})
	c.purgeCache(ctx)
	return succeeded()
}

// UpdateProfile merges metadata into the current principal's attribute bag
// via the provider. The Store picks up the change from the provider's
// USER_UPDATED event.
func (c *Controller) UpdateProfile(ctx context.Context, metadata map[string]interface{}) Result {
	if _, ok := NewGuard(c.store).Principal(); !ok {
		return failed(identity.ErrNotAuthenticated)
	}
	if _, err := c.provider.UpdateUser(ctx, metadata); err != nil {
		return failed(err)
	}
	return succeeded()
}

func (c *Controller) purgeCache(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Clear(ctx); err != nil {
		c.logger.Error("session: purging query cache", err)
	}
}
