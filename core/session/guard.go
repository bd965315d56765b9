package session

import (
	"errors"

	"github.com/shule-app/shule/identity"
)

// ErrTenantUnavailable is returned by Guard.RequireTenant when no tenant is
// resolved. Reaching it means a call site skipped the readiness check; it is
// meant to fail loudly during development, not to be presented to users.
var ErrTenantUnavailable = errors.New("tenant not available")

// Guard is the single choke point through which data-access code obtains the
// current tenant. Call sites must never read the Store's tenant directly:
// funnelling through the Guard keeps the fail-closed rule auditable in one
// place instead of scattered across every query.
type Guard struct {
	store *Store
}

func NewGuard(store *Store) Guard {
	return Guard{store: store}
}

// GuardFor returns a Guard over a state resolved once from p. Stateless
// transports that rebuild the principal per request (eg. from token claims)
// use this instead of the long-lived controller-owned Store.
func GuardFor(p *identity.Principal) Guard {
	store := NewStore()
	store.set(resolveState(p))
	return NewGuard(store)
}

// RequireTenant returns the current TenantID, or ErrTenantUnavailable when
// none is resolved. It never returns a default.
func (g Guard) RequireTenant() (TenantID, error) {
	if tenant, ok := g.TenantOrNone(); ok {
		return tenant, nil
	}
	return 0, ErrTenantUnavailable
}

// TenantOrNone is the non-raising counterpart for call sites that defer work
// until the session is ready (eg. disabling a query).
func (g Guard) TenantOrNone() (TenantID, bool) {
	state := g.store.Snapshot()
	if state.Tenant == 0 {
		return 0, false
	}
	return state.Tenant, true
}

// Principal returns the current principal, if any.
func (g Guard) Principal() (*identity.Principal, bool) {
	state := g.store.Snapshot()
	return state.Principal, state.Principal != nil
}

// Ready reports whether the session is fully resolved.
func (g Guard) Ready() bool {
	return g.store.Snapshot().Ready()
}
