// Package session implements the tenant-scoped session core: resolving an
// authenticated Principal to exactly one school, holding that resolution in a
// single-writer Store, and gating every data access on it.
package session

import (
	"sync"

	"github.com/shule-app/shule/identity"
)

// Phase is the lifecycle stage of the session tuple.
type Phase int

const (
	// PhaseUnresolved is the initial stage, before the first identity
	// resolution completes. Indistinguishable from "still loading".
	PhaseUnresolved Phase = iota
	// PhaseEmpty means identity resolved to no principal.
	PhaseEmpty
	// PhaseReady means both principal and tenant are resolved.
	PhaseReady
	// PhaseNoTenant means a principal is authenticated but carries no school
	// id. This is a distinct, user-visible error state, never merged into
	// Ready or Empty.
	PhaseNoTenant
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseReady:
		return "ready"
	case PhaseNoTenant:
		return "no-tenant"
	default:
		return "unresolved"
	}
}

// State is the session tuple. It is always replaced whole, never patched
// field by field, so a consumer can never observe a torn {old principal,
// new tenant} combination.
type State struct {
	Principal *identity.Principal
	Tenant    TenantID
	Phase     Phase
}

// Ready reports whether both principal and tenant are resolved. It is
// computed, not stored, so no partially-ready state is representable.
func (s State) Ready() bool {
	return s.Principal != nil && s.Tenant != 0
}

// Store holds the current session State. All mutation funnels through the
// Controller via the unexported setter; everything else is a read-only
// consumer. The source system relied on a single event-loop thread for this
// one-writer discipline; here a mutex guards the same invariant.
type Store struct {
	mu      sync.RWMutex
	state   State
	subs    map[int]chan State
	nextSub int
}

func NewStore() *Store {
	return &Store{
		state: State{Phase: PhaseUnresolved},
		subs:  make(map[int]chan State),
	}
}

// Snapshot returns the current state.
func (st *Store) Snapshot() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}

// Subscribe returns a channel receiving every subsequent state snapshot and a
// func that unregisters it. A slow consumer loses intermediate snapshots
// rather than blocking the writer; the latest state is always re-readable via
// Snapshot.
func (st *Store) Subscribe() (<-chan State, func()) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := st.nextSub
	st.nextSub++
	ch := make(chan State, 8)
	st.subs[id] = ch

	unsubscribe := func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		if sub, ok := st.subs[id]; ok {
			delete(st.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// resolveState computes the whole session tuple for a principal. The tenant
// extraction result decides the phase; there is no path to Ready without a
// resolved tenant.
func resolveState(p *identity.Principal) State {
	if p == nil {
		return State{Phase: PhaseEmpty}
	}
	principal := p.Clone()
	tenant, ok := ExtractTenant(principal)
	if !ok {
		return State{Principal: principal, Phase: PhaseNoTenant}
	}
	return State{Principal: principal, Tenant: tenant, Phase: PhaseReady}
}

// set atomically replaces the whole session tuple and notifies subscribers.
func (st *Store) set(next State) {
	st.mu.Lock()
	st.state = next
	for _, ch := range st.subs {
		select {
		case ch <- next:
		default:
		}
	}
	st.mu.Unlock()
}
