// Package dummyidp provides an in-memory identity provider for tests.
// Events are dispatched synchronously so tests stay deterministic.
package dummyidp

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shule-app/shule/identity"
)

type account struct {
	principal identity.Principal
	password  string
}

type Provider struct {
	mu        sync.Mutex
	accounts  map[string]*account // keyed by email
	current   *identity.Session
	listeners map[int]identity.Listener
	nextID    int
	nextSub   int
}

var _ identity.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{
		accounts:  make(map[string]*account),
		listeners: make(map[int]identity.Listener),
	}
}

// Register seeds an account without emitting events.
func (p *Provider) Register(email, password string, metadata map[string]interface{}) identity.Principal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.register(email, password, metadata)
}

func (p *Provider) register(email, password string, metadata map[string]interface{}) identity.Principal {
	p.nextID++
	acct := &account{
		principal: identity.Principal{
			ID:       "u" + strconv.Itoa(p.nextID),
			Email:    email,
			Metadata: metadata,
		},
		password: password,
	}
	p.accounts[email] = acct
	return acct.principal
}

func (p *Provider) GetSession(context.Context) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil, identity.ErrNoSession
	}
	return p.current, nil
}

func (p *Provider) OnAuthStateChange(l identity.Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.listeners[id] = l
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	p.mu.Lock()
	acct, ok := p.accounts[email]
	if !ok || acct.password != password {
		p.mu.Unlock()
		return nil, identity.ErrInvalidCredentials
	}
	sess := p.newSession(&acct.principal)
	p.current = sess
	p.mu.Unlock()

	p.emit(identity.EventSignedIn, sess)
	return sess, nil
}

func (p *Provider) SignUp(_ context.Context, email, password string, metadata map[string]interface{}) (*identity.Session, error) {
	p.mu.Lock()
	if _, exists := p.accounts[email]; exists {
		p.mu.Unlock()
		return nil, identity.ErrEmailExists
	}
	principal := p.register(email, password, metadata)
	sess := p.newSession(&principal)
	p.current = sess
	p.mu.Unlock()

	p.emit(identity.EventSignedIn, sess)
	return sess, nil
}

func (p *Provider) SignOut(context.Context) error {
	p.mu.Lock()
	signedIn := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if signedIn {
		p.emit(identity.EventSignedOut, nil)
	}
	return nil
}

func (p *Provider) UpdateUser(_ context.Context, metadata map[string]interface{}) (*identity.Principal, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return nil, identity.ErrNotAuthenticated
	}
	acct := p.accounts[p.current.User.Email]
	if acct.principal.Metadata == nil {
		acct.principal.Metadata = make(map[string]interface{}, len(metadata))
	}
	for k, v := range metadata {
		acct.principal.Metadata[k] = v
	}
	sess := p.newSession(&acct.principal)
	p.current = sess
	p.mu.Unlock()

	p.emit(identity.EventUserUpdated, sess)
	principal := acct.principal
	return &principal, nil
}

// EmitTokenRefreshed simulates a provider-side token refresh push.
func (p *Provider) EmitTokenRefreshed() {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()
	if sess != nil {
		p.emit(identity.EventTokenRefreshed, sess)
	}
}

func (p *Provider) newSession(principal *identity.Principal) *identity.Session {
	return &identity.Session{
		AccessToken: "token-" + principal.ID,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        principal.Clone(),
	}
}

func (p *Provider) emit(evt identity.Event, sess *identity.Session) {
	p.mu.Lock()
	listeners := make([]identity.Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(evt, sess)
	}
}
