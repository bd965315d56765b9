package localidp

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/identity"
)

// Provider implements identity.Provider against the local account store.
// It holds at most one active session at a time (the boundary mirrors a
// per-device identity client) and pushes auth-state events to listeners from
// a single dispatch goroutine, one event at a time, in emission order.
type Provider struct {
	conf     *core.Config
	repo     Repository
	sessions RefreshStore
	mailSvc  core.EmailService
	logger   core.Logger

	mu        sync.Mutex
	current   *identity.Session
	listeners map[int]identity.Listener
	nextSub   int

	events chan queuedEvent
	done   chan struct{}
}

type queuedEvent struct {
	evt  identity.Event
	sess *identity.Session
}

var _ identity.Provider = (*Provider)(nil)

func NewProvider(conf *core.Config, repo Repository, sessions RefreshStore, mailSvc core.EmailService, logger core.Logger) *Provider {
	p := &Provider{
		conf:      conf,
		repo:      repo,
		sessions:  sessions,
		mailSvc:   mailSvc,
		logger:    logger,
		listeners: make(map[int]identity.Listener),
		events:    make(chan queuedEvent, 16),
		done:      make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Close stops the event dispatcher. Pending events are delivered first.
func (p *Provider) Close() {
	close(p.events)
	<-p.done
}

func (p *Provider) dispatch() {
	defer close(p.done)
	for qe := range p.events {
		p.mu.Lock()
		listeners := make([]identity.Listener, 0, len(p.listeners))
		for _, l := range p.listeners {
			listeners = append(listeners, l)
		}
		p.mu.Unlock()

		for _, l := range listeners {
			l(qe.evt, qe.sess)
		}
	}
}

func (p *Provider) emit(evt identity.Event, sess *identity.Session) {
	p.events <- queuedEvent{evt: evt, sess: sess}
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

// GetSession returns the active session. An expired access token is renewed
// through the refresh store; renewal failure reads as signed out.
func (p *Provider) GetSession(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()

	if sess == nil {
		return nil, identity.ErrNoSession
	}
	if time.Now().Before(sess.ExpiresAt) {
		return sess, nil
	}

	renewed, err := p.refresh(ctx, sess)
	if err != nil {
		p.logger.Warn("identity: session refresh failed", err)
		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
		p.emit(identity.EventSignedOut, nil)
		return nil, identity.ErrNoSession
	}
	return renewed, nil
}

func (p *Provider) refresh(ctx context.Context, stale *identity.Session) (*identity.Session, error) {
	sess, err := p.Renew(ctx, stale.RefreshToken)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()
	p.emit(identity.EventTokenRefreshed, sess)
	return sess, nil
}

// Renew exchanges a live refresh token for a fresh token pair. The stale
// refresh token is revoked. Unlike GetSession this does not touch the
// provider's own session: stateless consumers renew per request.
func (p *Provider) Renew(ctx context.Context, refreshToken string) (*identity.Session, error) {
	userID, err := p.sessions.Lookup(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	usr, err := p.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !usr.IsActive {
		return nil, identity.ErrAccountDeactivated
	}

	sess, err := p.newSession(ctx, usr)
	if err != nil {
		return nil, err
	}
	if err := p.sessions.Revoke(ctx, refreshToken); err != nil {
		p.logger.Warn("identity: revoking stale refresh token", err)
	}
	return sess, nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	usr, err := p.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, identity.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(password); err != nil {
		return nil, identity.ErrInvalidCredentials
	}
	if !usr.IsActive {
		return nil, identity.ErrAccountDeactivated
	}

	if usr, err = p.repo.SetLastLogin(ctx, usr.ID, time.Now().UTC()); err != nil {
		return nil, errors.Wrap(err, "setting last login")
	}

	sess, err := p.newSession(ctx, usr)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()
	p.emit(identity.EventSignedIn, sess)
	return sess, nil
}

// SignUp registers an account. metadata is stored verbatim: whatever the
// tenant extractor will later read must already be in it, or be stamped by
// the provisioning step afterwards.
func (p *Provider) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (*identity.Session, error) {
	email = core.CleanString(email, true /* lower */)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "email", Error: "invalid email address"})
	}
	if err := validatePassword(password, email); err != nil {
		return nil, err
	}
	if _, err := p.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, identity.ErrEmailExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, errors.Wrap(err, "checking email uniqueness")
	}

	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Email:     email,
		Metadata:  metadata,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(password); err != nil {
		return nil, errors.Wrap(err, "hashing password")
	}
	usr, err := p.repo.CreateUser(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "creating user")
	}

	p.sendWelcomeMail(usr)

	sess, err := p.newSession(ctx, usr)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()
	p.emit(identity.EventSignedIn, sess)
	return sess, nil
}

func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sess := p.current
	p.current = nil
	p.mu.Unlock()

	if sess == nil {
		return identity.ErrNoSession
	}
	if err := p.sessions.Revoke(ctx, sess.RefreshToken); err != nil {
		p.logger.Warn("identity: revoking refresh token", err)
	}
	p.emit(identity.EventSignedOut, nil)
	return nil
}

func (p *Provider) UpdateUser(ctx context.Context, metadata map[string]interface{}) (*identity.Principal, error) {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()
	if sess == nil {
		return nil, identity.ErrNotAuthenticated
	}

	usr, err := p.repo.MergeUserMetadata(ctx, sess.User.ID, metadata)
	if err != nil {
		return nil, errors.Wrap(err, "merging user metadata")
	}

	renewed, err := p.newSession(ctx, usr)
	if err != nil {
		return nil, err
	}
	renewed.RefreshToken = sess.RefreshToken // metadata change does not rotate the refresh session

	p.mu.Lock()
	p.current = renewed
	p.mu.Unlock()
	p.emit(identity.EventUserUpdated, renewed)
	return usr.Principal(), nil
}

// UpdateUserByID merges metadata for an account regardless of the provider's
// own session. Stateless consumers identify the account from token claims.
func (p *Provider) UpdateUserByID(ctx context.Context, id string, metadata map[string]interface{}) (*identity.Principal, error) {
	usr, err := p.repo.MergeUserMetadata(ctx, id, metadata)
	if err != nil {
		return nil, errors.Wrap(err, "merging user metadata")
	}
	return usr.Principal(), nil
}

// RevokeRefresh invalidates a refresh token, eg. on explicit logout.
func (p *Provider) RevokeRefresh(ctx context.Context, refreshToken string) error {
	return p.sessions.Revoke(ctx, refreshToken)
}

// newSession issues a fresh access + refresh token pair for usr.
func (p *Provider) newSession(ctx context.Context, usr User) (*identity.Session, error) {
	access, expiresAt, err := GenerateToken(p.conf, usr)
	if err != nil {
		return nil, err
	}
	refreshToken := uuid.NewString()
	refreshExpiry := time.Now().Add(p.conf.Server.JWTRefreshExpirationDelta)
	if err := p.sessions.Save(ctx, refreshToken, usr.ID, refreshExpiry); err != nil {
		return nil, errors.Wrap(err, "saving refresh session")
	}
	return &identity.Session{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         usr.Principal(),
	}, nil
}

func (p *Provider) sendWelcomeMail(usr User) {
	if p.mailSvc == nil {
		return
	}
	p.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: usr.Email}},
		Subject: "Welcome",
		TextTemplate: "Hello,\n\nYour {{ .AppName }} account was created." +
			"\n\nSign in at {{ .FrontendBaseURL }} to get started.\n",
	})
}
