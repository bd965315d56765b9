package localidp_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/session"
	"github.com/shule-app/shule/identity"
	localidp "github.com/shule-app/shule/identity/local"
	dummydb "github.com/shule-app/shule/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type mailRecorder struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

func (m *mailRecorder) last() *core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

type recordedEvent struct {
	evt  identity.Event
	sess *identity.Session
}

func newTestConfig() *core.Config {
	conf := &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "Shule",
		SecretKey: []byte("poq5-wer)$^&*a#@-wuvb"),

		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = time.Hour
	return conf
}

func newTestProvider(t *testing.T, conf *core.Config) (*localidp.Provider, *mailRecorder, chan recordedEvent) {
	t.Helper()
	p, mailSvc, events, _ := newTestProviderWithSessions(t, conf)
	return p, mailSvc, events
}

func newTestProviderWithSessions(t *testing.T, conf *core.Config) (*localidp.Provider, *mailRecorder, chan recordedEvent, localidp.RefreshStore) {
	t.Helper()

	mailSvc := &mailRecorder{}
	sessions := localidp.NewDummyRefreshStore()
	p := localidp.NewProvider(conf, dummydb.NewUserRepository(dummydb.Open()), sessions, mailSvc, nopLogger{})
	t.Cleanup(p.Close)

	events := make(chan recordedEvent, 16)
	unsub := p.OnAuthStateChange(func(evt identity.Event, sess *identity.Session) {
		events <- recordedEvent{evt: evt, sess: sess}
	})
	t.Cleanup(unsub)
	return p, mailSvc, events, sessions
}

func waitEvent(t *testing.T, events chan recordedEvent) recordedEvent {
	t.Helper()
	select {
	case re := <-events:
		return re
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auth event")
		return recordedEvent{}
	}
}

func TestProviderSignUp(t *testing.T) {
	ctx := context.Background()
	conf := newTestConfig()

	t.Run("happy path", func(t *testing.T) {
		p, mailSvc, events := newTestProvider(t, conf)

		sess, err := p.SignUp(ctx, " Amina@Kilimani.ac.tz ", "v3ryS3cur3!", map[string]interface{}{"name": "Amina"})
		assert.NoError(t, err)
		assert.NotEmpty(t, sess.AccessToken)
		assert.NotEmpty(t, sess.RefreshToken)
		assert.Equal(t, "amina@kilimani.ac.tz", sess.User.Email)
		assert.Equal(t, "Amina", sess.User.Metadata["name"])

		re := waitEvent(t, events)
		assert.Equal(t, identity.EventSignedIn, re.evt)
		assert.Equal(t, sess.User.ID, re.sess.User.ID)

		mail := mailSvc.last()
		if assert.NotNil(t, mail) {
			assert.Equal(t, "amina@kilimani.ac.tz", mail.To[0].Address)
			assert.Equal(t, "Welcome", mail.Subject)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		p, _, _ := newTestProvider(t, conf)
		_, err := p.SignUp(ctx, "not-an-email", "v3ryS3cur3!", nil)
		verr := &core.ValidationError{}
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("weak password", func(t *testing.T) {
		p, _, _ := newTestProvider(t, conf)
		_, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "short", nil)
		verr := &core.ValidationError{}
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("duplicate email", func(t *testing.T) {
		p, _, _ := newTestProvider(t, conf)
		_, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
		assert.NoError(t, err)
		_, err = p.SignUp(ctx, "AMINA@kilimani.ac.tz", "0therS3cret!", nil)
		assert.ErrorIs(t, err, identity.ErrEmailExists)
	})
}

func TestProviderSignIn(t *testing.T) {
	ctx := context.Background()
	conf := newTestConfig()

	t.Run("happy path", func(t *testing.T) {
		p, _, events := newTestProvider(t, conf)
		_, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
		assert.NoError(t, err)
		waitEvent(t, events) // SIGNED_IN from sign-up

		sess, err := p.SignInWithPassword(ctx, "Amina@Kilimani.ac.tz", "v3ryS3cur3!")
		assert.NoError(t, err)
		assert.Equal(t, "amina@kilimani.ac.tz", sess.User.Email)

		re := waitEvent(t, events)
		assert.Equal(t, identity.EventSignedIn, re.evt)
	})

	t.Run("unknown email", func(t *testing.T) {
		p, _, _ := newTestProvider(t, conf)
		_, err := p.SignInWithPassword(ctx, "nobody@kilimani.ac.tz", "v3ryS3cur3!")
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		p, _, _ := newTestProvider(t, conf)
		_, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
		assert.NoError(t, err)

		_, err = p.SignInWithPassword(ctx, "amina@kilimani.ac.tz", "wr0ngSecret!")
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
	})
}

func TestProviderGetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		p, _, _ := newTestProvider(t, newTestConfig())
		_, err := p.GetSession(ctx)
		assert.ErrorIs(t, err, identity.ErrNoSession)
	})

	t.Run("live session", func(t *testing.T) {
		p, _, _ := newTestProvider(t, newTestConfig())
		sess, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
		assert.NoError(t, err)

		got, err := p.GetSession(ctx)
		assert.NoError(t, err)
		assert.Equal(t, sess.AccessToken, got.AccessToken)
	})

	t.Run("expired session is renewed", func(t *testing.T) {
		conf := newTestConfig()
		conf.Server.JWTExpirationDelta = -time.Minute // issue already-expired tokens
		p, _, events := newTestProvider(t, conf)

		sess, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
		assert.NoError(t, err)
		waitEvent(t, events) // SIGNED_IN

		renewed, err := p.GetSession(ctx)
		assert.NoError(t, err)
		assert.NotEqual(t, sess.RefreshToken, renewed.RefreshToken, "refresh token must rotate")

		re := waitEvent(t, events)
		assert.Equal(t, identity.EventTokenRefreshed, re.evt)
		assert.Equal(t, renewed.RefreshToken, re.sess.RefreshToken)
	})

	t.Run("revoked refresh reads as signed out", func(t *testing.T) {
		conf := newTestConfig()
		conf.Server.JWTExpirationDelta = -time.Minute
		p, _, events, sessions := newTestProviderWithSessions(t, conf)

		sess, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
		assert.NoError(t, err)
		waitEvent(t, events) // SIGNED_IN

		assert.NoError(t, sessions.Revoke(ctx, sess.RefreshToken))

		_, err = p.GetSession(ctx)
		assert.ErrorIs(t, err, identity.ErrNoSession)

		re := waitEvent(t, events)
		assert.Equal(t, identity.EventSignedOut, re.evt)
	})
}

func TestProviderSignOut(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		p, _, _ := newTestProvider(t, newTestConfig())
		assert.ErrorIs(t, p.SignOut(ctx), identity.ErrNoSession)
	})

	t.Run("clears session", func(t *testing.T) {
		p, _, events := newTestProvider(t, newTestConfig())
		_, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
		assert.NoError(t, err)
		waitEvent(t, events) // SIGNED_IN

		assert.NoError(t, p.SignOut(ctx))
		re := waitEvent(t, events)
		assert.Equal(t, identity.EventSignedOut, re.evt)
		assert.Nil(t, re.sess)

		_, err = p.GetSession(ctx)
		assert.ErrorIs(t, err, identity.ErrNoSession)
	})
}

func TestProviderUpdateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("requires authentication", func(t *testing.T) {
		p, _, _ := newTestProvider(t, newTestConfig())
		_, err := p.UpdateUser(ctx, map[string]interface{}{"name": "Amina"})
		assert.ErrorIs(t, err, identity.ErrNotAuthenticated)
	})

	t.Run("merges metadata and keeps refresh session", func(t *testing.T) {
		p, _, events := newTestProvider(t, newTestConfig())
		sess, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", map[string]interface{}{"name": "Amina"})
		assert.NoError(t, err)
		waitEvent(t, events) // SIGNED_IN

		principal, err := p.UpdateUser(ctx, map[string]interface{}{"phone": "+255700000001"})
		assert.NoError(t, err)
		assert.Equal(t, "Amina", principal.Metadata["name"])
		assert.Equal(t, "+255700000001", principal.Metadata["phone"])

		re := waitEvent(t, events)
		assert.Equal(t, identity.EventUserUpdated, re.evt)
		assert.Equal(t, sess.RefreshToken, re.sess.RefreshToken)
	})
}

func TestProviderAssignSchool(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects the zero id", func(t *testing.T) {
		p, _, _ := newTestProvider(t, newTestConfig())
		assert.Error(t, p.AssignSchool(ctx, "amina@kilimani.ac.tz", 0))
	})

	t.Run("unknown account", func(t *testing.T) {
		p, _, _ := newTestProvider(t, newTestConfig())
		assert.ErrorIs(t, p.AssignSchool(ctx, "nobody@kilimani.ac.tz", 3), localidp.ErrUserNotFound)
	})

	t.Run("stamps the active session", func(t *testing.T) {
		p, _, events := newTestProvider(t, newTestConfig())
		_, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
		assert.NoError(t, err)
		waitEvent(t, events) // SIGNED_IN

		assert.NoError(t, p.AssignSchool(ctx, "amina@kilimani.ac.tz", session.TenantID(7)))

		re := waitEvent(t, events)
		assert.Equal(t, identity.EventUserUpdated, re.evt)
		assert.Equal(t, int64(7), re.sess.User.Metadata["school_id"])

		tenant, ok := session.ExtractTenant(re.sess.User)
		assert.True(t, ok)
		assert.Equal(t, session.TenantID(7), tenant)
	})
}

func TestProviderPasswordReset(t *testing.T) {
	ctx := context.Background()
	conf := newTestConfig()
	p, mailSvc, _ := newTestProvider(t, conf)

	_, err := p.SignUp(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!", nil)
	assert.NoError(t, err)

	assert.NoError(t, p.RequestPasswordReset(ctx, "Amina@Kilimani.ac.tz"))
	mail := mailSvc.last()
	if !assert.NotNil(t, mail) {
		return
	}
	assert.Equal(t, "Password Reset", mail.Subject)
	data, ok := mail.TemplateData.(map[string]string)
	if !assert.True(t, ok) {
		return
	}

	t.Run("bad token", func(t *testing.T) {
		assert.Error(t, p.ResetPassword(ctx, data["UID"], "bogus-token", "An0therSecret!"))
	})

	t.Run("weak replacement password", func(t *testing.T) {
		err := p.ResetPassword(ctx, data["UID"], data["Token"], "short")
		verr := &core.ValidationError{}
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("happy path", func(t *testing.T) {
		assert.NoError(t, p.ResetPassword(ctx, data["UID"], data["Token"], "An0therSecret!"))

		_, err := p.SignInWithPassword(ctx, "amina@kilimani.ac.tz", "v3ryS3cur3!")
		assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
		_, err = p.SignInWithPassword(ctx, "amina@kilimani.ac.tz", "An0therSecret!")
		assert.NoError(t, err)
	})

	t.Run("token self-invalidates after use", func(t *testing.T) {
		assert.Error(t, p.ResetPassword(ctx, data["UID"], data["Token"], "Y3tAn0ther!"))
	})
}
