package messaging_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shule-app/shule/core/messaging"
	"github.com/shule-app/shule/core/session"
	dummyidp "github.com/shule-app/shule/identity/dummy"
	dummydb "github.com/shule-app/shule/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type publisherRecorder struct {
	mu     sync.Mutex
	topics []string
}

func (p *publisherRecorder) Publish(_ context.Context, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *publisherRecorder) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

type testEnv struct {
	provider *dummyidp.Provider
	ctrl     *session.Controller
	pub      *publisherRecorder
	svc      *messaging.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider := dummyidp.NewProvider()
	provider.Register("amina@kilimani.ac.tz", "pwd", map[string]interface{}{"school_id": 7})
	provider.Register("bakari@mwenge.ac.tz", "pwd", map[string]interface{}{"school_id": 8})
	provider.Register("pending@kilimani.ac.tz", "pwd", nil) // not provisioned yet

	store := session.NewStore()
	ctrl := session.NewController(provider, store, nil, nopLogger{})
	ctrl.Initialize(context.Background())
	t.Cleanup(ctrl.Close)

	pub := &publisherRecorder{}
	env := &testEnv{
		provider: provider,
		ctrl:     ctrl,
		pub:      pub,
		svc:      messaging.NewService(dummydb.NewMessagingRepository(dummydb.Open()), session.NewGuard(store), pub, nopLogger{}),
	}
	return env
}

func (env *testEnv) signIn(t *testing.T, email string) {
	t.Helper()
	res := env.ctrl.SignIn(context.Background(), email, "pwd")
	if !res.OK {
		t.Fatalf("sign-in failed: %s", res.Err)
	}
}

func TestServiceRequiresTenant(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	// signed out
	_, err := env.svc.CreateConversation(ctx, messaging.NewConversation{Subject: "Fees"})
	assert.ErrorIs(t, err, session.ErrTenantUnavailable)
	_, err = env.svc.QueryConversations(ctx)
	assert.ErrorIs(t, err, session.ErrTenantUnavailable)
	_, err = env.svc.GetConversation(ctx, 1)
	assert.ErrorIs(t, err, session.ErrTenantUnavailable)
	_, err = env.svc.SendMessage(ctx, 1, messaging.NewMessage{Body: "hi"})
	assert.ErrorIs(t, err, session.ErrTenantUnavailable)
	_, err = env.svc.QueryMessages(ctx, 1)
	assert.ErrorIs(t, err, session.ErrTenantUnavailable)

	// signed in but not provisioned to a school
	env.signIn(t, "pending@kilimani.ac.tz")
	_, err = env.svc.QueryConversations(ctx)
	assert.ErrorIs(t, err, session.ErrTenantUnavailable)
}

func TestServiceCreateConversation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signIn(t, "amina@kilimani.ac.tz")

	conv, err := env.svc.CreateConversation(ctx, messaging.NewConversation{Subject: "  Term fees  "})
	assert.NoError(t, err)
	assert.NotZero(t, conv.ID)
	assert.Equal(t, session.TenantID(7), conv.SchoolID)
	assert.Equal(t, "Term fees", conv.Subject)
	assert.NotEmpty(t, conv.CreatedBy)

	_, err = env.svc.CreateConversation(ctx, messaging.NewConversation{Subject: "   "})
	assert.Error(t, err)
}

func TestServiceSendMessage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signIn(t, "amina@kilimani.ac.tz")

	conv, err := env.svc.CreateConversation(ctx, messaging.NewConversation{Subject: "Term fees"})
	assert.NoError(t, err)

	msg, err := env.svc.SendMessage(ctx, conv.ID, messaging.NewMessage{Body: "Fees are due Friday."})
	assert.NoError(t, err)
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.Equal(t, session.TenantID(7), msg.SchoolID)
	assert.Equal(t, "Fees are due Friday.", msg.Body)

	// the conversation's LastMessageAt was bumped
	got, err := env.svc.GetConversation(ctx, conv.ID)
	assert.NoError(t, err)
	assert.Equal(t, msg.CreatedAt, got.LastMessageAt)

	// a row-changed hint went out on the conversation topic
	assert.Equal(t, []string{messaging.ConversationTopic(conv.ID)}, env.pub.published())

	msgs, err := env.svc.QueryMessages(ctx, conv.ID)
	assert.NoError(t, err)
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, msg.ID, msgs[0].ID)
	}
}

func TestServiceTenantIsolation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.signIn(t, "amina@kilimani.ac.tz")
	conv, err := env.svc.CreateConversation(ctx, messaging.NewConversation{Subject: "Term fees"})
	assert.NoError(t, err)
	_, err = env.svc.SendMessage(ctx, conv.ID, messaging.NewMessage{Body: "Fees are due Friday."})
	assert.NoError(t, err)

	// another school's user on the same device sees none of it
	env.signIn(t, "bakari@mwenge.ac.tz")

	convs, err := env.svc.QueryConversations(ctx)
	assert.NoError(t, err)
	assert.Empty(t, convs)

	_, err = env.svc.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, messaging.ErrNotFound)
	_, err = env.svc.SendMessage(ctx, conv.ID, messaging.NewMessage{Body: "intrusion"})
	assert.ErrorIs(t, err, messaging.ErrNotFound)
	_, err = env.svc.QueryMessages(ctx, conv.ID)
	assert.ErrorIs(t, err, messaging.ErrNotFound)

	// and the original school still sees its data intact
	env.signIn(t, "amina@kilimani.ac.tz")
	msgs, err := env.svc.QueryMessages(ctx, conv.ID)
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestServiceQueryConversationsOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signIn(t, "amina@kilimani.ac.tz")

	first, err := env.svc.CreateConversation(ctx, messaging.NewConversation{Subject: "First"})
	assert.NoError(t, err)
	second, err := env.svc.CreateConversation(ctx, messaging.NewConversation{Subject: "Second"})
	assert.NoError(t, err)

	// activity on the older conversation moves it to the top
	_, err = env.svc.SendMessage(ctx, first.ID, messaging.NewMessage{Body: "bump"})
	assert.NoError(t, err)

	convs, err := env.svc.QueryConversations(ctx)
	assert.NoError(t, err)
	if assert.Len(t, convs, 2) {
		assert.Equal(t, first.ID, convs[0].ID)
		assert.Equal(t, second.ID, convs[1].ID)
	}
}
