package session

import (
	"context"
	"testing"

	"github.com/shule-app/shule/identity"
	dummyidp "github.com/shule-app/shule/identity/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type spyCache struct {
	clears int
}

func (c *spyCache) Clear(context.Context) error {
	c.clears++
	return nil
}

func setup(t *testing.T) (*dummyidp.Provider, *Store, *Controller, *spyCache) {
	t.Helper()
	provider := dummyidp.NewProvider()
	store := NewStore()
	cache := &spyCache{}
	ctrl := NewController(provider, store, cache, nopLogger{})
	t.Cleanup(ctrl.Close)
	return provider, store, ctrl, cache
}

func TestInitializeNoSession(t *testing.T) {
	_, store, ctrl, _ := setup(t)
	ctrl.Initialize(context.Background())

	if phase := store.Snapshot().Phase; phase != PhaseEmpty {
		t.Errorf("phase = %v, want %v", phase, PhaseEmpty)
	}
}

func TestInitializeExistingSession(t *testing.T) {
	provider, store, ctrl, _ := setup(t)
	provider.Register("amina@shule.test", "pwd", map[string]interface{}{"school_id": 7})
	if _, err := provider.SignInWithPassword(context.Background(), "amina@shule.test", "pwd"); err != nil {
		t.Fatalf("seeding session: %v", err)
	}

	ctrl.Initialize(context.Background())

	state := store.Snapshot()
	if !state.Ready() || state.Tenant != 7 {
		t.Errorf("state = %+v, want ready with tenant 7", state)
	}
}

func TestSignInResolvesTenant(t *testing.T) {
	provider, store, ctrl, _ := setup(t)
	ctrl.Initialize(context.Background())
	provider.Register("amina@shule.test", "pwd", map[string]interface{}{"school_id": "7"})

	res := ctrl.SignIn(context.Background(), "amina@shule.test", "pwd")
	if !res.OK {
		t.Fatalf("SignIn failed: %s", res.Err)
	}

	state := store.Snapshot()
	if state.Phase != PhaseReady || state.Tenant != 7 || state.Principal == nil {
		t.Errorf("state = %+v, want {principal, 7, ready}", state)
	}
}

func TestSignInWithoutSchoolID(t *testing.T) {
	provider, store, ctrl, _ := setup(t)
	ctrl.Initialize(context.Background())
	provider.Register("orphan@shule.test", "pwd", map[string]interface{}{})

	res := ctrl.SignIn(context.Background(), "orphan@shule.test", "pwd")
	if !res.OK {
		t.Fatalf("SignIn failed: %s", res.Err)
	}

	state := store.Snapshot()
	if state.Phase != PhaseNoTenant {
		t.Errorf("phase = %v, want %v (distinct from empty and ready)", state.Phase, PhaseNoTenant)
	}
	if state.Ready() {
		t.Error("authenticated-without-tenant must not be ready")
	}
	if _, err := NewGuard(store).RequireTenant(); err != ErrTenantUnavailable {
		t.Errorf("RequireTenant() error = %v, want %v", err, ErrTenantUnavailable)
	}
}

func TestSignInBadCredentials(t *testing.T) {
	provider, store, ctrl, _ := setup(t)
	ctrl.Initialize(context.Background())
	provider.Register("amina@shule.test", "pwd", map[string]interface{}{"school_id": 7})

	res := ctrl.SignIn(context.Background(), "amina@shule.test", "nope")
	if res.OK || res.Err == "" {
		t.Fatalf("SignIn = %+v, want normalized failure", res)
	}
	if phase := store.Snapshot().Phase; phase != PhaseEmpty {
		t.Errorf("failed sign-in mutated the store: phase = %v", phase)
	}
}

func TestSignOut(t *testing.T) {
	provider, store, ctrl, cache := setup(t)
	ctrl.Initialize(context.Background())
	provider.Register("amina@shule.test", "pwd", map[string]interface{}{"school_id": 7})
	ctrl.SignIn(context.Background(), "amina@shule.test", "pwd")

	res := ctrl.SignOut(context.Background())
	if !res.OK {
		t.Fatalf("SignOut failed: %s", res.Err)
	}

	state := store.Snapshot()
	if state.Phase != PhaseEmpty || state.Principal != nil || state.Tenant != 0 {
		t.Errorf("state = %+v, want empty", state)
	}
	if cache.clears == 0 {
		t.Error("sign-out did not purge the query cache")
	}
	if _, err := NewGuard(store).RequireTenant(); err != ErrTenantUnavailable {
		t.Errorf("RequireTenant() after sign-out error = %v, want %v", err, ErrTenantUnavailable)
	}

	// idempotent on an already-empty session
	if res := ctrl.SignOut(context.Background()); !res.OK {
		t.Errorf("second SignOut = %+v, want no-op success", res)
	}
}

func TestUpdateProfileRequiresPrincipal(t *testing.T) {
	_, _, ctrl, _ := setup(t)
	ctrl.Initialize(context.Background())

	res := ctrl.UpdateProfile(context.Background(), map[string]interface{}{"phone": "+255700000001"})
	if res.OK || res.Err != identity.ErrNotAuthenticated.Error() {
		t.Errorf("UpdateProfile = %+v, want %q failure", res, identity.ErrNotAuthenticated)
	}
}

func TestUpdateProfileReplacesSession(t *testing.T) {
	provider, store, ctrl, _ := setup(t)
	ctrl.Initialize(context.Background())
	provider.Register("amina@shule.test", "pwd", map[string]interface{}{})
	ctrl.SignIn(context.Background(), "amina@shule.test", "pwd")

	// the external provisioning step stamps the school id via a profile update
	res := ctrl.UpdateProfile(context.Background(), map[string]interface{}{"school_id": 12})
	if !res.OK {
		t.Fatalf("UpdateProfile failed: %s", res.Err)
	}

	state := store.Snapshot()
	if state.Phase != PhaseReady || state.Tenant != 12 {
		t.Errorf("state after provisioning = %+v, want ready with tenant 12", state)
	}
}

func TestTokenRefreshedReplacesNotPatches(t *testing.T) {
	provider, store, ctrl, _ := setup(t)
	ctrl.Initialize(context.Background())
	provider.Register("amina@shule.test", "pwd", map[string]interface{}{"school_id": 7})
	ctrl.SignIn(context.Background(), "amina@shule.test", "pwd")

	before := store.Snapshot()
	provider.EmitTokenRefreshed()
	after := store.Snapshot()

	if after.Tenant != before.Tenant || after.Phase != PhaseReady {
		t.Errorf("token refresh corrupted state: %+v", after)
	}
	if after.Principal == before.Principal {
		t.Error("expected a fresh principal snapshot, not an in-place patch")
	}
}

func TestSignUpPassesMetadataThrough(t *testing.T) {
	provider, store, ctrl, _ := setup(t)
	ctrl.Initialize(context.Background())

	metadata := map[string]interface{}{"school_id": 9, "display_name": "Neema"}
	res := ctrl.SignUp(context.Background(), "neema@shule.test", "pwd", metadata)
	if !res.OK {
		t.Fatalf("SignUp failed: %s", res.Err)
	}

	state := store.Snapshot()
	if state.Tenant != 9 {
		t.Errorf("tenant = %v, want 9 (resolved from the signup attribute bag)", state.Tenant)
	}
	if got := state.Principal.Metadata["display_name"]; got != "Neema" {
		t.Errorf("metadata not passed through unmodified: %v", state.Principal.Metadata)
	}

	sess, err := provider.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.User.Email != "neema@shule.test" {
		t.Errorf("provider session user = %q", sess.User.Email)
	}
}
