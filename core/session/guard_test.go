package session

import (
	"testing"

	"github.com/shule-app/shule/identity"
)

func TestGuardRequireTenant(t *testing.T) {
	principal := &identity.Principal{ID: "u1"}
	tests := []struct {
		name    string
		state   State
		want    TenantID
		wantErr error
	}{
		{name: "unresolved", state: State{Phase: PhaseUnresolved}, wantErr: ErrTenantUnavailable},
		{name: "empty", state: State{Phase: PhaseEmpty}, wantErr: ErrTenantUnavailable},
		{name: "authenticated without tenant", state: State{Principal: principal, Phase: PhaseNoTenant}, wantErr: ErrTenantUnavailable},
		{name: "ready", state: State{Principal: principal, Tenant: 7, Phase: PhaseReady}, want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewStore()
			st.set(tt.state)
			guard := NewGuard(st)

			got, err := guard.RequireTenant()
			if err != tt.wantErr {
				t.Fatalf("RequireTenant() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("RequireTenant() = %v, want %v", got, tt.want)
			}

			gotOrNone, ok := guard.TenantOrNone()
			if ok != (tt.wantErr == nil) || gotOrNone != tt.want {
				t.Errorf("TenantOrNone() = (%v, %v)", gotOrNone, ok)
			}
		})
	}
}
