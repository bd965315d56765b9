// Package cache provides the tenant-scoped query cache. Keys are namespaced
// per tenant; Clear drops everything at once, which the session controller
// invokes on sign-out so one school's cached rows can never survive into the
// next user's session.
package cache

import (
	"context"
	"errors"

	"github.com/shule-app/shule/core/session"
)

// ErrMiss is returned on cache misses.
var ErrMiss = errors.New("cache miss")

type QueryCache interface {
	Get(ctx context.Context, tenant session.TenantID, key string) ([]byte, error)
	Set(ctx context.Context, tenant session.TenantID, key string, value []byte) error
	// ClearTenant drops every entry belonging to one tenant.
	ClearTenant(ctx context.Context, tenant session.TenantID) error
	// Clear drops every entry for every tenant.
	Clear(ctx context.Context) error
}
