// Package school holds the tenant roster: the schools themselves and the
// provisioning step that binds an account to one of them.
package school

import (
	"context"
	"errors"
	"time"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/session"
)

var (
	ErrNotFound   = errors.New("school not found")
	ErrNameExists = errors.New("a school with this name already exists")
)

// School is one tenant, the unit of data isolation.
type School struct {
	ID        session.TenantID `json:"id"`
	Name      string           `json:"name"`
	Address   string           `json:"address,omitempty"`
	CreatedAt time.Time        `json:"created_at"` // UTC
	UpdatedAt time.Time        `json:"updated_at"` // UTC
}

// NewSchool contains information needed to register a new School.
type NewSchool struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

func (ns *NewSchool) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.Address = core.CleanString(ns.Address)
	return core.Validate.Struct(ns)
}

type Repository interface {
	CreateSchool(ctx context.Context, sch School) (School, error)
	GetSchoolByID(ctx context.Context, id session.TenantID) (School, error)
	GetSchoolByName(ctx context.Context, name string) (School, error)
	QueryAllSchools(ctx context.Context) ([]School, error)
}

// Directory is the identity-provider-side hook that stamps a school id into
// an account's attribute bag.
type Directory interface {
	AssignSchool(ctx context.Context, email string, school session.TenantID) error
}
