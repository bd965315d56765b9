package school

import (
	"context"

	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/session"
)

type Service struct {
	repo      Repository
	directory Directory
}

func NewService(repo Repository, directory Directory) *Service {
	return &Service{repo: repo, directory: directory}
}

func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	if err := ns.Validate(); err != nil {
		return School{}, err
	}
	if _, err := svc.repo.GetSchoolByName(ctx, ns.Name); err == nil {
		return School{}, core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	} else if !errors.Is(err, ErrNotFound) {
		return School{}, err
	}
	return svc.repo.CreateSchool(ctx, School{Name: ns.Name, Address: ns.Address})
}

func (svc *Service) GetByID(ctx context.Context, id session.TenantID) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]School, error) {
	return svc.repo.QueryAllSchools(ctx)
}

// Provision binds an account to a school: the school must exist before its
// id is stamped into the account's attribute bag.
func (svc *Service) Provision(ctx context.Context, email string, id session.TenantID) error {
	if _, err := svc.repo.GetSchoolByID(ctx, id); err != nil {
		return err
	}
	return svc.directory.AssignSchool(ctx, email, id)
}
