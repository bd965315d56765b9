package dummydb

import (
	"context"
	"time"

	"github.com/shule-app/shule/core/school"
	"github.com/shule-app/shule/core/session"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	repo.db.school.Lock()
	defer repo.db.school.Unlock()

	repo.db.school.pk++
	sch.ID = session.TenantID(repo.db.school.pk)
	now := time.Now().UTC()
	sch.CreatedAt, sch.UpdatedAt = now, now
	cp := sch
	repo.db.school.table[repo.db.school.pk] = &cp
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id session.TenantID) (school.School, error) {
	repo.db.school.RLock()
	defer repo.db.school.RUnlock()

	if sch, ok := repo.db.school.table[int64(id)]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByName(ctx context.Context, name string) (school.School, error) {
	repo.db.school.RLock()
	defer repo.db.school.RUnlock()

	for _, sch := range repo.db.school.table {
		if sch.Name == name {
			return *sch, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryAllSchools(ctx context.Context) ([]school.School, error) {
	repo.db.school.RLock()
	defer repo.db.school.RUnlock()

	schools := make([]school.School, 0, len(repo.db.school.table))
	for _, sch := range repo.db.school.table {
		schools = append(schools, *sch)
	}
	return schools, nil
}
