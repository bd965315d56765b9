package pgrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shule-app/shule/core/school"
	"github.com/shule-app/shule/core/session"
)

type schoolRepository struct {
	db *sqlx.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

type schoolRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r schoolRow) toSchool() school.School {
	return school.School{
		ID:        session.TenantID(r.ID),
		Name:      r.Name,
		Address:   r.Address,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	query, args, err := psql.Insert("school").
		Columns("name", "address").
		Values(sch.Name, sch.Address).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return school.School{}, err
	}

	var row schoolRow
	if err = repo.db.QueryRowContext(ctx, query, args...).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	sch.ID = session.TenantID(row.ID)
	sch.CreatedAt = row.CreatedAt.UTC()
	sch.UpdatedAt = row.UpdatedAt.UTC()
	return sch, nil
}

func (repo *schoolRepository) getBy(ctx context.Context, pred sq.Eq) (school.School, error) {
	query, args, err := psql.Select("id", "name", "address", "created_at", "updated_at").
		From("school").Where(pred).ToSql()
	if err != nil {
		return school.School{}, err
	}

	var row schoolRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return school.School{}, school.ErrNotFound
		}
		return school.School{}, errors.Wrap(err, "querying school")
	}
	return row.toSchool(), nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id session.TenantID) (school.School, error) {
	return repo.getBy(ctx, sq.Eq{"id": id})
}

func (repo *schoolRepository) GetSchoolByName(ctx context.Context, name string) (school.School, error) {
	return repo.getBy(ctx, sq.Eq{"name": name})
}

func (repo *schoolRepository) QueryAllSchools(ctx context.Context) ([]school.School, error) {
	query, _, err := psql.Select("id", "name", "address", "created_at", "updated_at").
		From("school").OrderBy("name").ToSql()
	if err != nil {
		return nil, err
	}

	var rows []schoolRow
	if err = repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, len(rows))
	for i, row := range rows {
		schools[i] = row.toSchool()
	}
	return schools, nil
}
