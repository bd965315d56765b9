// Package pgrepos implements the repositories on postgres via sqlx and
// squirrel.
package pgrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	localidp "github.com/shule-app/shule/identity/local"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type userRepository struct {
	db *sqlx.DB
}

var _ localidp.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) localidp.Repository {
	return &userRepository{db: db}
}

// userRow maps the app_user table; metadata travels as raw JSONB.
type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	Metadata     []byte    `db:"metadata"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	LastLogin    time.Time `db:"last_login"`
}

func (r userRow) toUser() (localidp.User, error) {
	usr := localidp.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.UTC(),
	}
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &usr.Metadata); err != nil {
			return localidp.User{}, errors.Wrap(err, "decoding user metadata")
		}
	}
	return usr, nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr localidp.User) (localidp.User, error) {
	metadata, err := json.Marshal(usr.Metadata)
	if err != nil {
		return localidp.User{}, errors.Wrap(err, "encoding user metadata")
	}
	if usr.Metadata == nil {
		metadata = []byte("{}")
	}

	query, args, err := psql.Insert("app_user").
		Columns("id", "email", "password_hash", "metadata", "is_active", "created_at", "updated_at").
		Values(usr.ID, usr.Email, usr.PasswordHash, metadata, usr.IsActive, usr.CreatedAt, usr.UpdatedAt).
		ToSql()
	if err != nil {
		return localidp.User{}, err
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return localidp.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getBy(ctx context.Context, pred sq.Eq) (localidp.User, error) {
	query, args, err := psql.
		Select("id", "email", "password_hash", "metadata", "is_active", "created_at", "updated_at", "last_login").
		From("app_user").Where(pred).ToSql()
	if err != nil {
		return localidp.User{}, err
	}

	var row userRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return localidp.User{}, localidp.ErrUserNotFound
		}
		return localidp.User{}, errors.Wrap(err, "querying user")
	}
	return row.toUser()
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (localidp.User, error) {
	return repo.getBy(ctx, sq.Eq{"id": id})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (localidp.User, error) {
	return repo.getBy(ctx, sq.Eq{"email": email})
}

func (repo *userRepository) MergeUserMetadata(ctx context.Context, id string, metadata map[string]interface{}) (localidp.User, error) {
	patch, err := json.Marshal(metadata)
	if err != nil {
		return localidp.User{}, errors.Wrap(err, "encoding metadata patch")
	}

	// JSONB || merges at the top level, matching the provider contract
	query, args, err := psql.Update("app_user").
		Set("metadata", sq.Expr("metadata || ?::jsonb", patch)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return localidp.User{}, err
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return localidp.User{}, errors.Wrap(err, "merging metadata")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return localidp.User{}, localidp.ErrUserNotFound
	}
	return repo.GetUserByID(ctx, id)
}

func (repo *userRepository) SetUserPassword(ctx context.Context, id string, hash []byte) error {
	query, args, err := psql.Update("app_user").
		Set("password_hash", hash).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "setting password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return localidp.ErrUserNotFound
	}
	return nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) (localidp.User, error) {
	query, args, err := psql.Update("app_user").
		Set("last_login", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return localidp.User{}, err
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return localidp.User{}, errors.Wrap(err, "setting last login")
	}
	return repo.GetUserByID(ctx, id)
}
