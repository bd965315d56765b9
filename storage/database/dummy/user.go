package dummydb

import (
	"context"
	"time"

	localidp "github.com/shule-app/shule/identity/local"
)

type userRepository struct {
	db *DB
}

var _ localidp.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) localidp.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr localidp.User) (localidp.User, error) {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	repo.db.user.table[usr.ID] = cloneUser(usr)
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (localidp.User, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	if usr, ok := repo.db.user.table[id]; ok {
		return *cloneUser(*usr), nil
	}
	return localidp.User{}, localidp.ErrUserNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (localidp.User, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	for _, usr := range repo.db.user.table {
		if usr.Email == email {
			return *cloneUser(*usr), nil
		}
	}
	return localidp.User{}, localidp.ErrUserNotFound
}

func (repo *userRepository) MergeUserMetadata(ctx context.Context, id string, metadata map[string]interface{}) (localidp.User, error) {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	usr, ok := repo.db.user.table[id]
	if !ok {
		return localidp.User{}, localidp.ErrUserNotFound
	}
	if usr.Metadata == nil {
		usr.Metadata = make(map[string]interface{}, len(metadata))
	}
	for k, v := range metadata {
		usr.Metadata[k] = v
	}
	usr.UpdatedAt = time.Now().UTC()
	return *cloneUser(*usr), nil
}

func (repo *userRepository) SetUserPassword(ctx context.Context, id string, hash []byte) error {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	usr, ok := repo.db.user.table[id]
	if !ok {
		return localidp.ErrUserNotFound
	}
	usr.PasswordHash = append([]byte(nil), hash...)
	usr.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, id string, at time.Time) (localidp.User, error) {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	usr, ok := repo.db.user.table[id]
	if !ok {
		return localidp.User{}, localidp.ErrUserNotFound
	}
	usr.LastLogin = at
	return *cloneUser(*usr), nil
}

func cloneUser(usr localidp.User) *localidp.User {
	cp := usr
	cp.PasswordHash = append([]byte(nil), usr.PasswordHash...)
	if usr.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(usr.Metadata))
		for k, v := range usr.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
