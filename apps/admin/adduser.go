package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	localidp "github.com/shule-app/shule/identity/local"
)

// addUser updates or creates an account, optionally stamping a school id.
func (cli *commandLine) addUser(email, pwd string, schoolID int64) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, localidp.ErrUserNotFound) {
			return err
		}
		now := time.Now().UTC()
		usr = localidp.User{
			ID:        uuid.NewString(),
			Email:     email,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if usr, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
			return err
		}
	} else {
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if err = cli.usrRepo.SetUserPassword(ctx, usr.ID, usr.PasswordHash); err != nil {
			return err
		}
	}

	if schoolID > 0 {
		return cli.assignSchool(email, schoolID)
	}
	return nil
}
