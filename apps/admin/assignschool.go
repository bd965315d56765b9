package main

import (
	"context"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/session"
)

// assignSchool stamps a school id onto an account's attribute bag. The school
// must exist: a typo here would otherwise strand the account on a tenant that
// does not resolve.
func (cli *commandLine) assignSchool(email string, schoolID int64) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	if _, err := cli.schoolRepo.GetSchoolByID(ctx, session.TenantID(schoolID)); err != nil {
		return err
	}
	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = cli.usrRepo.MergeUserMetadata(ctx, usr.ID, map[string]interface{}{"school_id": schoolID})
	return err
}
