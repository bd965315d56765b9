package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/shule-app/shule/core"
	"github.com/shule-app/shule/core/school"
)

func (cli *commandLine) addSchool(name, address string) error {
	ctx := context.Background()
	name = core.CleanString(name)

	if _, err := cli.schoolRepo.GetSchoolByName(ctx, name); err == nil {
		return school.ErrNameExists
	} else if !errors.Is(err, school.ErrNotFound) {
		return err
	}

	sch, err := cli.schoolRepo.CreateSchool(ctx, school.School{Name: name, Address: core.CleanString(address)})
	if err != nil {
		return err
	}
	fmt.Printf("school %q registered with id %d\n", sch.Name, sch.ID)
	return nil
}
