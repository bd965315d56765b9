package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/shule-app/shule/core/school"
	localidp "github.com/shule-app/shule/identity/local"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sqlx.DB
	usrRepo    localidp.Repository
	schoolRepo school.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                  - run database migrations (goose commands)")
	fmt.Println("  addschool -name NAME [-address ADDR]    - register a school")
	fmt.Println("  adduser -email EMAIL [-school ID]       - create or update an account; password prompted")
	fmt.Println("  assignschool -email EMAIL -school ID    - stamp a school onto an account")
	fmt.Println("  resetpassword -email EMAIL              - reset an account's password; password prompted")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addSchoolCmd := flag.NewFlagSet("addschool", flag.ExitOnError)
	addSchoolName := addSchoolCmd.String("name", "", "The school's name.")
	addSchoolAddr := addSchoolCmd.String("address", "", "The school's address.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The account's email. The password will be prompted next.")
	addUserSchool := addUserCmd.Int64("school", 0, "Optional school id to stamp onto the account.")

	assignSchoolCmd := flag.NewFlagSet("assignschool", flag.ExitOnError)
	assignSchoolEmail := assignSchoolCmd.String("email", "", "The account's email.")
	assignSchoolID := assignSchoolCmd.Int64("school", 0, "The school id.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addschool":
		if err := addSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSchoolName == "" {
			addSchoolCmd.Usage()
			return errHelp
		}
		return cli.addSchool(*addSchoolName, *addSchoolAddr)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, pwd, *addUserSchool)
	case "assignschool":
		if err := assignSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignSchoolEmail == "" || *assignSchoolID <= 0 {
			assignSchoolCmd.Usage()
			return errHelp
		}
		return cli.assignSchool(*assignSchoolEmail, *assignSchoolID)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
