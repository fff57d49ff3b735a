package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/staff"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	orgRepo   org.Repository
	staffRepo staff.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                            - run database migrations (up, down, status, ...)")
	fmt.Println("  createorg -name NAME [-quota N]                   - register a new district (quota 0 = unlimited)")
	fmt.Println("  addsuperadmin -email EMAIL -name NAME -org ORGID  - create or promote a super admin; password prompted next")
	fmt.Println("  setquota -org ORGID -quota N                      - set a district's license quota")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createOrgCmd := flag.NewFlagSet("createorg", flag.ExitOnError)
	createOrgName := createOrgCmd.String("name", "", "The district's display name.")
	createOrgQuota := createOrgCmd.Int("quota", 0, "License quota. 0 means unlimited.")

	addAdminCmd := flag.NewFlagSet("addsuperadmin", flag.ExitOnError)
	addAdminEmail := addAdminCmd.String("email", "", "The admin's email. The password will be prompted next.")
	addAdminName := addAdminCmd.String("name", "", "The admin's display name.")
	addAdminOrg := addAdminCmd.String("org", "", "The organization the admin belongs to.")

	setQuotaCmd := flag.NewFlagSet("setquota", flag.ExitOnError)
	setQuotaOrg := setQuotaCmd.String("org", "", "The organization ID.")
	setQuotaN := setQuotaCmd.Int("quota", 0, "The new license quota. 0 means unlimited.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createorg":
		if err := createOrgCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createOrgName == "" {
			createOrgCmd.Usage()
			return errHelp
		}
		return cli.createOrg(*createOrgName, *createOrgQuota)

	case "addsuperadmin":
		if err := addAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAdminEmail == "" || *addAdminOrg == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addAdminCmd.Usage()
			return errHelp
		}
		return cli.addSuperAdmin(*addAdminEmail, *addAdminName, *addAdminOrg, string(pwd))

	case "setquota":
		if err := setQuotaCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setQuotaOrg == "" {
			setQuotaCmd.Usage()
			return errHelp
		}
		return cli.setQuota(*setQuotaOrg, *setQuotaN)

	default:
		cli.printUsage()
		return errHelp
	}
}
