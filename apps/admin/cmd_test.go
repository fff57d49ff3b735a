package main

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/staff"
	inmemdb "github.com/easyspeak/console/storage/database/inmem"
)

var (
	orgRepo   org.Repository
	staffRepo staff.Repository
)

func setup(t *testing.T) *commandLine {
	t.Helper()
	db := inmemdb.New()
	orgRepo = inmemdb.NewOrgRepository(db)
	staffRepo = inmemdb.NewStaffRepository(db)

	return &commandLine{
		db:        &sqlx.DB{},
		orgRepo:   orgRepo,
		staffRepo: staffRepo,
	}
}

func createOrg(t *testing.T, name string, quota int) org.Organization {
	t.Helper()
	now := time.Now().UTC()
	o, err := orgRepo.CreateOrganization(context.Background(), org.Organization{
		ID:           uuid.New().String(),
		Name:         name,
		LicenseQuota: quota,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateOrganization() failed, %v", err)
	}
	return o
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version", "fix": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_createOrg(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no name", args: []string{"createorg"}, wantErr: errHelp},
		{name: "create", args: []string{"createorg", "-name", "Lakeside USD"}},
		{name: "create with quota", args: []string{"createorg", "-name", "Hillcrest USD", "-quota", "25"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	orgs, err := orgRepo.QueryAllOrganizations(context.Background())
	if err != nil {
		t.Fatalf("QueryAllOrganizations() failed, %v", err)
	}
	if len(orgs) != 2 {
		t.Errorf("expected 2 organizations, got %d", len(orgs))
	}
}

func Test_commandLine_addSuperAdmin(t *testing.T) {
	cli := setup(t)
	o := createOrg(t, "Lakeside USD", 10)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"addsuperadmin"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"addsuperadmin", "-email", "root@test.io", "-org", o.ID}, wantErr: errHelp},
		{name: "org not found", args: []string{"addsuperadmin", "-email", "root@test.io", "-org", "lol"}, extra: extra{pwd: "s3cret"}, wantErr: org.ErrNotFound},
		{name: "create", args: []string{"addsuperadmin", "-email", "Root@Test.io", "-name", "Root", "-org", o.ID}, extra: extra{pwd: "s3cret"}},
		{name: "promote existing", args: []string{"addsuperadmin", "-email", "root@test.io", "-org", o.ID}, extra: extra{pwd: "n3wpass"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	p, err := staffRepo.GetProfileByEmail(context.Background(), "root@test.io")
	if err != nil {
		t.Fatalf("GetProfileByEmail() failed, %v", err)
	}
	if p.Role != access.RoleSuperAdmin {
		t.Errorf("Role = %s, want %s", p.Role, access.RoleSuperAdmin)
	}
	if p.Name != "Root" {
		t.Errorf("Name = %s, want Root", p.Name)
	}
	if err := p.CheckPassword("n3wpass"); err != nil {
		t.Error("password was not updated on promotion")
	}
}

func Test_commandLine_setQuota(t *testing.T) {
	cli := setup(t)
	o := createOrg(t, "Lakeside USD", 10)

	tests := []cliTest{
		{name: "no org", args: []string{"setquota"}, wantErr: errHelp},
		{name: "org not found", args: []string{"setquota", "-org", "lol", "-quota", "5"}, wantErr: org.ErrNotFound},
		{name: "set", args: []string{"setquota", "-org", o.ID, "-quota", "5"}},
		{name: "unlimited", args: []string{"setquota", "-org", o.ID, "-quota", "0"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	refreshed, err := orgRepo.GetOrganizationByID(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("GetOrganizationByID() failed, %v", err)
	}
	if refreshed.LicenseQuota != 0 {
		t.Errorf("LicenseQuota = %d, want 0", refreshed.LicenseQuota)
	}
}
