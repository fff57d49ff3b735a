package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/staff"
)

// createOrg registers a new district directly against the store. Used to
// bootstrap the first tenant before any super admin exists.
func (cli *commandLine) createOrg(name string, quota int) error {
	ctx := context.Background()
	now := time.Now().UTC()

	o, err := cli.orgRepo.CreateOrganization(ctx, org.Organization{
		ID:           uuid.New().String(),
		Name:         core.CleanString(name),
		LicenseQuota: quota,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created organization %q: %s\n", o.Name, o.ID)
	return nil
}

// addSuperAdmin creates a super-admin profile, or promotes an existing
// profile with the given email. The password enables local login.
func (cli *commandLine) addSuperAdmin(email, name, orgID, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	now := time.Now().UTC()

	if _, err := cli.orgRepo.GetOrganizationByID(ctx, orgID); err != nil {
		return err
	}

	p, err := cli.staffRepo.GetProfileByEmail(ctx, email)
	if err != nil {
		if err != staff.ErrNotFound {
			return err
		}
		p = staff.Profile{
			UID:       uuid.New().String(),
			Email:     email,
			CreatedAt: now,
		}
	}
	if name != "" {
		p.Name = name
	}
	p.Role = access.RoleSuperAdmin
	p.OrganizationID = orgID
	p.SchoolScope = access.AllSchools()
	p.UpdatedAt = now
	if err := p.SetPassword(pwd); err != nil {
		return err
	}

	if p.CreatedAt.Equal(now) {
		_, err = cli.staffRepo.CreateProfile(ctx, p)
	} else {
		_, err = cli.staffRepo.UpdateProfile(ctx, p)
	}
	return err
}
