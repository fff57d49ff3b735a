package main

import (
	"context"
	"fmt"
	"time"
)

func (cli *commandLine) setQuota(orgID string, quota int) error {
	o, err := cli.orgRepo.UpdateLicenseQuota(context.Background(), orgID, quota, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("set license quota of %q to %d\n", o.Name, o.LicenseQuota)
	return nil
}
