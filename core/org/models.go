package org

import (
	"time"

	"github.com/easyspeak/console/core"
)

// Organization is the tenant: every scoped collection is partitioned by its
// ID. LicenseQuota == 0 means unlimited.
type Organization struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LicenseQuota int       `json:"license_quota"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

type NewOrganization struct {
	Name         string `json:"name" validate:"required"`
	LicenseQuota int    `json:"license_quota" validate:"min=0"`
}

func (no *NewOrganization) Validate(validate Validator) error {
	no.Name = core.CleanString(no.Name)
	return validate.Struct(no)
}

// UpdateQuota deliberately carries no lower bound against current usage:
// setting the quota below the active license count is a tolerated
// over-subscribed state (existing licenses are never force-revoked).
type UpdateQuota struct {
	LicenseQuota int `json:"license_quota" validate:"min=0"`
}

// WipeChallenge is the first half of the tenant-wipe handshake. The caller
// must echo the token, the organization's exact name, and (for cross-tenant
// super-admin wipes) the one-time numeric code.
type WipeChallenge struct {
	Token       string `json:"token"`
	OrgID       string `json:"organization_id"`
	OrgName     string `json:"organization_name"`
	ConfirmCode string `json:"confirm_code,omitempty"`
}

// WipeReport counts what a completed wipe actually deleted. Partial batch
// failures surface the counts accumulated so far.
type WipeReport struct {
	Students      int `json:"students"`
	Schools       int `json:"schools"`
	LibraryPages  int `json:"library_pages"`
	Profiles      int `json:"profiles"`
	Invites       int `json:"invites"`
	Notifications int `json:"notifications"`
	AuditEntries  int `json:"audit_entries"`
}

// Validator is the minimal surface of *validator.Validate the DTOs need.
type Validator interface {
	Struct(s interface{}) error
}
