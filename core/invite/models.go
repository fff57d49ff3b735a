package invite

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
)

// Statuses. An invite is consumed exactly once: pending -> accepted.
// There is no expired status; pending invites live until redeemed or revoked.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
)

// Invite is a single-use, email-bound capability grant that bootstraps a new
// profile with a fixed role and school scope.
type Invite struct {
	ID             string             `json:"id"`
	Email          string             `json:"email"` // lowercased
	OrganizationID string             `json:"organization_id"`
	Role           string             `json:"role"`
	Code           string             `json:"code"` // uppercase alphanumeric
	InvitedBy      string             `json:"invited_by"`
	SchoolScope    access.SchoolScope `json:"schools"`
	Status         string             `json:"status"`
	AcceptedAt     null.Time          `json:"accepted_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"` // UTC
}

func (inv Invite) IsPending() bool { return inv.Status == StatusPending }

// Inviter identifies the acting staff member; kept minimal so this package
// does not depend on the staff package.
type Inviter struct {
	Email          string
	Role           string
	OrganizationID string
}

// NewInvite contains information needed to issue a new invite.
type NewInvite struct {
	Email       string             `json:"email" validate:"required,email"`
	Role        string             `json:"role"`
	SchoolScope access.SchoolScope `json:"schools"`

	// OrganizationID is only honored for super-admin issuance; everyone else
	// issues into their own organization.
	OrganizationID string `json:"organization_id"`
}

func (ni *NewInvite) Validate(validate Validator) error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	ni.OrganizationID = core.CleanString(ni.OrganizationID)
	return validate.Struct(ni)
}

// Validator is the minimal surface of *validator.Validate the DTOs need.
type Validator interface {
	Struct(s interface{}) error
}
