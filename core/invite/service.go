package invite

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
)

var (
	// errors
	ErrNotFound        = errors.New("invalid or expired invite code")
	ErrAlreadyAccepted = errors.New("invite has already been accepted")
	ErrPermissionDenied = errors.New("permission denied")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateInvite(ctx context.Context, inv Invite) (Invite, error)
		GetInviteByID(ctx context.Context, id string) (Invite, error)
		// GetPendingInviteByEmail returns the oldest pending invite for the
		// email (creation order is the tie-break for legacy duplicates).
		GetPendingInviteByEmail(ctx context.Context, email string) (Invite, error)
		// GetPendingInviteByCode returns the oldest pending invite carrying the code.
		GetPendingInviteByCode(ctx context.Context, code string) (Invite, error)
		QueryPendingInvitesByOrg(ctx context.Context, orgID string) ([]Invite, error)
		HasPendingInvite(ctx context.Context, email string) (bool, error)
		// AcceptInvite flips pending -> accepted. The update must be
		// conditional on the invite still being pending; returns ErrNotFound
		// when it no longer is (exactly-once redemption).
		AcceptInvite(ctx context.Context, id string, at time.Time) error
		// DeletePendingInvite removes a pending invite; ErrNotFound when the
		// invite is absent or already accepted (accepted history is immutable).
		DeletePendingInvite(ctx context.Context, id string) error
	}

	// OrgDirectory resolves organization names for invite emails.
	OrgDirectory interface {
		GetOrganizationName(ctx context.Context, orgID string) (string, error)
	}

	Service struct {
		repo     Repository
		orgs     OrgDirectory
		mailSvc  core.EmailService
		auditSvc audit.Recorder
		conf     *core.Config
	}
)

func NewService(repo Repository, orgs OrgDirectory, mailSvc core.EmailService, auditSvc audit.Recorder, conf *core.Config) *Service {
	return &Service{repo: repo, orgs: orgs, mailSvc: mailSvc, auditSvc: auditSvc, conf: conf}
}

// Issue creates a pending invite and emails the code to the invitee.
// District admins may only invite teachers into their own organization;
// super admins invite district admins (scope forced to all schools).
func (svc *Service) Issue(ctx context.Context, inviter Inviter, ni NewInvite) (Invite, error) {
	inv := Invite{
		ID:        uuid.New().String(),
		Email:     ni.Email,
		InvitedBy: inviter.Email,
		Status:    StatusPending,
		CreatedAt: nowFunc().UTC(),
	}

	switch inviter.Role {
	case access.RoleDistrictAdmin:
		inv.Role = access.RoleTeacher
		inv.OrganizationID = inviter.OrganizationID
		inv.SchoolScope = ni.SchoolScope
		if inv.SchoolScope.IsEmpty() {
			return Invite{}, core.NewValidationError(nil,
				core.FieldError{Field: "schools", Error: "select at least one school or all schools"})
		}
	case access.RoleSuperAdmin:
		inv.Role = access.RoleDistrictAdmin
		inv.OrganizationID = ni.OrganizationID
		inv.SchoolScope = access.AllSchools() // district admins see every school
		if inv.OrganizationID == "" {
			return Invite{}, core.NewValidationError(nil,
				core.FieldError{Field: "organization_id", Error: "this field is required"})
		}
	default:
		return Invite{}, ErrPermissionDenied
	}

	// at most one authoritative pending invite per email
	exists, err := svc.repo.HasPendingInvite(ctx, inv.Email)
	if err != nil {
		return Invite{}, pkgerrors.Wrap(err, "checking pending invites")
	}
	if exists {
		return Invite{}, core.NewValidationError(nil,
			core.FieldError{Field: "email", Error: "a pending invite already exists for this email"})
	}

	inv.Code = core.RandomCode(svc.conf.InviteCodeLength)

	inv, err = svc.repo.CreateInvite(ctx, inv)
	if err != nil {
		return Invite{}, pkgerrors.Wrap(err, "creating invite")
	}

	svc.sendInviteEmail(ctx, inv)

	action := audit.ActionInviteTeacher
	if inv.Role == access.RoleDistrictAdmin {
		action = audit.ActionInviteDistrictAdmin
	}
	svc.auditSvc.Record(ctx, action, fmt.Sprintf("Invited %s as %s", inv.Email, inv.Role),
		inv.OrganizationID, audit.Actor{Email: inviter.Email, Role: inviter.Role})
	return inv, nil
}

// RedeemByCode finds the pending invite for a normalized code and claims it.
// The email must match the invite's case-insensitively. Claiming is
// conditional on the invite still being pending, so a second redemption of
// the same code fails with ErrNotFound.
func (svc *Service) RedeemByCode(ctx context.Context, code, email string) (Invite, error) {
	code = core.CleanString(code)
	if code == "" {
		return Invite{}, ErrNotFound
	}
	// codes are minted uppercase; accept any casing from the user
	inv, err := svc.FindPendingByCode(ctx, code)
	if err != nil {
		return Invite{}, err
	}

	if inv.Email != core.CleanString(email, true /* lower */) {
		return Invite{}, core.NewValidationError(
			fmt.Errorf("this code is registered to %s; please use that email address", inv.Email))
	}

	if err = svc.Accept(ctx, inv.ID); err != nil {
		return Invite{}, err
	}
	inv.Status = StatusAccepted
	return inv, nil
}

// FindPendingByEmail supports the SSO resolution path (no code involved).
func (svc *Service) FindPendingByEmail(ctx context.Context, email string) (Invite, error) {
	return svc.repo.GetPendingInviteByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) FindPendingByCode(ctx context.Context, code string) (Invite, error) {
	return svc.repo.GetPendingInviteByCode(ctx, strings.ToUpper(core.CleanString(code)))
}

// Accept marks the invite accepted; exactly-once via the repository's
// conditional update.
func (svc *Service) Accept(ctx context.Context, id string) error {
	return svc.repo.AcceptInvite(ctx, id, nowFunc().UTC())
}

func (svc *Service) QueryPendingByOrg(ctx context.Context, orgID string) ([]Invite, error) {
	return svc.repo.QueryPendingInvitesByOrg(ctx, orgID)
}

// Revoke deletes a pending invite. Accepted invites are history and cannot
// be revoked. Only the invite's own organization (or a super admin) may
// revoke it.
func (svc *Service) Revoke(ctx context.Context, actor Inviter, id string) error {
	inv, err := svc.repo.GetInviteByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != access.RoleSuperAdmin && inv.OrganizationID != actor.OrganizationID {
		return ErrPermissionDenied
	}
	if !inv.IsPending() {
		return ErrAlreadyAccepted
	}
	if err = svc.repo.DeletePendingInvite(ctx, id); err != nil {
		return err
	}
	svc.auditSvc.Record(ctx, audit.ActionCancelInvite, "Cancelled invite for "+inv.Email,
		inv.OrganizationID, audit.Actor{Email: actor.Email, Role: actor.Role})
	return nil
}

func (svc *Service) sendInviteEmail(ctx context.Context, inv Invite) {
	orgName, err := svc.orgs.GetOrganizationName(ctx, inv.OrganizationID)
	if err != nil {
		orgName = "your district" // email still goes out with the code
	}
	roleName := "Teacher"
	if inv.Role == access.RoleDistrictAdmin {
		roleName = "District Admin"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      "You have been invited to " + orgName,
		TemplateName: "invite",
		TemplateData: struct {
			OrganizationName string
			RoleName         string
			Code             string
		}{orgName, roleName, inv.Code},
	})
}
