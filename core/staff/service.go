package staff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/invite"
)

var (
	// errors
	ErrNotFound         = errors.New("staff member not found")
	ErrEmailExists      = errors.New("a staff member with this email already exists")
	ErrNotInvited       = errors.New("access denied: this email has not been invited")
	ErrPermissionDenied = errors.New("permission denied")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string) error
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfileByUID(ctx context.Context, uid string) (Profile, error)
		GetProfileByEmail(ctx context.Context, email string) (Profile, error)
		QueryProfilesByOrg(ctx context.Context, orgID string) ([]Profile, error)
		QueryAllProfiles(ctx context.Context) ([]Profile, error)
		UpdateProfile(ctx context.Context, p Profile) (Profile, error)
		SetLastLogin(ctx context.Context, uid string, at time.Time) error
		DeleteProfile(ctx context.Context, uid string) error
	}

	// InviteLedger is the slice of the invite service the resolver consumes.
	InviteLedger interface {
		FindPendingByEmail(ctx context.Context, email string) (invite.Invite, error)
		RedeemByCode(ctx context.Context, code, email string) (invite.Invite, error)
		Accept(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		invites  InviteLedger
		auditSvc audit.Recorder
		logger   core.Logger
	}
)

func NewService(repo Repository, invites InviteLedger, auditSvc audit.Recorder, logger core.Logger) *Service {
	return &Service{repo: repo, invites: invites, auditSvc: auditSvc, logger: logger}
}

// Resolve maps an authenticated principal to its tenant-scoped profile.
// Unknown principals are admitted only when a pending invite matches their
// email (the SSO path); otherwise the session must be terminated. Any
// persistence error here also fails closed: a half-created profile must
// never be treated as valid.
func (svc *Service) Resolve(ctx context.Context, uid, email string) (Profile, error) {
	p, err := svc.repo.GetProfileByUID(ctx, uid)
	if err == nil {
		return p, nil
	}
	if err != ErrNotFound {
		return Profile{}, pkgerrors.Wrap(err, "resolving profile")
	}

	inv, err := svc.invites.FindPendingByEmail(ctx, email)
	if err != nil {
		if err == invite.ErrNotFound {
			return Profile{}, ErrNotInvited
		}
		return Profile{}, pkgerrors.Wrap(err, "looking up pending invite")
	}

	// claim the invite before creating the profile: exactly-once redemption
	if err = svc.invites.Accept(ctx, inv.ID); err != nil {
		if err == invite.ErrNotFound { // raced with a concurrent redemption
			return Profile{}, ErrNotInvited
		}
		return Profile{}, pkgerrors.Wrap(err, "accepting invite")
	}

	return svc.createFromInvite(ctx, uid, email, "", inv, nil)
}

// RegisterWithCode is the manual registration path. The code must belong to
// a pending invite whose email matches the supplied one; the profile is
// created with a password for local authentication.
func (svc *Service) RegisterWithCode(ctx context.Context, rs RegisterStaff) (Profile, error) {
	if err := svc.repo.CheckEmailUniqueness(ctx, rs.Email); err != nil {
		if err == ErrEmailExists {
			return Profile{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return Profile{}, err
	}

	inv, err := svc.invites.RedeemByCode(ctx, rs.Code, rs.Email)
	if err != nil {
		return Profile{}, err
	}

	return svc.createFromInvite(ctx, uuid.New().String(), rs.Email, rs.Name, inv, func(p *Profile) error {
		return p.SetPassword(rs.Password)
	})
}

func (svc *Service) createFromInvite(ctx context.Context, uid, email, name string, inv invite.Invite, setup func(*Profile) error) (Profile, error) {
	now := nowFunc().UTC()
	p := Profile{
		UID:            uid,
		Email:          core.CleanString(email, true /* lower */),
		Name:           name,
		Role:           inv.Role,
		OrganizationID: inv.OrganizationID,
		SchoolScope:    inv.SchoolScope, // copied verbatim; scope is fixed at issuance
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if setup != nil {
		if err := setup(&p); err != nil {
			return Profile{}, err
		}
	}

	p, err := svc.repo.CreateProfile(ctx, p)
	if err != nil {
		// the invite is already claimed; surface loudly so the registration
		// is retried by an admin reissuing the invite
		svc.logger.Error("staff: profile creation failed after invite claim "+inv.ID, err)
		return Profile{}, pkgerrors.Wrap(err, "creating profile")
	}

	svc.auditSvc.Record(ctx, audit.ActionUserRegistered, "Registered "+p.Email+" as "+p.Role,
		p.OrganizationID, audit.Actor{Email: p.Email, Role: p.Role})
	return p, nil
}

// Authenticate checks the local password of a manually registered profile.
func (svc *Service) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	p, err := svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return Profile{}, err
	}
	if len(p.PasswordHash) == 0 {
		return Profile{}, ErrNotFound // SSO-only profile; no local credential
	}
	if err = p.CheckPassword(password); err != nil {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (svc *Service) GetByUID(ctx context.Context, uid string) (Profile, error) {
	return svc.repo.GetProfileByUID(ctx, uid)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Profile, error) {
	return svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) QueryByOrg(ctx context.Context, orgID string) ([]Profile, error) {
	return svc.repo.QueryProfilesByOrg(ctx, orgID)
}

// QueryAll is the super-admin global view.
func (svc *Service) QueryAll(ctx context.Context, actor Profile) ([]Profile, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrPermissionDenied
	}
	return svc.repo.QueryAllProfiles(ctx)
}

func (svc *Service) SetLastLogin(ctx context.Context, p Profile) (Profile, error) {
	now := nowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, p.UID, now); err != nil {
		return Profile{}, err
	}
	p.LastLogin.SetValid(now)
	return p, nil
}

// UpdateAccess changes a teacher's school scope. District admins may only
// edit teachers inside their own organization.
func (svc *Service) UpdateAccess(ctx context.Context, actor Profile, uid string, ua UpdateAccess) (Profile, error) {
	if !actor.IsAdmin() {
		return Profile{}, ErrPermissionDenied
	}

	target, err := svc.repo.GetProfileByUID(ctx, uid)
	if err != nil {
		return Profile{}, err
	}
	if !actor.IsSuperAdmin() && target.OrganizationID != actor.OrganizationID {
		return Profile{}, ErrPermissionDenied
	}
	if !target.IsTeacher() {
		return Profile{}, core.NewValidationError(nil,
			core.FieldError{Field: "uid", Error: "school scope only applies to teachers"})
	}

	target.SchoolScope = ua.SchoolScope
	target.UpdatedAt = nowFunc().UTC()
	target, err = svc.repo.UpdateProfile(ctx, target)
	if err != nil {
		return Profile{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionUpdateTeacherAccess, "Updated school access for "+target.Email,
		target.OrganizationID, audit.Actor{Email: actor.Email, Role: actor.Role})
	return target, nil
}

// UpdateSystemUser reassigns any profile's role and organization. Super admin only.
func (svc *Service) UpdateSystemUser(ctx context.Context, actor Profile, uid string, us UpdateSystemUser) (Profile, error) {
	if !actor.IsSuperAdmin() {
		return Profile{}, ErrPermissionDenied
	}

	target, err := svc.repo.GetProfileByUID(ctx, uid)
	if err != nil {
		return Profile{}, err
	}

	target.Role = us.Role
	target.OrganizationID = us.OrganizationID
	if !target.IsTeacher() {
		target.SchoolScope = access.AllSchools()
	}
	target.UpdatedAt = nowFunc().UTC()
	target, err = svc.repo.UpdateProfile(ctx, target)
	if err != nil {
		return Profile{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionUpdateSystemUser,
		fmt.Sprintf("Reassigned %s to role=%s org=%s", target.Email, target.Role, target.OrganizationID),
		target.OrganizationID, audit.Actor{Email: actor.Email, Role: actor.Role})
	return target, nil
}

// Remove deletes a staff profile, revoking access immediately. Admin only;
// actors cannot remove themselves.
func (svc *Service) Remove(ctx context.Context, actor Profile, uid string) error {
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	if actor.UID == uid {
		return ErrPermissionDenied // no self-removal
	}

	target, err := svc.repo.GetProfileByUID(ctx, uid)
	if err != nil {
		return err
	}
	if !actor.IsSuperAdmin() && target.OrganizationID != actor.OrganizationID {
		return ErrPermissionDenied
	}

	if err = svc.repo.DeleteProfile(ctx, uid); err != nil {
		return err
	}

	svc.auditSvc.Record(ctx, audit.ActionRemoveTeacher, "Removed "+target.Email,
		target.OrganizationID, audit.Actor{Email: actor.Email, Role: actor.Role})
	return nil
}
