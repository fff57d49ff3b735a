package org

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
)

var (
	// errors
	ErrNotFound          = errors.New("organization not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrChallengeExpired  = errors.New("confirmation challenge not found or expired")
	ErrConfirmationFailed = errors.New("confirmation did not match; the organization was not deleted")

	nowFunc = time.Now // mockable

	challengeTTL    = 10 * time.Minute
	confirmCodeLen  = 6
)

type (
	Repository interface {
		CreateOrganization(ctx context.Context, o Organization) (Organization, error)
		GetOrganizationByID(ctx context.Context, id string) (Organization, error)
		QueryAllOrganizations(ctx context.Context) ([]Organization, error)
		UpdateLicenseQuota(ctx context.Context, id string, quota int, at time.Time) (Organization, error)
		DeleteOrganization(ctx context.Context, id string) error
	}

	// WipeRepository deletes tenant-scoped rows in bounded batches. Each call
	// removes at most `limit` rows and returns how many actually went.
	WipeRepository interface {
		DeleteOrgStudents(ctx context.Context, orgID string, limit int) (int, error)
		DeleteOrgSchools(ctx context.Context, orgID string, limit int) (int, error)
		DeleteOrgLibraryPages(ctx context.Context, orgID string, limit int) (int, error)
		DeleteOrgProfiles(ctx context.Context, orgID string, limit int) (int, error)
		DeleteOrgInvites(ctx context.Context, orgID string, limit int) (int, error)
		DeleteOrgNotifications(ctx context.Context, orgID string, limit int) (int, error)
		DeleteOrgAuditLogs(ctx context.Context, orgID string, limit int) (int, error)
	}

	// Actor is the acting staff member; kept minimal so this package does not
	// depend on the staff package.
	Actor struct {
		UID            string
		Email          string
		Role           string
		OrganizationID string
		IsSuperAdmin   bool
	}

	wipeChallenge struct {
		orgID       string
		orgName     string
		confirmCode string // empty unless cross-tenant
		actorUID    string
		issuedAt    time.Time
	}

	Service struct {
		repo     Repository
		wipeRepo WipeRepository
		auditSvc audit.Recorder
		conf     *core.Config
		logger   core.Logger

		mu         sync.Mutex
		challenges map[string]wipeChallenge
	}
)

func NewService(repo Repository, wipeRepo WipeRepository, auditSvc audit.Recorder, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:       repo,
		wipeRepo:   wipeRepo,
		auditSvc:   auditSvc,
		conf:       conf,
		logger:     logger,
		challenges: make(map[string]wipeChallenge),
	}
}

// Create registers a new district. Super admin only.
func (svc *Service) Create(ctx context.Context, actor Actor, no NewOrganization) (Organization, error) {
	if !actor.IsSuperAdmin {
		return Organization{}, ErrPermissionDenied
	}

	now := nowFunc().UTC()
	o := Organization{
		ID:           uuid.New().String(),
		Name:         no.Name,
		LicenseQuota: no.LicenseQuota,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o, err := svc.repo.CreateOrganization(ctx, o)
	if err != nil {
		return Organization{}, pkgerrors.Wrap(err, "creating organization")
	}

	svc.auditSvc.Record(ctx, audit.ActionCreateDistrict, "Created district "+o.Name,
		o.ID, audit.Actor{Email: actor.Email, Role: actor.Role})
	return o, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Organization, error) {
	return svc.repo.GetOrganizationByID(ctx, id)
}

// GetOrganizationName satisfies the invite service's directory dependency.
func (svc *Service) GetOrganizationName(ctx context.Context, orgID string) (string, error) {
	o, err := svc.repo.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return "", err
	}
	return o.Name, nil
}

// GetLicenseQuota satisfies the student service's quota dependency.
func (svc *Service) GetLicenseQuota(ctx context.Context, orgID string) (int, error) {
	o, err := svc.repo.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return o.LicenseQuota, nil
}

// QueryAll is the super-admin global view.
func (svc *Service) QueryAll(ctx context.Context, actor Actor) ([]Organization, error) {
	if !actor.IsSuperAdmin {
		return nil, ErrPermissionDenied
	}
	return svc.repo.QueryAllOrganizations(ctx)
}

// SetQuota changes the license quota. No validation against current usage:
// over-subscription is tolerated until the next license toggle. Super admin only.
func (svc *Service) SetQuota(ctx context.Context, actor Actor, orgID string, uq UpdateQuota) (Organization, error) {
	if !actor.IsSuperAdmin {
		return Organization{}, ErrPermissionDenied
	}

	o, err := svc.repo.UpdateLicenseQuota(ctx, orgID, uq.LicenseQuota, nowFunc().UTC())
	if err != nil {
		return Organization{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionUpdateDistrictLicenses,
		fmt.Sprintf("Set license quota of %s to %d", o.Name, o.LicenseQuota),
		o.ID, audit.Actor{Email: actor.Email, Role: actor.Role})
	return o, nil
}

// RequestWipe starts the full-tenant-wipe handshake and returns the
// challenge the caller must answer in ConfirmWipe. Cross-tenant (super
// admin) wipes additionally carry a one-time numeric confirmation code.
func (svc *Service) RequestWipe(ctx context.Context, actor Actor, orgID string) (WipeChallenge, error) {
	// super admins may wipe any tenant; district admins only their own
	if !actor.IsSuperAdmin && !(actor.Role == access.RoleDistrictAdmin && actor.OrganizationID == orgID) {
		return WipeChallenge{}, ErrPermissionDenied
	}

	o, err := svc.repo.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return WipeChallenge{}, err
	}

	ch := wipeChallenge{
		orgID:    o.ID,
		orgName:  o.Name,
		actorUID: actor.UID,
		issuedAt: nowFunc().UTC(),
	}
	if actor.OrganizationID != o.ID { // cross-tenant: extra numeric code
		ch.confirmCode = core.RandomDigits(confirmCodeLen)
	}

	token := uuid.New().String()
	svc.mu.Lock()
	svc.challenges[token] = ch
	svc.mu.Unlock()

	return WipeChallenge{
		Token:       token,
		OrgID:       ch.orgID,
		OrgName:     ch.orgName,
		ConfirmCode: ch.confirmCode,
	}, nil
}

// ConfirmWipe answers a pending challenge and, when the typed organization
// name (and numeric code, when required) match exactly, irreversibly deletes
// every record scoped to the organization in batches, then the organization
// itself. The final audit entry is written BEFORE the target's own ledger is
// destroyed, attributed at the acting admin's level.
func (svc *Service) ConfirmWipe(ctx context.Context, actor Actor, token, typedName, typedCode string) (WipeReport, error) {
	svc.mu.Lock()
	ch, ok := svc.challenges[token]
	if ok {
		delete(svc.challenges, token) // single use, match or not
	}
	svc.mu.Unlock()

	if !ok || nowFunc().UTC().Sub(ch.issuedAt) > challengeTTL {
		return WipeReport{}, ErrChallengeExpired
	}
	if ch.actorUID != actor.UID {
		return WipeReport{}, ErrPermissionDenied
	}
	if typedName != ch.orgName {
		return WipeReport{}, ErrConfirmationFailed
	}
	if ch.confirmCode != "" && core.CleanString(typedCode) != ch.confirmCode {
		return WipeReport{}, ErrConfirmationFailed
	}

	// Ordering matters: record the deletion before destroying the target's
	// ledger. For cross-tenant wipes the entry lands in the acting admin's
	// own organization and survives; for a self-wipe it goes down with the
	// ship, which is the best that can be done.
	auditOrg := actor.OrganizationID
	if auditOrg == "" || auditOrg == ch.orgID {
		auditOrg = ch.orgID
	}
	svc.auditSvc.Record(ctx, audit.ActionSuperAdminDeleteDistrict,
		fmt.Sprintf("Deleted district %s (%s) and all scoped data", ch.orgName, ch.orgID),
		auditOrg, audit.Actor{Email: actor.Email, Role: actor.Role})

	var report WipeReport
	batch := svc.conf.AuditPruneBatchSize // same store cap applies to all batched deletions

	steps := []struct {
		name  string
		count *int
		fn    func(context.Context, string, int) (int, error)
	}{
		{"students", &report.Students, svc.wipeRepo.DeleteOrgStudents},
		{"schools", &report.Schools, svc.wipeRepo.DeleteOrgSchools},
		{"library pages", &report.LibraryPages, svc.wipeRepo.DeleteOrgLibraryPages},
		{"profiles", &report.Profiles, svc.wipeRepo.DeleteOrgProfiles},
		{"invites", &report.Invites, svc.wipeRepo.DeleteOrgInvites},
		{"notifications", &report.Notifications, svc.wipeRepo.DeleteOrgNotifications},
		{"audit entries", &report.AuditEntries, svc.wipeRepo.DeleteOrgAuditLogs},
	}
	for _, step := range steps {
		for {
			n, err := step.fn(ctx, ch.orgID, batch)
			*step.count += n
			if err != nil {
				// partial wipe is NOT success: report what went and stop
				return report, pkgerrors.Wrapf(err, "wiping %s of org %s", step.name, ch.orgID)
			}
			if n < batch {
				break
			}
		}
	}

	if err := svc.repo.DeleteOrganization(ctx, ch.orgID); err != nil {
		return report, pkgerrors.Wrap(err, "deleting organization record")
	}
	svc.logger.Info(fmt.Sprintf("org: wiped %s (%s) by %s", ch.orgName, ch.orgID, actor.Email))
	return report, nil
}
