package student

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/staff"
)

var (
	// errors
	ErrNotFound           = errors.New("student not found")
	ErrQuotaExceeded      = errors.New("no licenses available")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNotLicensed        = errors.New("student has no active license")
	ErrNotLinked          = errors.New("student has no linked device")
	ErrChallengeExpired   = errors.New("confirmation challenge not found or expired")
	ErrConfirmationFailed = errors.New("confirmation did not match; the student was not deleted")

	nowFunc = time.Now // mockable

	deletionChallengeTTL = 10 * time.Minute
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		QueryStudentsByOrg(ctx context.Context, orgID string) ([]Student, error)
		CountActiveLicenses(ctx context.Context, orgID string) (int, error)
		UpdateStudent(ctx context.Context, s Student) (Student, error)
		// AllocateLicense grants a license only if the organization still has
		// one available, atomically against concurrent grants. Returns
		// ErrQuotaExceeded when the re-check fails.
		AllocateLicense(ctx context.Context, id string, at time.Time) (Student, error)
		RevokeLicense(ctx context.Context, id string, at time.Time) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
	}

	// QuotaDirectory exposes the tenant's license quota; satisfied by the
	// org service. Quota 0 means unlimited.
	QuotaDirectory interface {
		GetLicenseQuota(ctx context.Context, orgID string) (int, error)
	}

	deletionChallenge struct {
		studentID   string
		studentName string
		actorUID    string
		issuedAt    time.Time
	}

	Service struct {
		repo     Repository
		quotas   QuotaDirectory
		auditSvc audit.Recorder

		mu         sync.Mutex
		challenges map[string]deletionChallenge
	}
)

func NewService(repo Repository, quotas QuotaDirectory, auditSvc audit.Recorder) *Service {
	return &Service{
		repo:       repo,
		quotas:     quotas,
		auditSvc:   auditSvc,
		challenges: make(map[string]deletionChallenge),
	}
}

// CanAllocate reports whether an organization with the given quota and
// active-license count can hand out one more license.
func CanAllocate(quota, active int) bool {
	return quota == 0 || active < quota
}

// Create always creates the record; the license is best-effort. When the
// quota is exhausted the student is created unlicensed and the returned
// HasLicense tells the caller which outcome occurred.
func (svc *Service) Create(ctx context.Context, actor *staff.Profile, ns NewStudent) (Student, error) {
	if !actor.CanSee(ns.SchoolID) {
		return Student{}, ErrPermissionDenied
	}

	quota, err := svc.quotas.GetLicenseQuota(ctx, actor.OrganizationID)
	if err != nil {
		return Student{}, pkgerrors.Wrap(err, "reading license quota")
	}
	active, err := svc.repo.CountActiveLicenses(ctx, actor.OrganizationID)
	if err != nil {
		return Student{}, pkgerrors.Wrap(err, "counting active licenses")
	}

	now := nowFunc().UTC()
	s := Student{
		ID:             uuid.New().String(),
		Name:           ns.Name,
		OrganizationID: actor.OrganizationID,
		SchoolID:       ns.SchoolID,
		Pages:          []Page{},
		HasLicense:     CanAllocate(quota, active),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s, err = svc.repo.CreateStudent(ctx, s)
	if err != nil {
		return Student{}, pkgerrors.Wrap(err, "creating student")
	}

	details := "Created student " + s.Name
	if !s.HasLicense {
		details += " (unlicensed: quota exhausted)"
	}
	svc.auditSvc.Record(ctx, audit.ActionCreateStudent, details, s.OrganizationID, actorOf(actor))
	return s, nil
}

func (svc *Service) GetByID(ctx context.Context, actor *staff.Profile, id string) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err := svc.ensureCanMutate(actor, &s); err != nil {
		// reads and writes share the same scoping rule
		return Student{}, ErrNotFound
	}
	return s, nil
}

// QueryVisible returns the actor's org students narrowed to the actor's scope.
func (svc *Service) QueryVisible(ctx context.Context, actor *staff.Profile) ([]Student, error) {
	all, err := svc.repo.QueryStudentsByOrg(ctx, actor.OrganizationID)
	if err != nil {
		return nil, err
	}
	return Visible(actor, all), nil
}

// Visible filters students down to those the profile's school scope covers.
// Admin roles see every student in the organization.
func Visible(p *staff.Profile, all []Student) []Student {
	if p.IsAdmin() {
		return all
	}
	visible := make([]Student, 0, len(all))
	for _, s := range all {
		if p.SchoolScope.Contains(s.SchoolID) {
			visible = append(visible, s)
		}
	}
	return visible
}

// ToggleLicense flips the student's license. Revoking always succeeds;
// granting re-checks availability at call time inside the store so two
// concurrent grants cannot both win the last license.
func (svc *Service) ToggleLicense(ctx context.Context, actor *staff.Profile, id string) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err = svc.ensureCanMutate(actor, &s); err != nil {
		return Student{}, err
	}

	now := nowFunc().UTC()
	var details string
	if s.HasLicense {
		s, err = svc.repo.RevokeLicense(ctx, s.ID, now)
		details = "Revoked license from " + s.Name
	} else {
		s, err = svc.repo.AllocateLicense(ctx, s.ID, now)
		details = "Granted license to " + s.Name
	}
	if err != nil {
		return Student{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionToggleLicense, details, s.OrganizationID, actorOf(actor))
	return s, nil
}

// MoveSchool reassigns the student to another school. The actor's scope must
// cover both the current and the target school.
func (svc *Service) MoveSchool(ctx context.Context, actor *staff.Profile, id string, us UpdateSchool) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err = svc.ensureCanMutate(actor, &s); err != nil {
		return Student{}, err
	}
	if !actor.CanSee(us.SchoolID) {
		return Student{}, ErrPermissionDenied
	}

	s.SchoolID = us.SchoolID
	s.UpdatedAt = nowFunc().UTC()
	s, err = svc.repo.UpdateStudent(ctx, s)
	if err != nil {
		return Student{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionUpdateStudentSchool,
		"Moved student "+s.Name+" to another school", s.OrganizationID, actorOf(actor))
	return s, nil
}

// SetPIN (re)sets the PIN gating the device's hidden admin menu. The PIN is
// stored hashed; there is no way to read it back.
func (svc *Service) SetPIN(ctx context.Context, actor *staff.Profile, id string, up UpdatePIN) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err = svc.ensureCanMutate(actor, &s); err != nil {
		return Student{}, err
	}
	if err = s.SetAdminPIN(up.PIN); err != nil {
		return Student{}, pkgerrors.Wrap(err, "hashing admin PIN")
	}

	s.UpdatedAt = nowFunc().UTC()
	s, err = svc.repo.UpdateStudent(ctx, s)
	if err != nil {
		return Student{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionUpdateDevicePIN,
		"Updated device admin PIN for "+s.Name, s.OrganizationID, actorOf(actor))
	return s, nil
}

// PushPage delivers a page to the student's device. Requires an active
// license and a linked device.
func (svc *Service) PushPage(ctx context.Context, actor *staff.Profile, id string, page Page) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err = svc.ensureCanMutate(actor, &s); err != nil {
		return Student{}, err
	}
	if !s.HasLicense {
		return Student{}, ErrNotLicensed
	}
	if !s.IsLinked() {
		return Student{}, ErrNotLinked
	}

	page.Type = "managed"
	if page.ID == "" {
		page.ID = uuid.New().String()
	}
	// replace an existing managed copy rather than stacking duplicates
	replaced := false
	for i := range s.Pages {
		if s.Pages[i].ID == page.ID {
			s.Pages[i] = page
			replaced = true
			break
		}
	}
	if !replaced {
		s.Pages = append(s.Pages, page)
	}

	now := nowFunc().UTC()
	s.LastSync = null.TimeFrom(now)
	s.UpdatedAt = now
	s, err = svc.repo.UpdateStudent(ctx, s)
	if err != nil {
		return Student{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionPushPage,
		fmt.Sprintf("Pushed page %q to %s", page.Label, s.Name), s.OrganizationID, actorOf(actor))
	return s, nil
}

// RemovePage takes a page off the student's device.
func (svc *Service) RemovePage(ctx context.Context, actor *staff.Profile, id, pageID string) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if err = svc.ensureCanMutate(actor, &s); err != nil {
		return Student{}, err
	}

	var removed *Page
	kept := s.Pages[:0]
	for i := range s.Pages {
		if s.Pages[i].ID == pageID {
			p := s.Pages[i]
			removed = &p
			continue
		}
		kept = append(kept, s.Pages[i])
	}
	if removed == nil {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "page_id", Error: "page not found on this device"})
	}
	s.Pages = kept

	now := nowFunc().UTC()
	s.LastSync = null.TimeFrom(now)
	s.UpdatedAt = now
	s, err = svc.repo.UpdateStudent(ctx, s)
	if err != nil {
		return Student{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionRemovePage,
		fmt.Sprintf("Removed page %q from %s", removed.Label, s.Name), s.OrganizationID, actorOf(actor))
	return s, nil
}

// RequestDeletion starts the delete handshake: the caller must echo the
// token and the student's exact name in ConfirmDeletion. Admin roles only.
func (svc *Service) RequestDeletion(ctx context.Context, actor *staff.Profile, id string) (DeletionChallenge, error) {
	if !actor.IsAdmin() {
		return DeletionChallenge{}, ErrPermissionDenied
	}
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return DeletionChallenge{}, err
	}
	if err = svc.ensureCanMutate(actor, &s); err != nil {
		return DeletionChallenge{}, err
	}

	token := uuid.New().String()
	svc.mu.Lock()
	svc.challenges[token] = deletionChallenge{
		studentID:   s.ID,
		studentName: s.Name,
		actorUID:    actor.UID,
		issuedAt:    nowFunc().UTC(),
	}
	svc.mu.Unlock()

	return DeletionChallenge{Token: token, StudentID: s.ID, StudentName: s.Name}, nil
}

// ConfirmDeletion answers a pending challenge; the typed name must match the
// student's name exactly. Deleting an unlinked, licensed student frees the
// license implicitly (the count query only sees existing rows).
func (svc *Service) ConfirmDeletion(ctx context.Context, actor *staff.Profile, token, typedName string) error {
	svc.mu.Lock()
	ch, ok := svc.challenges[token]
	if ok {
		delete(svc.challenges, token) // single use, match or not
	}
	svc.mu.Unlock()

	if !ok || nowFunc().UTC().Sub(ch.issuedAt) > deletionChallengeTTL {
		return ErrChallengeExpired
	}
	if ch.actorUID != actor.UID {
		return ErrPermissionDenied
	}
	if typedName != ch.studentName {
		return ErrConfirmationFailed
	}

	s, err := svc.repo.GetStudentByID(ctx, ch.studentID)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteStudent(ctx, s.ID); err != nil {
		return pkgerrors.Wrap(err, "deleting student")
	}

	svc.auditSvc.Record(ctx, audit.ActionDeleteStudent,
		"Deleted student "+s.Name, s.OrganizationID, actorOf(actor))
	return nil
}

// BindDevice and UnbindDevice are the pairing protocol's write path into the
// roster; gating and auditing live with the caller.

func (svc *Service) BindDevice(ctx context.Context, id, deviceName string, at time.Time) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	s.Device = null.StringFrom(deviceName)
	s.Online = true
	s.LastSync = null.TimeFrom(at)
	s.UpdatedAt = at
	return svc.repo.UpdateStudent(ctx, s)
}

func (svc *Service) UnbindDevice(ctx context.Context, id string, at time.Time) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	s.Device = null.String{}
	s.Online = false
	s.LastSync = null.Time{}
	s.UpdatedAt = at
	return svc.repo.UpdateStudent(ctx, s)
}

// ensureCanMutate applies the same scoping rule that gates reads: same org
// (super admins excepted), and for teachers the school must be in scope.
func (svc *Service) ensureCanMutate(actor *staff.Profile, s *Student) error {
	if actor.IsSuperAdmin() {
		return nil
	}
	if actor.OrganizationID != s.OrganizationID {
		return ErrPermissionDenied
	}
	if !actor.CanSee(s.SchoolID) {
		return ErrPermissionDenied
	}
	return nil
}

func actorOf(p *staff.Profile) audit.Actor {
	return audit.Actor{Email: p.Email, Role: p.Role}
}
