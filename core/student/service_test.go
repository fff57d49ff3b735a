package student_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/staff"
	"github.com/easyspeak/console/core/student"
	inmemdb "github.com/easyspeak/console/storage/database/inmem"
)

type recorderStub struct {
	actions []string
}

func (r *recorderStub) Record(_ context.Context, action, _, _ string, _ audit.Actor) {
	r.actions = append(r.actions, action)
}

type fixture struct {
	svc     *student.Service
	repo    student.Repository
	orgRepo org.Repository
	rec     *recorderStub
	orgID   string
}

type quotaDir struct {
	orgs org.Repository
}

func (q quotaDir) GetLicenseQuota(ctx context.Context, orgID string) (int, error) {
	o, err := q.orgs.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return o.LicenseQuota, nil
}

func setup(t *testing.T, quota int) *fixture {
	t.Helper()
	db := inmemdb.New()
	orgRepo := inmemdb.NewOrgRepository(db)

	now := time.Now().UTC()
	o, err := orgRepo.CreateOrganization(context.Background(), org.Organization{
		ID: uuid.New().String(), Name: "Lakeside USD", LicenseQuota: quota, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateOrganization() failed, %v", err)
	}

	repo := inmemdb.NewStudentRepository(db)
	rec := &recorderStub{}
	return &fixture{
		svc:     student.NewService(repo, quotaDir{orgRepo}, rec),
		repo:    repo,
		orgRepo: orgRepo,
		rec:     rec,
		orgID:   o.ID,
	}
}

func (f *fixture) admin() *staff.Profile {
	return &staff.Profile{
		UID: "admin-uid", Email: "admin@lakeside.edu", Role: access.RoleDistrictAdmin,
		OrganizationID: f.orgID, SchoolScope: access.AllSchools(),
	}
}

func (f *fixture) teacher(scope access.SchoolScope) *staff.Profile {
	return &staff.Profile{
		UID: "teacher-uid", Email: "t@lakeside.edu", Role: access.RoleTeacher,
		OrganizationID: f.orgID, SchoolScope: scope,
	}
}

func (f *fixture) create(t *testing.T, name, schoolID string) student.Student {
	t.Helper()
	s, err := f.svc.Create(context.Background(), f.admin(), student.NewStudent{Name: name, SchoolID: schoolID})
	if err != nil {
		t.Fatalf("Create(%s) failed, %v", name, err)
	}
	return s
}

func TestService_licenseLifecycle(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	admin := f.admin()

	a := f.create(t, "Ava", "schA")
	b := f.create(t, "Ben", "schA")
	if !a.HasLicense || !b.HasLicense {
		t.Fatal("first two students should receive the available licenses")
	}

	// quota exhausted: the student is still created, just unlicensed
	c := f.create(t, "Cal", "schA")
	if c.HasLicense {
		t.Fatal("third student must be created unlicensed when the quota is exhausted")
	}

	// granting past the quota fails
	if _, err := f.svc.ToggleLicense(ctx, admin, c.ID); err != student.ErrQuotaExceeded {
		t.Errorf("ToggleLicense() error = %v, want %v", err, student.ErrQuotaExceeded)
	}

	// freeing a license makes the grant succeed
	if _, err := f.svc.ToggleLicense(ctx, admin, b.ID); err != nil {
		t.Fatalf("revoking ToggleLicense() failed, %v", err)
	}
	c, err := f.svc.ToggleLicense(ctx, admin, c.ID)
	if err != nil {
		t.Fatalf("granting ToggleLicense() failed, %v", err)
	}
	if !c.HasLicense {
		t.Error("license was not granted")
	}
	active, err := f.repo.CountActiveLicenses(ctx, f.orgID)
	if err != nil {
		t.Fatalf("CountActiveLicenses() failed, %v", err)
	}
	if active != 2 {
		t.Errorf("active licenses = %d, want 2", active)
	}

	// quota 0 means unlimited
	unlimited := setup(t, 0)
	for _, name := range []string{"D", "E", "F", "G"} {
		if s := unlimited.create(t, name, "schA"); !s.HasLicense {
			t.Errorf("student %s should be licensed under an unlimited quota", name)
		}
	}
}

func TestService_quotaShrinkTolerated(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()
	admin := f.admin()

	a := f.create(t, "Ava", "schA")
	f.create(t, "Ben", "schA")
	f.create(t, "Cal", "schA")

	// shrink below usage: nothing is force-revoked
	if _, err := f.orgRepo.UpdateLicenseQuota(ctx, f.orgID, 1, time.Now().UTC()); err != nil {
		t.Fatalf("UpdateLicenseQuota() failed, %v", err)
	}
	students, err := f.svc.QueryVisible(ctx, admin)
	if err != nil {
		t.Fatalf("QueryVisible() failed, %v", err)
	}
	for _, s := range students {
		if !s.HasLicense {
			t.Error("over-subscription must not revoke existing licenses")
		}
	}

	// but the next grant re-checks against the new quota
	a, err = f.svc.ToggleLicense(ctx, admin, a.ID) // revoke
	if err != nil {
		t.Fatalf("ToggleLicense() failed, %v", err)
	}
	if _, err = f.svc.ToggleLicense(ctx, admin, a.ID); err != student.ErrQuotaExceeded {
		t.Errorf("ToggleLicense() error = %v, want %v", err, student.ErrQuotaExceeded)
	}
}

func TestService_scopeFilter(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	a := f.create(t, "Ava", "schA")
	b := f.create(t, "Ben", "schB")

	scoped := f.teacher(access.Schools("schA"))
	visible, err := f.svc.QueryVisible(ctx, scoped)
	if err != nil {
		t.Fatalf("QueryVisible() failed, %v", err)
	}
	if len(visible) != 1 || visible[0].ID != a.ID {
		t.Errorf("teacher scoped to schA must see exactly Ava, got %d students", len(visible))
	}

	// reads outside the scope 404 rather than leak existence
	if _, err = f.svc.GetByID(ctx, scoped, b.ID); err != student.ErrNotFound {
		t.Errorf("GetByID() out of scope error = %v, want %v", err, student.ErrNotFound)
	}
	// writes outside the scope are denied
	if _, err = f.svc.ToggleLicense(ctx, scoped, b.ID); err != student.ErrPermissionDenied {
		t.Errorf("ToggleLicense() out of scope error = %v, want %v", err, student.ErrPermissionDenied)
	}

	// admins see everything in the org
	all, err := f.svc.QueryVisible(ctx, f.admin())
	if err != nil {
		t.Fatalf("QueryVisible() failed, %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin must see 2 students, got %d", len(all))
	}
}

func TestService_MoveSchool(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	s := f.create(t, "Ava", "schA")

	// the actor's scope must cover the target school too
	scoped := f.teacher(access.Schools("schA"))
	if _, err := f.svc.MoveSchool(ctx, scoped, s.ID, student.UpdateSchool{SchoolID: "schB"}); err != student.ErrPermissionDenied {
		t.Errorf("MoveSchool() to out-of-scope school error = %v, want %v", err, student.ErrPermissionDenied)
	}

	both := f.teacher(access.Schools("schA", "schB"))
	moved, err := f.svc.MoveSchool(ctx, both, s.ID, student.UpdateSchool{SchoolID: "schB"})
	if err != nil {
		t.Fatalf("MoveSchool() failed, %v", err)
	}
	if moved.SchoolID != "schB" {
		t.Errorf("SchoolID = %s, want schB", moved.SchoolID)
	}
}

func TestService_pages(t *testing.T) {
	f := setup(t, 1)
	ctx := context.Background()
	admin := f.admin()

	licensed := f.create(t, "Ava", "schA")
	unlicensed := f.create(t, "Ben", "schA")

	tiles := json.RawMessage(`[{"label":"yes"},{"label":"no"}]`)
	page := student.Page{Label: "Core Words", Tiles: tiles}

	if _, err := f.svc.PushPage(ctx, admin, unlicensed.ID, page); err != student.ErrNotLicensed {
		t.Errorf("PushPage() to unlicensed student error = %v, want %v", err, student.ErrNotLicensed)
	}
	if _, err := f.svc.PushPage(ctx, admin, licensed.ID, page); err != student.ErrNotLinked {
		t.Errorf("PushPage() to unlinked student error = %v, want %v", err, student.ErrNotLinked)
	}

	if _, err := f.svc.BindDevice(ctx, licensed.ID, "iPad 9", time.Now().UTC()); err != nil {
		t.Fatalf("BindDevice() failed, %v", err)
	}

	s, err := f.svc.PushPage(ctx, admin, licensed.ID, page)
	if err != nil {
		t.Fatalf("PushPage() failed, %v", err)
	}
	if len(s.Pages) != 1 || s.Pages[0].Type != "managed" {
		t.Fatalf("Pages = %+v, want one managed page", s.Pages)
	}
	if !s.LastSync.Valid {
		t.Error("push must advance the sync timestamp")
	}

	// pushing the same page replaces, never stacks
	update := s.Pages[0]
	update.Label = "Core Words v2"
	s, err = f.svc.PushPage(ctx, admin, licensed.ID, update)
	if err != nil {
		t.Fatalf("PushPage() failed, %v", err)
	}
	if len(s.Pages) != 1 || s.Pages[0].Label != "Core Words v2" {
		t.Errorf("Pages = %+v, want the single replaced page", s.Pages)
	}

	if _, err = f.svc.RemovePage(ctx, admin, licensed.ID, "ghost"); err == nil {
		t.Error("RemovePage() of an absent page should fail")
	}
	s, err = f.svc.RemovePage(ctx, admin, licensed.ID, s.Pages[0].ID)
	if err != nil {
		t.Fatalf("RemovePage() failed, %v", err)
	}
	if len(s.Pages) != 0 {
		t.Errorf("Pages = %+v, want none", s.Pages)
	}
}

func TestService_SetPIN(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()

	s := f.create(t, "Ava", "schA")
	s, err := f.svc.SetPIN(ctx, f.admin(), s.ID, student.UpdatePIN{PIN: "4321"})
	if err != nil {
		t.Fatalf("SetPIN() failed, %v", err)
	}
	if err = s.CheckAdminPIN("4321"); err != nil {
		t.Error("stored PIN does not verify")
	}
	if err = s.CheckAdminPIN("0000"); err == nil {
		t.Error("wrong PIN must not verify")
	}
}

func TestService_deletionHandshake(t *testing.T) {
	f := setup(t, 0)
	ctx := context.Background()
	admin := f.admin()

	s := f.create(t, "Ava", "schA")

	// admins only
	if _, err := f.svc.RequestDeletion(ctx, f.teacher(access.AllSchools()), s.ID); err != student.ErrPermissionDenied {
		t.Errorf("teacher RequestDeletion() error = %v, want %v", err, student.ErrPermissionDenied)
	}

	// wrong typed name burns the token
	ch, err := f.svc.RequestDeletion(ctx, admin, s.ID)
	if err != nil {
		t.Fatalf("RequestDeletion() failed, %v", err)
	}
	if err = f.svc.ConfirmDeletion(ctx, admin, ch.Token, "Eva"); err != student.ErrConfirmationFailed {
		t.Errorf("ConfirmDeletion() with wrong name error = %v, want %v", err, student.ErrConfirmationFailed)
	}
	if err = f.svc.ConfirmDeletion(ctx, admin, ch.Token, "Ava"); err != student.ErrChallengeExpired {
		t.Errorf("reused token error = %v, want %v", err, student.ErrChallengeExpired)
	}

	// only the requesting admin may confirm
	ch, err = f.svc.RequestDeletion(ctx, admin, s.ID)
	if err != nil {
		t.Fatalf("RequestDeletion() failed, %v", err)
	}
	other := f.admin()
	other.UID = "other-admin"
	if err = f.svc.ConfirmDeletion(ctx, other, ch.Token, "Ava"); err != student.ErrPermissionDenied {
		t.Errorf("ConfirmDeletion() by another actor error = %v, want %v", err, student.ErrPermissionDenied)
	}

	// the happy path
	ch, err = f.svc.RequestDeletion(ctx, admin, s.ID)
	if err != nil {
		t.Fatalf("RequestDeletion() failed, %v", err)
	}
	if err = f.svc.ConfirmDeletion(ctx, admin, ch.Token, "Ava"); err != nil {
		t.Fatalf("ConfirmDeletion() failed, %v", err)
	}
	if _, err = f.svc.GetByID(ctx, admin, s.ID); err != student.ErrNotFound {
		t.Error("student must be gone after confirmed deletion")
	}
}

func TestCanAllocate(t *testing.T) {
	tests := []struct {
		name          string
		quota, active int
		want          bool
	}{
		{name: "unlimited", quota: 0, active: 1000, want: true},
		{name: "available", quota: 5, active: 4, want: true},
		{name: "exhausted", quota: 5, active: 5, want: false},
		{name: "over-subscribed", quota: 3, active: 5, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := student.CanAllocate(tt.quota, tt.active); got != tt.want {
				t.Errorf("CanAllocate(%d, %d) = %v, want %v", tt.quota, tt.active, got, tt.want)
			}
		})
	}
}
