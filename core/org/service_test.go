package org_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/school"
	"github.com/easyspeak/console/core/student"
	inmemdb "github.com/easyspeak/console/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                         {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Warn(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{})        {}

type recordedEntry struct {
	action string
	orgID  string
}

type recorderStub struct {
	entries []recordedEntry
}

func (r *recorderStub) Record(_ context.Context, action, _, orgID string, _ audit.Actor) {
	r.entries = append(r.entries, recordedEntry{action: action, orgID: orgID})
}

type fixture struct {
	svc         *org.Service
	db          *inmemdb.DB
	rec         *recorderStub
	target      org.Organization
	admin       org.Actor
	super       org.Actor
	studentRepo student.Repository
	schoolRepo  school.Repository
	auditRepo   audit.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.New()
	repo := inmemdb.NewOrgRepository(db)
	rec := &recorderStub{}
	conf := &core.Config{AuditPruneBatchSize: 2} // small batches to exercise the loop
	svc := org.NewService(repo, inmemdb.NewWipeRepository(db), rec, conf, nopLogger{})

	now := time.Now().UTC()
	target, err := repo.CreateOrganization(context.Background(), org.Organization{
		ID: uuid.New().String(), Name: "Lakeside USD", LicenseQuota: 10, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateOrganization() failed, %v", err)
	}

	return &fixture{
		svc:    svc,
		db:     db,
		rec:    rec,
		target: target,
		admin: org.Actor{
			UID: "admin-uid", Email: "admin@lakeside.edu",
			Role: access.RoleDistrictAdmin, OrganizationID: target.ID,
		},
		super: org.Actor{
			UID: "root-uid", Email: "root@easyspeak.io",
			Role: access.RoleSuperAdmin, OrganizationID: "hq", IsSuperAdmin: true,
		},
		studentRepo: inmemdb.NewStudentRepository(db),
		schoolRepo:  inmemdb.NewSchoolRepository(db),
		auditRepo:   inmemdb.NewAuditRepository(db),
	}
}

func (f *fixture) seed(t *testing.T, students, schools, auditEntries int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < students; i++ {
		_, err := f.studentRepo.CreateStudent(ctx, student.Student{
			ID: uuid.New().String(), Name: fmt.Sprintf("Student %d", i),
			OrganizationID: f.target.ID, SchoolID: "schA", CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateStudent() failed, %v", err)
		}
	}
	for i := 0; i < schools; i++ {
		_, err := f.schoolRepo.CreateSchool(ctx, school.School{
			ID: uuid.New().String(), Name: fmt.Sprintf("School %d", i),
			OrganizationID: f.target.ID, CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateSchool() failed, %v", err)
		}
	}
	for i := 0; i < auditEntries; i++ {
		err := f.auditRepo.CreateEntry(ctx, audit.Entry{
			ID: uuid.New().String(), Action: audit.ActionCreateStudent,
			OrganizationID: f.target.ID, CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreateEntry() failed, %v", err)
		}
	}
}

func TestService_SetQuota(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.SetQuota(ctx, f.admin, f.target.ID, org.UpdateQuota{LicenseQuota: 5}); err != org.ErrPermissionDenied {
		t.Errorf("district admin SetQuota() error = %v, want %v", err, org.ErrPermissionDenied)
	}

	o, err := f.svc.SetQuota(ctx, f.super, f.target.ID, org.UpdateQuota{LicenseQuota: 5})
	if err != nil {
		t.Fatalf("SetQuota() failed, %v", err)
	}
	if o.LicenseQuota != 5 {
		t.Errorf("LicenseQuota = %d, want 5", o.LicenseQuota)
	}
}

func TestService_RequestWipe(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := org.Actor{UID: "t-uid", Role: access.RoleTeacher, OrganizationID: f.target.ID}
	if _, err := f.svc.RequestWipe(ctx, teacher, f.target.ID); err != org.ErrPermissionDenied {
		t.Errorf("teacher RequestWipe() error = %v, want %v", err, org.ErrPermissionDenied)
	}

	otherAdmin := org.Actor{UID: "o-uid", Role: access.RoleDistrictAdmin, OrganizationID: "org2"}
	if _, err := f.svc.RequestWipe(ctx, otherAdmin, f.target.ID); err != org.ErrPermissionDenied {
		t.Errorf("cross-org admin RequestWipe() error = %v, want %v", err, org.ErrPermissionDenied)
	}

	// self-wipe: no numeric code
	ch, err := f.svc.RequestWipe(ctx, f.admin, f.target.ID)
	if err != nil {
		t.Fatalf("RequestWipe() failed, %v", err)
	}
	if ch.OrgName != f.target.Name || ch.Token == "" {
		t.Errorf("challenge = %+v", ch)
	}
	if ch.ConfirmCode != "" {
		t.Error("same-org wipes must not carry a confirm code")
	}

	// cross-tenant super-admin wipe: numeric code required
	ch, err = f.svc.RequestWipe(ctx, f.super, f.target.ID)
	if err != nil {
		t.Fatalf("RequestWipe() failed, %v", err)
	}
	if len(ch.ConfirmCode) != 6 {
		t.Errorf("ConfirmCode = %q, want 6 digits", ch.ConfirmCode)
	}
}

func TestService_ConfirmWipe_guards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.ConfirmWipe(ctx, f.admin, "ghost-token", f.target.Name, ""); err != org.ErrChallengeExpired {
		t.Errorf("ConfirmWipe() with unknown token error = %v, want %v", err, org.ErrChallengeExpired)
	}

	// wrong typed name burns the token
	ch, err := f.svc.RequestWipe(ctx, f.admin, f.target.ID)
	if err != nil {
		t.Fatalf("RequestWipe() failed, %v", err)
	}
	if _, err = f.svc.ConfirmWipe(ctx, f.admin, ch.Token, "Hillcrest USD", ""); err != org.ErrConfirmationFailed {
		t.Errorf("ConfirmWipe() with wrong name error = %v, want %v", err, org.ErrConfirmationFailed)
	}
	if _, err = f.svc.ConfirmWipe(ctx, f.admin, ch.Token, f.target.Name, ""); err != org.ErrChallengeExpired {
		t.Errorf("reused token error = %v, want %v", err, org.ErrChallengeExpired)
	}

	// only the requesting actor may confirm
	ch, err = f.svc.RequestWipe(ctx, f.admin, f.target.ID)
	if err != nil {
		t.Fatalf("RequestWipe() failed, %v", err)
	}
	if _, err = f.svc.ConfirmWipe(ctx, f.super, ch.Token, f.target.Name, ""); err != org.ErrPermissionDenied {
		t.Errorf("ConfirmWipe() by another actor error = %v, want %v", err, org.ErrPermissionDenied)
	}

	// cross-tenant: the numeric code must match
	ch, err = f.svc.RequestWipe(ctx, f.super, f.target.ID)
	if err != nil {
		t.Fatalf("RequestWipe() failed, %v", err)
	}
	if _, err = f.svc.ConfirmWipe(ctx, f.super, ch.Token, f.target.Name, "000000"); err != org.ErrConfirmationFailed {
		t.Errorf("ConfirmWipe() with wrong code error = %v, want %v", err, org.ErrConfirmationFailed)
	}

	// guards must leave the tenant untouched
	if _, err = f.svc.GetByID(ctx, f.target.ID); err != nil {
		t.Error("failed confirmations must not delete the organization")
	}
}

func TestService_ConfirmWipe(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// 5 students against a batch size of 2 exercises the deletion loop
	f.seed(t, 5, 2, 3)

	ch, err := f.svc.RequestWipe(ctx, f.super, f.target.ID)
	if err != nil {
		t.Fatalf("RequestWipe() failed, %v", err)
	}
	report, err := f.svc.ConfirmWipe(ctx, f.super, ch.Token, f.target.Name, ch.ConfirmCode)
	if err != nil {
		t.Fatalf("ConfirmWipe() failed, %v", err)
	}

	if report.Students != 5 || report.Schools != 2 || report.AuditEntries != 3 {
		t.Errorf("report = %+v, want 5 students / 2 schools / 3 audit entries", report)
	}
	if _, err = f.svc.GetByID(ctx, f.target.ID); err != org.ErrNotFound {
		t.Errorf("GetByID() after wipe error = %v, want %v", err, org.ErrNotFound)
	}
	students, err := f.studentRepo.QueryStudentsByOrg(ctx, f.target.ID)
	if err != nil || len(students) != 0 {
		t.Errorf("students remaining after wipe: %d", len(students))
	}

	// the wipe itself is recorded in the acting admin's own ledger, which
	// survives the target's destruction
	found := false
	for _, e := range f.rec.entries {
		if e.action == audit.ActionSuperAdminDeleteDistrict {
			found = true
			if e.orgID != f.super.OrganizationID {
				t.Errorf("wipe audit recorded to org %s, want the acting admin's %s", e.orgID, f.super.OrganizationID)
			}
		}
	}
	if !found {
		t.Error("the wipe was not audited")
	}
}
