package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/device"
	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/staff"
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

type recorderStub struct {
	actions []string
}

func (r *recorderStub) Record(_ context.Context, action, _, _ string, _ audit.Actor) {
	r.actions = append(r.actions, action)
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

type fixture struct {
	svc   *device.Service
	repo  device.Repository
	orgID string
	admin *staff.Profile
	s     student.Student
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := inmemdb.New()
	orgRepo := inmemdb.NewOrgRepository(db)

	now := time.Now().UTC()
	o, err := orgRepo.CreateOrganization(context.Background(), org.Organization{
		ID: uuid.New().String(), Name: "Lakeside USD", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateOrganization() failed, %v", err)
	}

	rec := &recorderStub{}
	studentSvc := student.NewService(inmemdb.NewStudentRepository(db), quotaDir{orgRepo}, rec)
	conf := &core.Config{PairingCodeLength: 10}
	repo := inmemdb.NewPairingRepository(db)
	svc := device.NewService(repo, studentSvc, rec, conf, nopLogger{})

	admin := &staff.Profile{
		UID: "admin-uid", Email: "admin@lakeside.edu", Role: access.RoleDistrictAdmin,
		OrganizationID: o.ID, SchoolScope: access.AllSchools(),
	}
	s, err := studentSvc.Create(context.Background(), admin, student.NewStudent{Name: "Ava", SchoolID: "schA"})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	return &fixture{svc: svc, repo: repo, orgID: o.ID, admin: admin, s: s}
}

func TestService_RegisterCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	pc, err := f.svc.RegisterCode(ctx, "")
	if err != nil {
		t.Fatalf("RegisterCode() failed, %v", err)
	}
	if pc.DeviceName != "AAC Device" {
		t.Errorf("DeviceName = %q, want the default", pc.DeviceName)
	}
	if len(pc.Code) != 10 {
		t.Errorf("Code length = %d, want 10", len(pc.Code))
	}
	if !pc.IsPending() {
		t.Errorf("Status = %s, want pending", pc.Status)
	}

	named, err := f.svc.RegisterCode(ctx, "  Ava's iPad  ")
	if err != nil {
		t.Fatalf("RegisterCode() failed, %v", err)
	}
	if named.DeviceName != "Ava's iPad" {
		t.Errorf("DeviceName = %q", named.DeviceName)
	}
}

func TestService_Link(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	pc, err := f.svc.RegisterCode(ctx, "Classroom iPad")
	if err != nil {
		t.Fatalf("RegisterCode() failed, %v", err)
	}

	// format gate before any lookup
	if _, err = f.svc.Link(ctx, f.admin, f.s.ID, "short"); err == nil {
		t.Error("Link() with a malformed code should fail")
	} else if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Link() error = %v, want a ValidationError", err)
	}

	// unknown code
	if _, err = f.svc.Link(ctx, f.admin, f.s.ID, "ZZZZZZZZZZ"); err != device.ErrNotFound {
		t.Errorf("Link() with unknown code error = %v, want %v", err, device.ErrNotFound)
	}

	// codes survive transcription: lowercase with dashes and spaces
	human := " " + pc.Code[:5] + "-" + pc.Code[5:] + " "
	s, err := f.svc.Link(ctx, f.admin, f.s.ID, human)
	if err != nil {
		t.Fatalf("Link() failed, %v", err)
	}
	if !s.IsLinked() || s.Device.String != "Classroom iPad" || !s.Online {
		t.Errorf("student not bound: %+v", s)
	}
	if !s.LastSync.Valid {
		t.Error("linking must record a sync timestamp")
	}

	// handshake recorded on the code row
	row, err := f.repo.GetPairingCode(ctx, pc.Code)
	if err != nil {
		t.Fatalf("GetPairingCode() failed, %v", err)
	}
	if row.Status != device.StatusLinked || row.StudentID.String != s.ID || row.OrganizationID.String != f.orgID {
		t.Errorf("handshake not completed: %+v", row)
	}

	// a code links exactly one student
	if _, err = f.svc.Link(ctx, f.admin, f.s.ID, pc.Code); err != device.ErrNotFound {
		t.Errorf("second Link() error = %v, want %v", err, device.ErrNotFound)
	}
}

func TestService_Link_unnamedCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// older firmware advertises codes without a device name
	pc, err := f.repo.CreatePairingCode(ctx, device.PairingCode{
		Code:      "ABC12DEF34",
		Status:    device.StatusPending,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePairingCode() failed, %v", err)
	}

	s, err := f.svc.Link(ctx, f.admin, f.s.ID, pc.Code)
	if err != nil {
		t.Fatalf("Link() failed, %v", err)
	}
	if s.Device.String != "Linked Device" {
		t.Errorf("Device = %q, want the link-time default", s.Device.String)
	}
}

func TestService_Unlink(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// nothing to unlink yet
	if _, err := f.svc.Unlink(ctx, f.admin, f.s.ID); err != student.ErrNotLinked {
		t.Errorf("Unlink() error = %v, want %v", err, student.ErrNotLinked)
	}

	pc, err := f.svc.RegisterCode(ctx, "Classroom iPad")
	if err != nil {
		t.Fatalf("RegisterCode() failed, %v", err)
	}
	if _, err = f.svc.Link(ctx, f.admin, f.s.ID, pc.Code); err != nil {
		t.Fatalf("Link() failed, %v", err)
	}

	s, err := f.svc.Unlink(ctx, f.admin, f.s.ID)
	if err != nil {
		t.Fatalf("Unlink() failed, %v", err)
	}
	if s.IsLinked() || s.Online || s.LastSync.Valid {
		t.Errorf("unlink must reset device, online and sync state: %+v", s)
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "abc12-def34", want: "ABC12DEF34"},
		{raw: " ABC12 DEF34 ", want: "ABC12DEF34"},
		{raw: "abc12def34", want: "ABC12DEF34"},
	}
	for _, tt := range tests {
		if got := device.NormalizeCode(tt.raw); got != tt.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
