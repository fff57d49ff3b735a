package staff_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/invite"
	"github.com/easyspeak/console/core/staff"
	emailsvc "github.com/easyspeak/console/services/email"
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

type orgsStub struct{}

func (orgsStub) GetOrganizationName(context.Context, string) (string, error) {
	return "Lakeside USD", nil
}

func setup(t *testing.T) (*staff.Service, *invite.Service, staff.Repository) {
	t.Helper()
	conf := &core.Config{AppName: "EasySpeak Console", TestMode: true, InviteCodeLength: 6}
	db := inmemdb.New()
	staffRepo := inmemdb.NewStaffRepository(db)
	inviteSvc := invite.NewService(
		inmemdb.NewInviteRepository(db), orgsStub{}, emailsvc.NewConsoleServiceMock(conf), &recorderStub{}, conf)
	svc := staff.NewService(staffRepo, inviteSvc, &recorderStub{}, nopLogger{})
	return svc, inviteSvc, staffRepo
}

func createProfile(t *testing.T, repo staff.Repository, email, role, orgID string, scope access.SchoolScope) staff.Profile {
	t.Helper()
	now := time.Now().UTC()
	p, err := repo.CreateProfile(context.Background(), staff.Profile{
		UID:            uuid.New().String(),
		Email:          email,
		Name:           "Staff",
		Role:           role,
		OrganizationID: orgID,
		SchoolScope:    scope,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreateProfile() failed, %v", err)
	}
	return p
}

var districtAdmin = invite.Inviter{Email: "admin@lakeside.edu", Role: access.RoleDistrictAdmin, OrganizationID: "org1"}

func TestService_Resolve(t *testing.T) {
	svc, inviteSvc, repo := setup(t)
	ctx := context.Background()

	known := createProfile(t, repo, "known@lakeside.edu", access.RoleTeacher, "org1", access.Schools("schA"))

	// known principal: straight lookup
	p, err := svc.Resolve(ctx, known.UID, known.Email)
	if err != nil {
		t.Fatalf("Resolve() failed, %v", err)
	}
	if p.UID != known.UID {
		t.Errorf("Resolve() UID = %s, want %s", p.UID, known.UID)
	}

	// unknown principal without an invite: session must be terminated
	if _, err = svc.Resolve(ctx, "stranger-uid", "stranger@lakeside.edu"); err != staff.ErrNotInvited {
		t.Errorf("Resolve() error = %v, want %v", err, staff.ErrNotInvited)
	}

	// unknown principal with a pending invite: profile minted from the invite
	inv, err := inviteSvc.Issue(ctx, districtAdmin, invite.NewInvite{
		Email:       "new@lakeside.edu",
		SchoolScope: access.Schools("schA", "schB"),
	})
	if err != nil {
		t.Fatalf("Issue() failed, %v", err)
	}
	p, err = svc.Resolve(ctx, "new-uid", "new@lakeside.edu")
	if err != nil {
		t.Fatalf("Resolve() failed, %v", err)
	}
	if p.Role != inv.Role || p.OrganizationID != inv.OrganizationID {
		t.Errorf("profile role/org = %s/%s, want the invite's %s/%s", p.Role, p.OrganizationID, inv.Role, inv.OrganizationID)
	}
	if !p.SchoolScope.Equal(inv.SchoolScope) {
		t.Error("profile scope must be copied verbatim from the invite")
	}

	// the invite is consumed: a second principal with the same email is rejected
	if _, err = svc.Resolve(ctx, "second-uid", "new@lakeside.edu"); err != staff.ErrNotInvited {
		t.Errorf("Resolve() after redemption error = %v, want %v", err, staff.ErrNotInvited)
	}
	// ... while the first one resolves to its existing profile
	if p, err = svc.Resolve(ctx, "new-uid", "new@lakeside.edu"); err != nil || p.UID != "new-uid" {
		t.Errorf("Resolve() of minted profile = (%+v, %v)", p, err)
	}
}

func TestService_RegisterWithCode(t *testing.T) {
	svc, inviteSvc, _ := setup(t)
	ctx := context.Background()

	inv, err := inviteSvc.Issue(ctx, districtAdmin, invite.NewInvite{
		Email:       "manual@lakeside.edu",
		SchoolScope: access.Schools("schA"),
	})
	if err != nil {
		t.Fatalf("Issue() failed, %v", err)
	}

	// unknown code
	_, err = svc.RegisterWithCode(ctx, staff.RegisterStaff{
		Name: "Manual", Email: "manual@lakeside.edu", Password: "pwd", PasswordConfirm: "pwd", Code: "NOPE42",
	})
	if err != invite.ErrNotFound {
		t.Errorf("RegisterWithCode() error = %v, want %v", err, invite.ErrNotFound)
	}

	p, err := svc.RegisterWithCode(ctx, staff.RegisterStaff{
		Name: "Manual", Email: "manual@lakeside.edu", Password: "pwd", PasswordConfirm: "pwd", Code: inv.Code,
	})
	if err != nil {
		t.Fatalf("RegisterWithCode() failed, %v", err)
	}
	if p.Role != access.RoleTeacher || !p.SchoolScope.Equal(inv.SchoolScope) {
		t.Error("registered profile must carry the invite's role and scope")
	}
	if err = p.CheckPassword("pwd"); err != nil {
		t.Error("password was not set")
	}

	// the email is now taken
	_, err = svc.RegisterWithCode(ctx, staff.RegisterStaff{
		Name: "Again", Email: "manual@lakeside.edu", Password: "pwd", PasswordConfirm: "pwd", Code: inv.Code,
	})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("RegisterWithCode() with taken email error = %v, want a ValidationError", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	svc, inviteSvc, repo := setup(t)
	ctx := context.Background()

	inv, err := inviteSvc.Issue(ctx, districtAdmin, invite.NewInvite{Email: "local@lakeside.edu", SchoolScope: access.AllSchools()})
	if err != nil {
		t.Fatalf("Issue() failed, %v", err)
	}
	if _, err = svc.RegisterWithCode(ctx, staff.RegisterStaff{
		Name: "Local", Email: "local@lakeside.edu", Password: "s3cret", PasswordConfirm: "s3cret", Code: inv.Code,
	}); err != nil {
		t.Fatalf("RegisterWithCode() failed, %v", err)
	}
	ssoOnly := createProfile(t, repo, "sso@lakeside.edu", access.RoleTeacher, "org1", access.AllSchools())

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "ok", email: "local@lakeside.edu", pwd: "s3cret"},
		{name: "case-insensitive email", email: "Local@Lakeside.edu", pwd: "s3cret"},
		{name: "wrong password", email: "local@lakeside.edu", pwd: "nope", wantErr: staff.ErrNotFound},
		{name: "sso-only profile has no local credential", email: ssoOnly.Email, pwd: "anything", wantErr: staff.ErrNotFound},
		{name: "unknown email", email: "ghost@lakeside.edu", pwd: "s3cret", wantErr: staff.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Authenticate(context.Background(), tt.email, tt.pwd); err != tt.wantErr {
				t.Errorf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_UpdateAccess(t *testing.T) {
	svc, _, repo := setup(t)
	ctx := context.Background()

	admin := createProfile(t, repo, "admin@lakeside.edu", access.RoleDistrictAdmin, "org1", access.AllSchools())
	otherOrgAdmin := createProfile(t, repo, "admin@hillcrest.edu", access.RoleDistrictAdmin, "org2", access.AllSchools())
	teacher := createProfile(t, repo, "t@lakeside.edu", access.RoleTeacher, "org1", access.Schools("schA"))

	// cross-org edits denied
	if _, err := svc.UpdateAccess(ctx, otherOrgAdmin, teacher.UID, staff.UpdateAccess{SchoolScope: access.AllSchools()}); err != staff.ErrPermissionDenied {
		t.Errorf("cross-org UpdateAccess() error = %v, want %v", err, staff.ErrPermissionDenied)
	}
	// scope only applies to teachers
	if _, err := svc.UpdateAccess(ctx, admin, otherOrgAdmin.UID, staff.UpdateAccess{SchoolScope: access.Schools("schA")}); err == nil {
		t.Error("UpdateAccess() on an admin should fail")
	}

	updated, err := svc.UpdateAccess(ctx, admin, teacher.UID, staff.UpdateAccess{SchoolScope: access.Schools("schA", "schB")})
	if err != nil {
		t.Fatalf("UpdateAccess() failed, %v", err)
	}
	if !updated.SchoolScope.Equal(access.Schools("schA", "schB")) {
		t.Errorf("SchoolScope = %+v", updated.SchoolScope)
	}
}

func TestService_Remove(t *testing.T) {
	svc, _, repo := setup(t)
	ctx := context.Background()

	admin := createProfile(t, repo, "admin@lakeside.edu", access.RoleDistrictAdmin, "org1", access.AllSchools())
	teacher := createProfile(t, repo, "t@lakeside.edu", access.RoleTeacher, "org1", access.Schools("schA"))
	outsider := createProfile(t, repo, "t@hillcrest.edu", access.RoleTeacher, "org2", access.Schools("schZ"))

	if err := svc.Remove(ctx, teacher, admin.UID); err != staff.ErrPermissionDenied {
		t.Errorf("teacher Remove() error = %v, want %v", err, staff.ErrPermissionDenied)
	}
	if err := svc.Remove(ctx, admin, admin.UID); err != staff.ErrPermissionDenied {
		t.Errorf("self Remove() error = %v, want %v", err, staff.ErrPermissionDenied)
	}
	if err := svc.Remove(ctx, admin, outsider.UID); err != staff.ErrPermissionDenied {
		t.Errorf("cross-org Remove() error = %v, want %v", err, staff.ErrPermissionDenied)
	}

	if err := svc.Remove(ctx, admin, teacher.UID); err != nil {
		t.Fatalf("Remove() failed, %v", err)
	}
	if _, err := svc.GetByUID(ctx, teacher.UID); err != staff.ErrNotFound {
		t.Error("removed profile must resolve to not-found on the next request")
	}
}
