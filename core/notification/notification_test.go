package notification_test

import (
	"context"
	"testing"

	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/notification"
	"github.com/easyspeak/console/core/staff"
	inmemdb "github.com/easyspeak/console/storage/database/inmem"
)

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

func setup(t *testing.T) (*notification.Service, *recorderStub) {
	t.Helper()
	rec := &recorderStub{}
	return notification.NewService(inmemdb.NewNotificationRepository(inmemdb.New()), rec), rec
}

func profile(role, orgID string) *staff.Profile {
	return &staff.Profile{
		UID: role + "-uid", Email: role + "@lakeside.edu", Role: role,
		OrganizationID: orgID, SchoolScope: access.AllSchools(),
	}
}

func TestService_Broadcast(t *testing.T) {
	svc, rec := setup(t)
	ctx := context.Background()

	teacher := profile(access.RoleTeacher, "org1")
	admin := profile(access.RoleDistrictAdmin, "org1")
	super := profile(access.RoleSuperAdmin, "hq")

	if _, err := svc.Broadcast(ctx, teacher, notification.NewNotification{
		Title: "x", Message: "y", TargetOrganizationID: "org1", TargetRole: notification.TargetAll,
	}); err != notification.ErrPermissionDenied {
		t.Errorf("teacher Broadcast() error = %v, want %v", err, notification.ErrPermissionDenied)
	}

	// district admins cannot broadcast beyond their own org
	if _, err := svc.Broadcast(ctx, admin, notification.NewNotification{
		Title: "x", Message: "y", TargetOrganizationID: "org2", TargetRole: notification.TargetAll,
	}); err != notification.ErrPermissionDenied {
		t.Errorf("cross-org Broadcast() error = %v, want %v", err, notification.ErrPermissionDenied)
	}
	if _, err := svc.Broadcast(ctx, admin, notification.NewNotification{
		Title: "x", Message: "y", TargetOrganizationID: notification.TargetAll, TargetRole: notification.TargetAll,
	}); err != notification.ErrPermissionDenied {
		t.Errorf("district admin global Broadcast() error = %v, want %v", err, notification.ErrPermissionDenied)
	}

	n, err := svc.Broadcast(ctx, super, notification.NewNotification{
		Title: "Maintenance window", Message: "Sunday 2am", TargetOrganizationID: notification.TargetAll, TargetRole: notification.TargetAll,
	})
	if err != nil {
		t.Fatalf("Broadcast() failed, %v", err)
	}
	if n.CreatedBy != super.Email {
		t.Errorf("CreatedBy = %s", n.CreatedBy)
	}

	// global broadcasts are audited against the actor's own org
	last := rec.entries[len(rec.entries)-1]
	if last.action != audit.ActionBroadcastAnnouncement || last.orgID != "hq" {
		t.Errorf("audit entry = %+v", last)
	}
}

func TestService_FeedFor(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	super := profile(access.RoleSuperAdmin, "hq")
	admin := profile(access.RoleDistrictAdmin, "org1")

	broadcast := func(t *testing.T, actor *staff.Profile, title, targetOrg, targetRole string) notification.Notification {
		t.Helper()
		n, err := svc.Broadcast(ctx, actor, notification.NewNotification{
			Title: title, Message: "m", TargetOrganizationID: targetOrg, TargetRole: targetRole,
		})
		if err != nil {
			t.Fatalf("Broadcast(%s) failed, %v", title, err)
		}
		return n
	}

	global := broadcast(t, super, "global", notification.TargetAll, notification.TargetAll)
	org1Only := broadcast(t, admin, "org1", "org1", notification.TargetAll)
	teachersOnly := broadcast(t, admin, "org1 teachers", "org1", access.RoleTeacher)
	org2Only := broadcast(t, super, "org2", "org2", notification.TargetAll)

	want := func(t *testing.T, p *staff.Profile, ids ...string) {
		t.Helper()
		feed, err := svc.FeedFor(ctx, p)
		if err != nil {
			t.Fatalf("FeedFor() failed, %v", err)
		}
		got := make(map[string]bool, len(feed))
		for _, n := range feed {
			got[n.ID] = true
		}
		if len(feed) != len(ids) {
			t.Errorf("feed has %d notifications, want %d", len(feed), len(ids))
		}
		for _, id := range ids {
			if !got[id] {
				t.Errorf("feed is missing notification %s", id)
			}
		}
	}

	// org1 teacher: global + org1 + org1-teachers, never org2
	want(t, profile(access.RoleTeacher, "org1"), global.ID, org1Only.ID, teachersOnly.ID)
	// org1 admin: the teachers-only entry is filtered by role
	want(t, admin, global.ID, org1Only.ID)
	// org2 staff never see org1 announcements
	want(t, profile(access.RoleTeacher, "org2"), global.ID, org2Only.ID)
}
