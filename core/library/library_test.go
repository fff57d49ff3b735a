package library_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/library"
	"github.com/easyspeak/console/core/staff"
	inmemdb "github.com/easyspeak/console/storage/database/inmem"
)

type recorderStub struct {
	actions []string
}

func (r *recorderStub) Record(_ context.Context, action, _, _ string, _ audit.Actor) {
	r.actions = append(r.actions, action)
}

func setup(t *testing.T) *library.Service {
	t.Helper()
	return library.NewService(inmemdb.NewLibraryRepository(inmemdb.New()), &recorderStub{})
}

func profile(role, orgID string) *staff.Profile {
	return &staff.Profile{
		UID: role + "-uid", Email: role + "@lakeside.edu", Role: role,
		OrganizationID: orgID, SchoolScope: access.AllSchools(),
	}
}

func TestService_Create(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, profile(access.RoleTeacher, "org1"), library.NewPage{Label: "x"}); err != library.ErrPermissionDenied {
		t.Errorf("teacher Create() error = %v, want %v", err, library.ErrPermissionDenied)
	}

	p, err := svc.Create(ctx, profile(access.RoleDistrictAdmin, "org1"), library.NewPage{
		Label: "Core Words",
		Tiles: json.RawMessage(`[{"label":"yes"},{"label":"no"},{"label":"more"}]`),
	})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}
	if p.TileCount != 3 {
		t.Errorf("TileCount = %d, want 3", p.TileCount)
	}
	if p.OrganizationID != "org1" || p.LastEdited.IsZero() {
		t.Errorf("page = %+v", p)
	}
}

func TestService_Import(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	admin := profile(access.RoleDistrictAdmin, "org1")

	tests := []struct {
		name      string
		payload   string
		wantLabel string
		wantTiles int
		wantErr   bool
	}{
		{
			name:      "bare page object",
			payload:   `{"label":"Snack Time","tiles":[{"label":"apple"},{"label":"juice"}]}`,
			wantLabel: "Snack Time",
			wantTiles: 2,
		},
		{
			name:      "export wrapper",
			payload:   `{"page":{"label":"Feelings","tiles":[{"label":"happy"}]}}`,
			wantLabel: "Feelings",
			wantTiles: 1,
		},
		{
			name:      "name as label alias",
			payload:   `{"name":"Playground","tiles":[]}`,
			wantLabel: "Playground",
		},
		{name: "not json", payload: `lol`, wantErr: true},
		{name: "no label", payload: `{"tiles":[]}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Import(ctx, admin, []byte(tt.payload))
			if tt.wantErr {
				if _, ok := err.(*core.ValidationError); !ok {
					t.Errorf("Import() error = %v, want a ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Import() failed, %v", err)
			}
			if p.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", p.Label, tt.wantLabel)
			}
			if p.TileCount != tt.wantTiles {
				t.Errorf("TileCount = %d, want %d", p.TileCount, tt.wantTiles)
			}
		})
	}
}

func TestService_orgScoping(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()
	admin := profile(access.RoleDistrictAdmin, "org1")
	outsider := profile(access.RoleDistrictAdmin, "org2")
	super := profile(access.RoleSuperAdmin, "hq")

	p, err := svc.Create(ctx, admin, library.NewPage{Label: "Core Words"})
	if err != nil {
		t.Fatalf("Create() failed, %v", err)
	}

	// cross-org reads 404 rather than leak existence
	if _, err = svc.GetByID(ctx, outsider, p.ID); err != library.ErrNotFound {
		t.Errorf("cross-org GetByID() error = %v, want %v", err, library.ErrNotFound)
	}
	if _, err = svc.Update(ctx, outsider, p.ID, library.NewPage{Label: "Stolen"}); err != library.ErrNotFound {
		t.Errorf("cross-org Update() error = %v, want %v", err, library.ErrNotFound)
	}
	if err = svc.Delete(ctx, outsider, p.ID); err != library.ErrNotFound {
		t.Errorf("cross-org Delete() error = %v, want %v", err, library.ErrNotFound)
	}

	// super admins cross tenants
	if _, err = svc.GetByID(ctx, super, p.ID); err != nil {
		t.Errorf("super admin GetByID() failed, %v", err)
	}

	updated, err := svc.Update(ctx, admin, p.ID, library.NewPage{
		Label: "Core Words v2",
		Tiles: json.RawMessage(`[{"label":"yes"}]`),
	})
	if err != nil {
		t.Fatalf("Update() failed, %v", err)
	}
	if updated.Label != "Core Words v2" || updated.TileCount != 1 {
		t.Errorf("updated = %+v", updated)
	}

	if err = svc.Delete(ctx, admin, p.ID); err != nil {
		t.Fatalf("Delete() failed, %v", err)
	}
	pages, err := svc.QueryByOrg(ctx, "org1")
	if err != nil || len(pages) != 0 {
		t.Errorf("QueryByOrg() after delete = %d pages", len(pages))
	}
}
