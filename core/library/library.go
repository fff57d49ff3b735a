// Package library manages each organization's master communication pages,
// the templates staff push down to student devices.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/staff"
)

var (
	ErrNotFound         = errors.New("library page not found")
	ErrPermissionDenied = errors.New("permission denied")

	nowFunc = time.Now // mockable
)

// Page is one master page. Tiles are opaque device payload; TileCount is
// denormalized for listing without unpacking the payload.
type Page struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Label          string          `json:"label"`
	Icon           string          `json:"icon"`
	Color          string          `json:"color"`
	TileCount      int             `json:"tile_count"`
	Tiles          json.RawMessage `json:"tiles"`
	LastEdited     time.Time       `json:"last_edited"` // UTC
}

type NewPage struct {
	Label string          `json:"label" validate:"required"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
	Tiles json.RawMessage `json:"tiles"`
}

func (np *NewPage) Validate(validate Validator) error {
	np.Label = core.CleanString(np.Label)
	np.Icon = core.CleanString(np.Icon)
	np.Color = core.CleanString(np.Color)
	return validate.Struct(np)
}

type Validator interface {
	Struct(s interface{}) error
}

type (
	Repository interface {
		CreateLibraryPage(ctx context.Context, p Page) (Page, error)
		GetLibraryPageByID(ctx context.Context, id string) (Page, error)
		QueryLibraryPagesByOrg(ctx context.Context, orgID string) ([]Page, error)
		UpdateLibraryPage(ctx context.Context, p Page) (Page, error)
		DeleteLibraryPage(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		auditSvc audit.Recorder
	}
)

func NewService(repo Repository, auditSvc audit.Recorder) *Service {
	return &Service{repo: repo, auditSvc: auditSvc}
}

// Create adds a master page. Admin roles only; teachers consume the library,
// they do not curate it.
func (svc *Service) Create(ctx context.Context, actor *staff.Profile, np NewPage) (Page, error) {
	if !actor.IsAdmin() {
		return Page{}, ErrPermissionDenied
	}

	p, err := svc.repo.CreateLibraryPage(ctx, newPage(actor.OrganizationID, np))
	if err != nil {
		return Page{}, err
	}
	svc.auditSvc.Record(ctx, audit.ActionCreateMasterPage,
		"Created master page "+p.Label, p.OrganizationID, actorOf(actor))
	return p, nil
}

// Import ingests a page exported from a device or another console. Two
// shapes are accepted: a bare page object, or the export wrapper with the
// page under a "page" key. "name" is honored as an alias for "label".
func (svc *Service) Import(ctx context.Context, actor *staff.Profile, payload []byte) (Page, error) {
	if !actor.IsAdmin() {
		return Page{}, ErrPermissionDenied
	}

	np, err := parseExport(payload)
	if err != nil {
		return Page{}, err
	}
	p, err := svc.repo.CreateLibraryPage(ctx, newPage(actor.OrganizationID, np))
	if err != nil {
		return Page{}, err
	}
	svc.auditSvc.Record(ctx, audit.ActionImportMasterPage,
		"Imported master page "+p.Label, p.OrganizationID, actorOf(actor))
	return p, nil
}

func (svc *Service) GetByID(ctx context.Context, actor *staff.Profile, id string) (Page, error) {
	p, err := svc.repo.GetLibraryPageByID(ctx, id)
	if err != nil {
		return Page{}, err
	}
	if !actor.IsSuperAdmin() && p.OrganizationID != actor.OrganizationID {
		return Page{}, ErrNotFound
	}
	return p, nil
}

func (svc *Service) QueryByOrg(ctx context.Context, orgID string) ([]Page, error) {
	return svc.repo.QueryLibraryPagesByOrg(ctx, orgID)
}

func (svc *Service) Update(ctx context.Context, actor *staff.Profile, id string, np NewPage) (Page, error) {
	if !actor.IsAdmin() {
		return Page{}, ErrPermissionDenied
	}
	p, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return Page{}, err
	}

	p.Label = np.Label
	p.Icon = np.Icon
	p.Color = np.Color
	p.Tiles = np.Tiles
	p.TileCount = countTiles(np.Tiles)
	p.LastEdited = nowFunc().UTC()
	p, err = svc.repo.UpdateLibraryPage(ctx, p)
	if err != nil {
		return Page{}, err
	}

	svc.auditSvc.Record(ctx, audit.ActionUpdateMasterPage,
		"Updated master page "+p.Label, p.OrganizationID, actorOf(actor))
	return p, nil
}

func (svc *Service) Delete(ctx context.Context, actor *staff.Profile, id string) error {
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	p, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteLibraryPage(ctx, p.ID); err != nil {
		return err
	}

	svc.auditSvc.Record(ctx, audit.ActionDeleteMasterPage,
		"Deleted master page "+p.Label, p.OrganizationID, actorOf(actor))
	return nil
}

func newPage(orgID string, np NewPage) Page {
	return Page{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Label:          np.Label,
		Icon:           np.Icon,
		Color:          np.Color,
		TileCount:      countTiles(np.Tiles),
		Tiles:          np.Tiles,
		LastEdited:     nowFunc().UTC(),
	}
}

type exportedPage struct {
	Label string          `json:"label"`
	Name  string          `json:"name"`
	Icon  string          `json:"icon"`
	Color string          `json:"color"`
	Tiles json.RawMessage `json:"tiles"`
}

func parseExport(payload []byte) (NewPage, error) {
	var wrapper struct {
		Page *exportedPage `json:"page"`
	}
	var ep exportedPage

	if err := json.Unmarshal(payload, &wrapper); err == nil && wrapper.Page != nil {
		ep = *wrapper.Page
	} else if err := json.Unmarshal(payload, &ep); err != nil {
		return NewPage{}, core.NewValidationError(nil,
			core.FieldError{Field: "file", Error: "not a valid page export"})
	}

	label := core.CleanString(ep.Label)
	if label == "" {
		label = core.CleanString(ep.Name)
	}
	if label == "" {
		return NewPage{}, core.NewValidationError(nil,
			core.FieldError{Field: "label", Error: "page export has no label"})
	}
	return NewPage{Label: label, Icon: ep.Icon, Color: ep.Color, Tiles: ep.Tiles}, nil
}

func countTiles(tiles json.RawMessage) int {
	var arr []json.RawMessage
	if err := json.Unmarshal(tiles, &arr); err != nil {
		return 0
	}
	return len(arr)
}

func actorOf(p *staff.Profile) audit.Actor {
	return audit.Actor{Email: p.Email, Role: p.Role}
}
