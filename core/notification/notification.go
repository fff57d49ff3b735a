// Package notification carries announcement broadcasts from admins to staff
// feeds.
package notification

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/staff"
)

// TargetAll broadcasts across every organization and/or every role.
const TargetAll = "all"

var (
	ErrPermissionDenied = errors.New("permission denied")

	nowFunc = time.Now // mockable
)

type Notification struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Message              string    `json:"message"`
	TargetOrganizationID string    `json:"target_organization_id"` // org ID or "all"
	TargetRole           string    `json:"target_role"`            // role or "all"
	CreatedBy            string    `json:"created_by"`             // actor email
	CreatedAt            time.Time `json:"created_at"`             // UTC
}

type NewNotification struct {
	Title                string `json:"title" validate:"required"`
	Message              string `json:"message" validate:"required"`
	TargetOrganizationID string `json:"target_organization_id" validate:"required"`
	TargetRole           string `json:"target_role" validate:"required"`
}

func (nn *NewNotification) Validate(validate Validator) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.TargetOrganizationID = core.CleanString(nn.TargetOrganizationID)
	nn.TargetRole = core.CleanString(nn.TargetRole, true /* lower */)
	if err := validate.Struct(nn); err != nil {
		return err
	}
	if nn.TargetRole != TargetAll && !access.IsValidRole(nn.TargetRole) {
		return core.NewValidationError(nil, core.FieldError{Field: "target_role", Error: "invalid role"})
	}
	return nil
}

type Validator interface {
	Struct(s interface{}) error
}

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		QueryGlobalNotifications(ctx context.Context) ([]Notification, error)
		QueryOrgNotifications(ctx context.Context, orgID string) ([]Notification, error)
	}

	Service struct {
		repo     Repository
		auditSvc audit.Recorder
	}
)

func NewService(repo Repository, auditSvc audit.Recorder) *Service {
	return &Service{repo: repo, auditSvc: auditSvc}
}

// Broadcast publishes an announcement. Super admins may target any org or
// all of them; district admins only their own.
func (svc *Service) Broadcast(ctx context.Context, actor *staff.Profile, nn NewNotification) (Notification, error) {
	if !actor.IsAdmin() {
		return Notification{}, ErrPermissionDenied
	}
	if !actor.IsSuperAdmin() && nn.TargetOrganizationID != actor.OrganizationID {
		return Notification{}, ErrPermissionDenied
	}

	n := Notification{
		ID:                   uuid.New().String(),
		Title:                nn.Title,
		Message:              nn.Message,
		TargetOrganizationID: nn.TargetOrganizationID,
		TargetRole:           nn.TargetRole,
		CreatedBy:            actor.Email,
		CreatedAt:            nowFunc().UTC(),
	}
	n, err := svc.repo.CreateNotification(ctx, n)
	if err != nil {
		return Notification{}, err
	}

	auditOrg := n.TargetOrganizationID
	if auditOrg == TargetAll {
		auditOrg = actor.OrganizationID
	}
	svc.auditSvc.Record(ctx, audit.ActionBroadcastAnnouncement,
		"Broadcast announcement: "+n.Title, auditOrg,
		audit.Actor{Email: actor.Email, Role: actor.Role})
	return n, nil
}

// FeedFor merges the global stream with the profile's own-org stream,
// filters by role target, and returns newest first.
func (svc *Service) FeedFor(ctx context.Context, p *staff.Profile) ([]Notification, error) {
	global, err := svc.repo.QueryGlobalNotifications(ctx)
	if err != nil {
		return nil, err
	}
	scoped, err := svc.repo.QueryOrgNotifications(ctx, p.OrganizationID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(global)+len(scoped))
	feed := make([]Notification, 0, len(global)+len(scoped))
	for _, n := range append(global, scoped...) {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		if n.TargetRole != TargetAll && n.TargetRole != p.Role {
			continue
		}
		feed = append(feed, n)
	}
	sort.Slice(feed, func(i, j int) bool { return feed[i].CreatedAt.After(feed[j].CreatedAt) })
	return feed, nil
}
