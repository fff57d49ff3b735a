// Package school holds the scoping unit teachers are restricted to.
package school

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/audit"
)

var (
	ErrNotFound = errors.New("school not found")

	nowFunc = time.Now // mockable
)

type School struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

type NewSchool struct {
	Name string `json:"name" validate:"required"`
}

func (ns *NewSchool) Validate(validate Validator) error {
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type Validator interface {
	Struct(s interface{}) error
}

type (
	Repository interface {
		CreateSchool(ctx context.Context, s School) (School, error)
		GetSchoolByID(ctx context.Context, id string) (School, error)
		QuerySchoolsByOrg(ctx context.Context, orgID string) ([]School, error)
	}

	Service struct {
		repo     Repository
		auditSvc audit.Recorder
	}
)

func NewService(repo Repository, auditSvc audit.Recorder) *Service {
	return &Service{repo: repo, auditSvc: auditSvc}
}

func (svc *Service) Create(ctx context.Context, orgID string, actor audit.Actor, ns NewSchool) (School, error) {
	s := School{
		ID:             uuid.New().String(),
		Name:           ns.Name,
		OrganizationID: orgID,
		CreatedAt:      nowFunc().UTC(),
	}
	s, err := svc.repo.CreateSchool(ctx, s)
	if err != nil {
		return School{}, err
	}
	svc.auditSvc.Record(ctx, audit.ActionCreateSchool, "Created school "+s.Name, orgID, actor)
	return s, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchoolByID(ctx, id)
}

func (svc *Service) QueryByOrg(ctx context.Context, orgID string) ([]School, error) {
	return svc.repo.QuerySchoolsByOrg(ctx, orgID)
}
