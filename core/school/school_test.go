package school_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/audit"
	"github.com/easyspeak/console/core/school"
	inmemdb "github.com/easyspeak/console/storage/database/inmem"
)

type recorderStub struct {
	actions []string
}

func (r *recorderStub) Record(_ context.Context, action, _, _ string, _ audit.Actor) {
	r.actions = append(r.actions, action)
}

func TestService_Create(t *testing.T) {
	rec := &recorderStub{}
	svc := school.NewService(inmemdb.NewSchoolRepository(inmemdb.New()), rec)
	ctx := context.Background()
	actor := audit.Actor{Email: "admin@lakeside.edu", Role: access.RoleDistrictAdmin}

	s, err := svc.Create(ctx, "org1", actor, school.NewSchool{Name: "Lakeside Elementary"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "org1", s.OrganizationID)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Equal(t, []string{audit.ActionCreateSchool}, rec.actions)

	got, err := svc.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = svc.GetByID(ctx, "ghost")
	assert.Equal(t, school.ErrNotFound, err)
}

func TestService_QueryByOrg(t *testing.T) {
	svc := school.NewService(inmemdb.NewSchoolRepository(inmemdb.New()), &recorderStub{})
	ctx := context.Background()
	actor := audit.Actor{Email: "admin@lakeside.edu", Role: access.RoleDistrictAdmin}

	a, err := svc.Create(ctx, "org1", actor, school.NewSchool{Name: "North"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, "org1", actor, school.NewSchool{Name: "South"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "org2", actor, school.NewSchool{Name: "Other"})
	require.NoError(t, err)

	schools, err := svc.QueryByOrg(ctx, "org1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []school.School{a, b}, schools)
}
