package inmemdb

import (
	"context"
	"sort"

	"github.com/easyspeak/console/core/school"
)

type schoolRepository struct {
	db *schoolTable
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.schools}
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[s.ID] = &s
	return s, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return *s, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QuerySchoolsByOrg(ctx context.Context, orgID string) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0)
	for _, s := range repo.db.table {
		if s.OrganizationID == orgID {
			schools = append(schools, *s)
		}
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}
