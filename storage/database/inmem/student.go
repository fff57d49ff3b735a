package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/easyspeak/console/core/org"
	"github.com/easyspeak/console/core/student"
)

type studentRepository struct {
	db *DB
}

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	repo.db.students.mutex.Lock()
	defer repo.db.students.mutex.Unlock()
	repo.db.students.table[s.ID] = &s
	return s, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	repo.db.students.mutex.RLock()
	defer repo.db.students.mutex.RUnlock()

	if s, ok := repo.db.students.table[id]; ok {
		return *s, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudentsByOrg(ctx context.Context, orgID string) ([]student.Student, error) {
	repo.db.students.mutex.RLock()
	defer repo.db.students.mutex.RUnlock()

	students := make([]student.Student, 0)
	for _, s := range repo.db.students.table {
		if s.OrganizationID == orgID {
			students = append(students, *s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *studentRepository) CountActiveLicenses(ctx context.Context, orgID string) (int, error) {
	repo.db.students.mutex.RLock()
	defer repo.db.students.mutex.RUnlock()
	return repo.countActiveLicenses(orgID), nil
}

// countActiveLicenses assumes the students lock is held.
func (repo *studentRepository) countActiveLicenses(orgID string) int {
	count := 0
	for _, s := range repo.db.students.table {
		if s.OrganizationID == orgID && s.HasLicense {
			count++
		}
	}
	return count
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	repo.db.students.mutex.Lock()
	defer repo.db.students.mutex.Unlock()

	if _, ok := repo.db.students.table[s.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.students.table[s.ID] = &s
	return s, nil
}

// AllocateLicense re-checks availability under the write lock, so two
// concurrent grants cannot both take the last license.
func (repo *studentRepository) AllocateLicense(ctx context.Context, id string, at time.Time) (student.Student, error) {
	repo.db.students.mutex.Lock()
	defer repo.db.students.mutex.Unlock()

	s, ok := repo.db.students.table[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}

	repo.db.orgs.mutex.RLock()
	o, ok := repo.db.orgs.table[s.OrganizationID]
	repo.db.orgs.mutex.RUnlock()
	if !ok {
		return student.Student{}, org.ErrNotFound
	}

	if !s.HasLicense && !student.CanAllocate(o.LicenseQuota, repo.countActiveLicenses(s.OrganizationID)) {
		return student.Student{}, student.ErrQuotaExceeded
	}

	s.HasLicense = true
	s.UpdatedAt = at
	return *s, nil
}

func (repo *studentRepository) RevokeLicense(ctx context.Context, id string, at time.Time) (student.Student, error) {
	repo.db.students.mutex.Lock()
	defer repo.db.students.mutex.Unlock()

	s, ok := repo.db.students.table[id]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	s.HasLicense = false
	s.UpdatedAt = at
	return *s, nil
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) error {
	repo.db.students.mutex.Lock()
	defer repo.db.students.mutex.Unlock()

	if _, ok := repo.db.students.table[id]; !ok {
		return student.ErrNotFound
	}
	delete(repo.db.students.table, id)
	return nil
}
