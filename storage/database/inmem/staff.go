package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/easyspeak/console/core/staff"
)

type staffRepository struct {
	db *userTable
}

func NewStaffRepository(db *DB) staff.Repository {
	return &staffRepository{db: db.users}
}

func (repo *staffRepository) query() []staff.Profile {
	profiles := make([]staff.Profile, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		profiles = append(profiles, *p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles
}

func (repo *staffRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.table {
		if p.Email == email {
			return staff.ErrEmailExists
		}
	}
	return nil
}

func (repo *staffRepository) CreateProfile(ctx context.Context, p staff.Profile) (staff.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.table {
		if existing.Email == p.Email {
			return staff.Profile{}, staff.ErrEmailExists
		}
	}
	repo.db.table[p.UID] = &p
	return p, nil
}

func (repo *staffRepository) GetProfileByUID(ctx context.Context, uid string) (staff.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.table[uid]; ok {
		return *p, nil
	}
	return staff.Profile{}, staff.ErrNotFound
}

func (repo *staffRepository) GetProfileByEmail(ctx context.Context, email string) (staff.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.table {
		if p.Email == email {
			return *p, nil
		}
	}
	return staff.Profile{}, staff.ErrNotFound
}

func (repo *staffRepository) QueryProfilesByOrg(ctx context.Context, orgID string) ([]staff.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	profiles := make([]staff.Profile, 0)
	for _, p := range repo.query() {
		if p.OrganizationID == orgID {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func (repo *staffRepository) QueryAllProfiles(ctx context.Context) ([]staff.Profile, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.query(), nil
}

func (repo *staffRepository) UpdateProfile(ctx context.Context, p staff.Profile) (staff.Profile, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[p.UID]; !ok {
		return staff.Profile{}, staff.ErrNotFound
	}
	repo.db.table[p.UID] = &p
	return p, nil
}

func (repo *staffRepository) SetLastLogin(ctx context.Context, uid string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.table[uid]
	if !ok {
		return staff.ErrNotFound
	}
	p.LastLogin.SetValid(at)
	return nil
}

func (repo *staffRepository) DeleteProfile(ctx context.Context, uid string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[uid]; !ok {
		return staff.ErrNotFound
	}
	delete(repo.db.table, uid)
	return nil
}
