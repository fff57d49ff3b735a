package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/easyspeak/console/core/notification"
	"github.com/easyspeak/console/core/org"
)

type orgRepository struct {
	db *orgTable
}

func NewOrgRepository(db *DB) org.Repository {
	return &orgRepository{db: db.orgs}
}

func (repo *orgRepository) CreateOrganization(ctx context.Context, o org.Organization) (org.Organization, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[o.ID] = &o
	return o, nil
}

func (repo *orgRepository) GetOrganizationByID(ctx context.Context, id string) (org.Organization, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if o, ok := repo.db.table[id]; ok {
		return *o, nil
	}
	return org.Organization{}, org.ErrNotFound
}

func (repo *orgRepository) QueryAllOrganizations(ctx context.Context) ([]org.Organization, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	orgs := make([]org.Organization, 0, len(repo.db.table))
	for _, o := range repo.db.table {
		orgs = append(orgs, *o)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].Name < orgs[j].Name })
	return orgs, nil
}

func (repo *orgRepository) UpdateLicenseQuota(ctx context.Context, id string, quota int, at time.Time) (org.Organization, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	o, ok := repo.db.table[id]
	if !ok {
		return org.Organization{}, org.ErrNotFound
	}
	o.LicenseQuota = quota
	o.UpdatedAt = at
	return *o, nil
}

func (repo *orgRepository) DeleteOrganization(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return org.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

// wipeRepository deletes tenant rows across every table, honoring the same
// batch bound the SQL adapter does.
type wipeRepository struct {
	db *DB
}

func NewWipeRepository(db *DB) org.WipeRepository {
	return &wipeRepository{db: db}
}

func (repo *wipeRepository) DeleteOrgStudents(ctx context.Context, orgID string, limit int) (int, error) {
	repo.db.students.mutex.Lock()
	defer repo.db.students.mutex.Unlock()

	n := 0
	for id, s := range repo.db.students.table {
		if n >= limit {
			break
		}
		if s.OrganizationID == orgID {
			delete(repo.db.students.table, id)
			n++
		}
	}
	return n, nil
}

func (repo *wipeRepository) DeleteOrgSchools(ctx context.Context, orgID string, limit int) (int, error) {
	repo.db.schools.mutex.Lock()
	defer repo.db.schools.mutex.Unlock()

	n := 0
	for id, s := range repo.db.schools.table {
		if n >= limit {
			break
		}
		if s.OrganizationID == orgID {
			delete(repo.db.schools.table, id)
			n++
		}
	}
	return n, nil
}

func (repo *wipeRepository) DeleteOrgLibraryPages(ctx context.Context, orgID string, limit int) (int, error) {
	repo.db.library.mutex.Lock()
	defer repo.db.library.mutex.Unlock()

	n := 0
	for id, p := range repo.db.library.table {
		if n >= limit {
			break
		}
		if p.OrganizationID == orgID {
			delete(repo.db.library.table, id)
			n++
		}
	}
	return n, nil
}

func (repo *wipeRepository) DeleteOrgProfiles(ctx context.Context, orgID string, limit int) (int, error) {
	repo.db.users.mutex.Lock()
	defer repo.db.users.mutex.Unlock()

	n := 0
	for uid, p := range repo.db.users.table {
		if n >= limit {
			break
		}
		if p.OrganizationID == orgID {
			delete(repo.db.users.table, uid)
			n++
		}
	}
	return n, nil
}

func (repo *wipeRepository) DeleteOrgInvites(ctx context.Context, orgID string, limit int) (int, error) {
	repo.db.invites.mutex.Lock()
	defer repo.db.invites.mutex.Unlock()

	n := 0
	for id, inv := range repo.db.invites.table {
		if n >= limit {
			break
		}
		if inv.OrganizationID == orgID {
			delete(repo.db.invites.table, id)
			n++
		}
	}
	return n, nil
}

func (repo *wipeRepository) DeleteOrgNotifications(ctx context.Context, orgID string, limit int) (int, error) {
	repo.db.notifications.mutex.Lock()
	defer repo.db.notifications.mutex.Unlock()

	n := 0
	for id, nf := range repo.db.notifications.table {
		if n >= limit {
			break
		}
		if nf.TargetOrganizationID != notification.TargetAll && nf.TargetOrganizationID == orgID {
			delete(repo.db.notifications.table, id)
			n++
		}
	}
	return n, nil
}

func (repo *wipeRepository) DeleteOrgAuditLogs(ctx context.Context, orgID string, limit int) (int, error) {
	repo.db.audits.mutex.Lock()
	defer repo.db.audits.mutex.Unlock()

	n := 0
	for id, e := range repo.db.audits.table {
		if n >= limit {
			break
		}
		if e.OrganizationID == orgID {
			delete(repo.db.audits.table, id)
			n++
		}
	}
	return n, nil
}
