package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/easyspeak/console/core/audit"
)

type auditRepository struct {
	db *auditTable
}

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db.audits}
}

func (repo *auditRepository) CreateEntry(ctx context.Context, e audit.Entry) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[e.ID] = &e
	return nil
}

func (repo *auditRepository) QueryEntriesByOrg(ctx context.Context, orgID string) ([]audit.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]audit.Entry, 0)
	for _, e := range repo.db.table {
		if e.OrganizationID == orgID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

func (repo *auditRepository) DeleteEntriesBefore(ctx context.Context, orgID string, cutoff time.Time, limit int) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n := 0
	for id, e := range repo.db.table {
		if n >= limit {
			break
		}
		if e.OrganizationID == orgID && e.CreatedAt.Before(cutoff) {
			delete(repo.db.table, id)
			n++
		}
	}
	return n, nil
}
