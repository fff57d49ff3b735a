package inmemdb

import (
	"context"
	"sort"

	"github.com/easyspeak/console/core/library"
)

type libraryRepository struct {
	db *libraryTable
}

func NewLibraryRepository(db *DB) library.Repository {
	return &libraryRepository{db: db.library}
}

func (repo *libraryRepository) CreateLibraryPage(ctx context.Context, p library.Page) (library.Page, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *libraryRepository) GetLibraryPageByID(ctx context.Context, id string) (library.Page, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return library.Page{}, library.ErrNotFound
}

func (repo *libraryRepository) QueryLibraryPagesByOrg(ctx context.Context, orgID string) ([]library.Page, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	pages := make([]library.Page, 0)
	for _, p := range repo.db.table {
		if p.OrganizationID == orgID {
			pages = append(pages, *p)
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Label < pages[j].Label })
	return pages, nil
}

func (repo *libraryRepository) UpdateLibraryPage(ctx context.Context, p library.Page) (library.Page, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[p.ID]; !ok {
		return library.Page{}, library.ErrNotFound
	}
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *libraryRepository) DeleteLibraryPage(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return library.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
