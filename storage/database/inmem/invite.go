package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/easyspeak/console/core/invite"
)

type inviteRepository struct {
	db *inviteTable
}

func NewInviteRepository(db *DB) invite.Repository {
	return &inviteRepository{db: db.invites}
}

// pendingOldestFirst mirrors the SQL tie-break: creation order decides which
// pending invite is authoritative.
func (repo *inviteRepository) pendingOldestFirst() []invite.Invite {
	invites := make([]invite.Invite, 0, len(repo.db.table))
	for _, inv := range repo.db.table {
		if inv.IsPending() {
			invites = append(invites, *inv)
		}
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].CreatedAt.Before(invites[j].CreatedAt) })
	return invites
}

func (repo *inviteRepository) CreateInvite(ctx context.Context, inv invite.Invite) (invite.Invite, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.table[inv.ID] = &inv
	return inv, nil
}

func (repo *inviteRepository) GetInviteByID(ctx context.Context, id string) (invite.Invite, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inv, ok := repo.db.table[id]; ok {
		return *inv, nil
	}
	return invite.Invite{}, invite.ErrNotFound
}

func (repo *inviteRepository) GetPendingInviteByEmail(ctx context.Context, email string) (invite.Invite, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inv := range repo.pendingOldestFirst() {
		if inv.Email == email {
			return inv, nil
		}
	}
	return invite.Invite{}, invite.ErrNotFound
}

func (repo *inviteRepository) GetPendingInviteByCode(ctx context.Context, code string) (invite.Invite, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inv := range repo.pendingOldestFirst() {
		if inv.Code == code {
			return inv, nil
		}
	}
	return invite.Invite{}, invite.ErrNotFound
}

func (repo *inviteRepository) QueryPendingInvitesByOrg(ctx context.Context, orgID string) ([]invite.Invite, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	invites := make([]invite.Invite, 0)
	for _, inv := range repo.pendingOldestFirst() {
		if inv.OrganizationID == orgID {
			invites = append(invites, inv)
		}
	}
	return invites, nil
}

func (repo *inviteRepository) HasPendingInvite(ctx context.Context, email string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, inv := range repo.db.table {
		if inv.IsPending() && inv.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (repo *inviteRepository) AcceptInvite(ctx context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inv, ok := repo.db.table[id]
	if !ok || !inv.IsPending() {
		return invite.ErrNotFound // conditional: exactly-once redemption
	}
	inv.Status = invite.StatusAccepted
	inv.AcceptedAt.SetValid(at)
	return nil
}

func (repo *inviteRepository) DeletePendingInvite(ctx context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	inv, ok := repo.db.table[id]
	if !ok || !inv.IsPending() {
		return invite.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
