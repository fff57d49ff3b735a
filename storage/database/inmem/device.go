package inmemdb

import (
	"context"

	"github.com/easyspeak/console/core/device"
)

type pairingRepository struct {
	db *pairingTable
}

func NewPairingRepository(db *DB) device.Repository {
	return &pairingRepository{db: db.pairings}
}

func (repo *pairingRepository) CreatePairingCode(ctx context.Context, pc device.PairingCode) (device.PairingCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[pc.Code]; ok {
		return device.PairingCode{}, device.ErrCodeExists
	}
	repo.db.table[pc.Code] = &pc
	return pc, nil
}

func (repo *pairingRepository) GetPairingCode(ctx context.Context, code string) (device.PairingCode, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if pc, ok := repo.db.table[code]; ok {
		return *pc, nil
	}
	return device.PairingCode{}, device.ErrNotFound
}

func (repo *pairingRepository) ClaimPairingCode(ctx context.Context, code string) (device.PairingCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pc, ok := repo.db.table[code]
	if !ok || !pc.IsPending() {
		return device.PairingCode{}, device.ErrNotFound // conditional: one claim only
	}
	pc.Status = device.StatusLinked
	return *pc, nil
}

func (repo *pairingRepository) CompleteHandshake(ctx context.Context, code, studentID, orgID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pc, ok := repo.db.table[code]
	if !ok {
		return device.ErrNotFound
	}
	pc.StudentID.SetValid(studentID)
	pc.OrganizationID.SetValid(orgID)
	return nil
}
