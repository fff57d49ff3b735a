package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/easyspeak/console/core/device"
)

type pairingRepository struct {
	db *sqlx.DB
}

func NewPairingRepository(db *sqlx.DB) device.Repository {
	return &pairingRepository{db: db}
}

type pairingRow struct {
	Code           string      `db:"code"`
	Status         string      `db:"status"`
	DeviceName     string      `db:"device_name"`
	StudentID      null.String `db:"student_id"`
	OrganizationID null.String `db:"organization_id"`
	CreatedAt      time.Time   `db:"created_at"`
}

func (repo *pairingRepository) CreatePairingCode(ctx context.Context, pc device.PairingCode) (device.PairingCode, error) {
	const q = `
		INSERT INTO pairing_codes (code, status, device_name, student_id, organization_id, created_at)
		VALUES (:code, :status, :device_name, :student_id, :organization_id, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, pairingRow(pc)); err != nil {
		if isUniqueViolation(err, "") {
			return device.PairingCode{}, device.ErrCodeExists
		}
		return device.PairingCode{}, err
	}
	return pc, nil
}

func (repo *pairingRepository) GetPairingCode(ctx context.Context, code string) (device.PairingCode, error) {
	var row pairingRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM pairing_codes WHERE code = $1`, code); err != nil {
		return device.PairingCode{}, noRows(err, device.ErrNotFound)
	}
	return device.PairingCode(row), nil
}

func (repo *pairingRepository) ClaimPairingCode(ctx context.Context, code string) (device.PairingCode, error) {
	var row pairingRow
	// conditional on still pending: unknown codes and lost races look the same
	const q = `
		UPDATE pairing_codes
		SET status = 'linked'
		WHERE code = $1 AND status = 'pending'
		RETURNING *`
	if err := repo.db.GetContext(ctx, &row, q, code); err != nil {
		return device.PairingCode{}, noRows(err, device.ErrNotFound)
	}
	return device.PairingCode(row), nil
}

func (repo *pairingRepository) CompleteHandshake(ctx context.Context, code, studentID, orgID string) error {
	const q = `
		UPDATE pairing_codes
		SET student_id = $2, organization_id = $3
		WHERE code = $1`
	res, err := repo.db.ExecContext(ctx, q, code, studentID, orgID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return device.ErrNotFound
	}
	return nil
}
