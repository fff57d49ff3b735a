package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/easyspeak/console/core/org"
)

type orgRepository struct {
	db *sqlx.DB
}

func NewOrgRepository(db *sqlx.DB) org.Repository {
	return &orgRepository{db: db}
}

type orgRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	LicenseQuota int       `db:"license_quota"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r orgRow) toModel() org.Organization {
	return org.Organization(r)
}

func (repo *orgRepository) CreateOrganization(ctx context.Context, o org.Organization) (org.Organization, error) {
	const q = `
		INSERT INTO organizations (id, name, license_quota, created_at, updated_at)
		VALUES (:id, :name, :license_quota, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, orgRow(o)); err != nil {
		return org.Organization{}, err
	}
	return o, nil
}

func (repo *orgRepository) GetOrganizationByID(ctx context.Context, id string) (org.Organization, error) {
	var row orgRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM organizations WHERE id = $1`, id); err != nil {
		return org.Organization{}, noRows(err, org.ErrNotFound)
	}
	return row.toModel(), nil
}

func (repo *orgRepository) QueryAllOrganizations(ctx context.Context) ([]org.Organization, error) {
	var rows []orgRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM organizations ORDER BY name`); err != nil {
		return nil, err
	}
	orgs := make([]org.Organization, 0, len(rows))
	for _, row := range rows {
		orgs = append(orgs, row.toModel())
	}
	return orgs, nil
}

func (repo *orgRepository) UpdateLicenseQuota(ctx context.Context, id string, quota int, at time.Time) (org.Organization, error) {
	var row orgRow
	const q = `
		UPDATE organizations
		SET license_quota = $2, updated_at = $3
		WHERE id = $1
		RETURNING *`
	if err := repo.db.GetContext(ctx, &row, q, id, quota, at); err != nil {
		return org.Organization{}, noRows(err, org.ErrNotFound)
	}
	return row.toModel(), nil
}

func (repo *orgRepository) DeleteOrganization(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return org.ErrNotFound
	}
	return nil
}

// wipeRepository deletes tenant rows in bounded batches via ctid subselects
// so a huge tenant cannot hold locks for the whole wipe.
type wipeRepository struct {
	db *sqlx.DB
}

func NewWipeRepository(db *sqlx.DB) org.WipeRepository {
	return &wipeRepository{db: db}
}

func (repo *wipeRepository) deleteBatch(ctx context.Context, table, orgCol, orgID string, limit int) (int, error) {
	q := `DELETE FROM ` + table + ` WHERE ctid IN (
		SELECT ctid FROM ` + table + ` WHERE ` + orgCol + ` = $1 LIMIT $2)`
	res, err := repo.db.ExecContext(ctx, q, orgID, limit)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (repo *wipeRepository) DeleteOrgStudents(ctx context.Context, orgID string, limit int) (int, error) {
	return repo.deleteBatch(ctx, "students", "organization_id", orgID, limit)
}

func (repo *wipeRepository) DeleteOrgSchools(ctx context.Context, orgID string, limit int) (int, error) {
	return repo.deleteBatch(ctx, "schools", "organization_id", orgID, limit)
}

func (repo *wipeRepository) DeleteOrgLibraryPages(ctx context.Context, orgID string, limit int) (int, error) {
	return repo.deleteBatch(ctx, "library", "organization_id", orgID, limit)
}

func (repo *wipeRepository) DeleteOrgProfiles(ctx context.Context, orgID string, limit int) (int, error) {
	return repo.deleteBatch(ctx, "users", "organization_id", orgID, limit)
}

func (repo *wipeRepository) DeleteOrgInvites(ctx context.Context, orgID string, limit int) (int, error) {
	return repo.deleteBatch(ctx, "invites", "organization_id", orgID, limit)
}

func (repo *wipeRepository) DeleteOrgNotifications(ctx context.Context, orgID string, limit int) (int, error) {
	return repo.deleteBatch(ctx, "notifications", "target_organization_id", orgID, limit)
}

func (repo *wipeRepository) DeleteOrgAuditLogs(ctx context.Context, orgID string, limit int) (int, error) {
	return repo.deleteBatch(ctx, "audit_logs", "organization_id", orgID, limit)
}
