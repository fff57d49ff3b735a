package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/audit"
)

// Newest entries first; the dashboard renders the ledger top-down.
var auditOrdering = core.DBOrdering{Field: "created_at"}

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) audit.Repository {
	return &auditRepository{db: db}
}

type auditRow struct {
	ID             string    `db:"id"`
	Action         string    `db:"action"`
	Details        string    `db:"details"`
	ActorEmail     string    `db:"actor_email"`
	ActorRole      string    `db:"actor_role"`
	OrganizationID string    `db:"organization_id"`
	CreatedAt      time.Time `db:"created_at"`
}

func (repo *auditRepository) CreateEntry(ctx context.Context, e audit.Entry) error {
	const q = `
		INSERT INTO audit_logs (id, action, details, actor_email, actor_role, organization_id, created_at)
		VALUES (:id, :action, :details, :actor_email, :actor_role, :organization_id, :created_at)`
	_, err := repo.db.NamedExecContext(ctx, q, auditRow(e))
	return err
}

func (repo *auditRepository) QueryEntriesByOrg(ctx context.Context, orgID string) ([]audit.Entry, error) {
	var rows []auditRow
	q := `
		SELECT * FROM audit_logs
		WHERE organization_id = $1
		ORDER BY ` + auditOrdering.String()
	if err := repo.db.SelectContext(ctx, &rows, q, orgID); err != nil {
		return nil, err
	}
	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, audit.Entry(row))
	}
	return entries, nil
}

// DeleteEntriesBefore removes at most `limit` entries older than the cutoff
// so retention pruning never locks the whole ledger.
func (repo *auditRepository) DeleteEntriesBefore(ctx context.Context, orgID string, cutoff time.Time, limit int) (int, error) {
	const q = `
		DELETE FROM audit_logs
		WHERE ctid IN (
			SELECT ctid FROM audit_logs
			WHERE organization_id = $1 AND created_at < $2
			LIMIT $3)`
	res, err := repo.db.ExecContext(ctx, q, orgID, cutoff, limit)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
