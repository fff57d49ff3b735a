package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/invite"
)

type inviteRepository struct {
	db *sqlx.DB
}

func NewInviteRepository(db *sqlx.DB) invite.Repository {
	return &inviteRepository{db: db}
}

type inviteRow struct {
	ID             string         `db:"id"`
	Email          string         `db:"email"`
	OrganizationID string         `db:"organization_id"`
	Role           string         `db:"role"`
	Code           string         `db:"code"`
	InvitedBy      string         `db:"invited_by"`
	AllSchools     bool           `db:"all_schools"`
	SchoolIDs      pq.StringArray `db:"school_ids"`
	Status         string         `db:"status"`
	AcceptedAt     null.Time      `db:"accepted_at"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r inviteRow) toModel() invite.Invite {
	scope := access.Schools(r.SchoolIDs...)
	if r.AllSchools {
		scope = access.AllSchools()
	}
	return invite.Invite{
		ID:             r.ID,
		Email:          r.Email,
		OrganizationID: r.OrganizationID,
		Role:           r.Role,
		Code:           r.Code,
		InvitedBy:      r.InvitedBy,
		SchoolScope:    scope,
		Status:         r.Status,
		AcceptedAt:     r.AcceptedAt,
		CreatedAt:      r.CreatedAt,
	}
}

func inviteRowFrom(inv invite.Invite) inviteRow {
	return inviteRow{
		ID:             inv.ID,
		Email:          inv.Email,
		OrganizationID: inv.OrganizationID,
		Role:           inv.Role,
		Code:           inv.Code,
		InvitedBy:      inv.InvitedBy,
		AllSchools:     inv.SchoolScope.All,
		SchoolIDs:      pq.StringArray(inv.SchoolScope.SchoolIDs),
		Status:         inv.Status,
		AcceptedAt:     inv.AcceptedAt,
		CreatedAt:      inv.CreatedAt,
	}
}

func (repo *inviteRepository) CreateInvite(ctx context.Context, inv invite.Invite) (invite.Invite, error) {
	const q = `
		INSERT INTO invites (id, email, organization_id, role, code, invited_by, all_schools, school_ids, status, accepted_at, created_at)
		VALUES (:id, :email, :organization_id, :role, :code, :invited_by, :all_schools, :school_ids, :status, :accepted_at, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, inviteRowFrom(inv)); err != nil {
		if isUniqueViolation(err, "invites_pending_email_uniq") {
			return invite.Invite{}, core.NewValidationError(nil,
				core.FieldError{Field: "email", Error: "a pending invite already exists for this email"})
		}
		return invite.Invite{}, err
	}
	return inv, nil
}

func (repo *inviteRepository) GetInviteByID(ctx context.Context, id string) (invite.Invite, error) {
	var row inviteRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM invites WHERE id = $1`, id)
	if err != nil {
		return invite.Invite{}, noRows(err, invite.ErrNotFound)
	}
	return row.toModel(), nil
}

func (repo *inviteRepository) GetPendingInviteByEmail(ctx context.Context, email string) (invite.Invite, error) {
	var row inviteRow
	const q = `
		SELECT * FROM invites
		WHERE email = $1 AND status = 'pending'
		ORDER BY created_at
		LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, q, email); err != nil {
		return invite.Invite{}, noRows(err, invite.ErrNotFound)
	}
	return row.toModel(), nil
}

func (repo *inviteRepository) GetPendingInviteByCode(ctx context.Context, code string) (invite.Invite, error) {
	var row inviteRow
	const q = `
		SELECT * FROM invites
		WHERE code = $1 AND status = 'pending'
		ORDER BY created_at
		LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, q, code); err != nil {
		return invite.Invite{}, noRows(err, invite.ErrNotFound)
	}
	return row.toModel(), nil
}

func (repo *inviteRepository) QueryPendingInvitesByOrg(ctx context.Context, orgID string) ([]invite.Invite, error) {
	var rows []inviteRow
	const q = `
		SELECT * FROM invites
		WHERE organization_id = $1 AND status = 'pending'
		ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, orgID); err != nil {
		return nil, err
	}
	invites := make([]invite.Invite, 0, len(rows))
	for _, row := range rows {
		invites = append(invites, row.toModel())
	}
	return invites, nil
}

func (repo *inviteRepository) HasPendingInvite(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM invites WHERE email = $1 AND status = 'pending')`, email)
	return exists, err
}

func (repo *inviteRepository) AcceptInvite(ctx context.Context, id string, at time.Time) error {
	// conditional on still pending: a lost race reports ErrNotFound
	const q = `
		UPDATE invites
		SET status = 'accepted', accepted_at = $2
		WHERE id = $1 AND status = 'pending'`
	res, err := repo.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return invite.ErrNotFound
	}
	return nil
}

func (repo *inviteRepository) DeletePendingInvite(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM invites WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return invite.ErrNotFound
	}
	return nil
}
