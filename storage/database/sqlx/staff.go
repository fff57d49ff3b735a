package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/easyspeak/console/core/access"
	"github.com/easyspeak/console/core/staff"
)

type staffRepository struct {
	db *sqlx.DB
}

func NewStaffRepository(db *sqlx.DB) staff.Repository {
	return &staffRepository{db: db}
}

type profileRow struct {
	UID            string         `db:"uid"`
	Email          string         `db:"email"`
	Name           string         `db:"name"`
	Role           string         `db:"role"`
	OrganizationID string         `db:"organization_id"`
	AllSchools     bool           `db:"all_schools"`
	SchoolIDs      pq.StringArray `db:"school_ids"`
	PasswordHash   []byte         `db:"password_hash"`
	LastLogin      null.Time      `db:"last_login"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r profileRow) toModel() staff.Profile {
	scope := access.Schools(r.SchoolIDs...)
	if r.AllSchools {
		scope = access.AllSchools()
	}
	return staff.Profile{
		UID:            r.UID,
		Email:          r.Email,
		Name:           r.Name,
		Role:           r.Role,
		OrganizationID: r.OrganizationID,
		SchoolScope:    scope,
		PasswordHash:   r.PasswordHash,
		LastLogin:      r.LastLogin,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func profileRowFrom(p staff.Profile) profileRow {
	return profileRow{
		UID:            p.UID,
		Email:          p.Email,
		Name:           p.Name,
		Role:           p.Role,
		OrganizationID: p.OrganizationID,
		AllSchools:     p.SchoolScope.All,
		SchoolIDs:      pq.StringArray(p.SchoolScope.SchoolIDs),
		PasswordHash:   p.PasswordHash,
		LastLogin:      p.LastLogin,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (repo *staffRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
	if err != nil {
		return err
	}
	if exists {
		return staff.ErrEmailExists
	}
	return nil
}

func (repo *staffRepository) CreateProfile(ctx context.Context, p staff.Profile) (staff.Profile, error) {
	const q = `
		INSERT INTO users (uid, email, name, role, organization_id, all_schools, school_ids, password_hash, last_login, created_at, updated_at)
		VALUES (:uid, :email, :name, :role, :organization_id, :all_schools, :school_ids, :password_hash, :last_login, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, profileRowFrom(p)); err != nil {
		if isUniqueViolation(err, "") {
			return staff.Profile{}, staff.ErrEmailExists
		}
		return staff.Profile{}, err
	}
	return p, nil
}

func (repo *staffRepository) GetProfileByUID(ctx context.Context, uid string) (staff.Profile, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE uid = $1`, uid)
	if err != nil {
		return staff.Profile{}, noRows(err, staff.ErrNotFound)
	}
	return row.toModel(), nil
}

func (repo *staffRepository) GetProfileByEmail(ctx context.Context, email string) (staff.Profile, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		return staff.Profile{}, noRows(err, staff.ErrNotFound)
	}
	return row.toModel(), nil
}

func (repo *staffRepository) QueryProfilesByOrg(ctx context.Context, orgID string) ([]staff.Profile, error) {
	var rows []profileRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM users WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	return profilesFrom(rows), nil
}

func (repo *staffRepository) QueryAllProfiles(ctx context.Context) ([]staff.Profile, error) {
	var rows []profileRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM users ORDER BY organization_id, name`)
	if err != nil {
		return nil, err
	}
	return profilesFrom(rows), nil
}

func (repo *staffRepository) UpdateProfile(ctx context.Context, p staff.Profile) (staff.Profile, error) {
	const q = `
		UPDATE users
		SET email = :email, name = :name, role = :role, organization_id = :organization_id,
		    all_schools = :all_schools, school_ids = :school_ids, password_hash = :password_hash,
		    updated_at = :updated_at
		WHERE uid = :uid`
	res, err := repo.db.NamedExecContext(ctx, q, profileRowFrom(p))
	if err != nil {
		return staff.Profile{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return staff.Profile{}, staff.ErrNotFound
	}
	return p, nil
}

func (repo *staffRepository) SetLastLogin(ctx context.Context, uid string, at time.Time) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE uid = $1`, uid, at)
	return err
}

func (repo *staffRepository) DeleteProfile(ctx context.Context, uid string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, uid)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return staff.ErrNotFound
	}
	return nil
}

func profilesFrom(rows []profileRow) []staff.Profile {
	profiles := make([]staff.Profile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.toModel())
	}
	return profiles
}
