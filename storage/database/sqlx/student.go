package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/easyspeak/console/core"
	"github.com/easyspeak/console/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

type studentRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	OrganizationID string         `db:"organization_id"`
	SchoolID       string         `db:"school_id"`
	Device         null.String    `db:"device"`
	Online         bool           `db:"online"`
	LastSync       null.Time      `db:"last_sync"`
	Pages          types.JSONText `db:"pages"`
	HasLicense     bool           `db:"has_license"`
	AdminPINHash   []byte         `db:"admin_pin_hash"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r studentRow) toModel() (student.Student, error) {
	pages := []student.Page{}
	if len(r.Pages) > 0 {
		if err := json.Unmarshal(r.Pages, &pages); err != nil {
			return student.Student{}, errors.Wrap(err, "decoding student pages")
		}
	}
	return student.Student{
		ID:             r.ID,
		Name:           r.Name,
		OrganizationID: r.OrganizationID,
		SchoolID:       r.SchoolID,
		Device:         r.Device,
		Online:         r.Online,
		LastSync:       r.LastSync,
		Pages:          pages,
		HasLicense:     r.HasLicense,
		AdminPINHash:   r.AdminPINHash,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func studentRowFrom(s student.Student) (studentRow, error) {
	if s.Pages == nil {
		s.Pages = []student.Page{}
	}
	pages, err := json.Marshal(s.Pages)
	if err != nil {
		return studentRow{}, errors.Wrap(err, "encoding student pages")
	}
	return studentRow{
		ID:             s.ID,
		Name:           s.Name,
		OrganizationID: s.OrganizationID,
		SchoolID:       s.SchoolID,
		Device:         s.Device,
		Online:         s.Online,
		LastSync:       s.LastSync,
		Pages:          types.JSONText(pages),
		HasLicense:     s.HasLicense,
		AdminPINHash:   s.AdminPINHash,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

func (repo *studentRepository) CreateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	row, err := studentRowFrom(s)
	if err != nil {
		return student.Student{}, err
	}
	const q = `
		INSERT INTO students (id, name, organization_id, school_id, device, online, last_sync, pages, has_license, admin_pin_hash, created_at, updated_at)
		VALUES (:id, :name, :organization_id, :school_id, :device, :online, :last_sync, :pages, :has_license, :admin_pin_hash, :created_at, :updated_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return student.Student{}, err
	}
	return s, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	var row studentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM students WHERE id = $1`, id); err != nil {
		return student.Student{}, noRows(err, student.ErrNotFound)
	}
	return row.toModel()
}

func (repo *studentRepository) QueryStudentsByOrg(ctx context.Context, orgID string) ([]student.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM students WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		s, err := row.toModel()
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, nil
}

func (repo *studentRepository) CountActiveLicenses(ctx context.Context, orgID string) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM students WHERE organization_id = $1 AND has_license`, orgID)
	return count, err
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, s student.Student) (student.Student, error) {
	row, err := studentRowFrom(s)
	if err != nil {
		return student.Student{}, err
	}
	const q = `
		UPDATE students
		SET name = :name, school_id = :school_id, device = :device, online = :online,
		    last_sync = :last_sync, pages = :pages, has_license = :has_license,
		    admin_pin_hash = :admin_pin_hash, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return student.Student{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return s, nil
}

// AllocateLicense grants the license inside a transaction that locks the org
// row, so two concurrent grants cannot both take the last license.
func (repo *studentRepository) AllocateLicense(ctx context.Context, id string, at time.Time) (student.Student, error) {
	err := core.RunInTx(ctx, repo.db, func(tx core.DBTransactor) error {
		var orgID string
		var quota int
		const lockQ = `
			SELECT o.id, o.license_quota
			FROM organizations o
			JOIN students s ON s.organization_id = o.id
			WHERE s.id = $1
			FOR UPDATE OF o`
		if err := tx.QueryRowContext(ctx, lockQ, id).Scan(&orgID, &quota); err != nil {
			return noRows(err, student.ErrNotFound)
		}

		var active int
		const countQ = `SELECT COUNT(*) FROM students WHERE organization_id = $1 AND has_license`
		if err := tx.QueryRowContext(ctx, countQ, orgID).Scan(&active); err != nil {
			return err
		}
		if !student.CanAllocate(quota, active) {
			return student.ErrQuotaExceeded
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE students SET has_license = TRUE, updated_at = $2 WHERE id = $1`, id, at)
		return err
	})
	if err != nil {
		return student.Student{}, err
	}
	return repo.GetStudentByID(ctx, id)
}

func (repo *studentRepository) RevokeLicense(ctx context.Context, id string, at time.Time) (student.Student, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE students SET has_license = FALSE, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return student.Student{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudentByID(ctx, id)
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.ErrNotFound
	}
	return nil
}
