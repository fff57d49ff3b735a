package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/easyspeak/console/core/school"
)

type schoolRepository struct {
	db *sqlx.DB
}

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

type schoolRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	OrganizationID string    `db:"organization_id"`
	CreatedAt      time.Time `db:"created_at"`
}

func (repo *schoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	const q = `
		INSERT INTO schools (id, name, organization_id, created_at)
		VALUES (:id, :name, :organization_id, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, schoolRow(s)); err != nil {
		return school.School{}, err
	}
	return s, nil
}

func (repo *schoolRepository) GetSchoolByID(ctx context.Context, id string) (school.School, error) {
	var row schoolRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM schools WHERE id = $1`, id); err != nil {
		return school.School{}, noRows(err, school.ErrNotFound)
	}
	return school.School(row), nil
}

func (repo *schoolRepository) QuerySchoolsByOrg(ctx context.Context, orgID string) ([]school.School, error) {
	var rows []schoolRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM schools WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	schools := make([]school.School, 0, len(rows))
	for _, row := range rows {
		schools = append(schools, school.School(row))
	}
	return schools, nil
}
