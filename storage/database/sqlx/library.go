package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/easyspeak/console/core/library"
)

type libraryRepository struct {
	db *sqlx.DB
}

func NewLibraryRepository(db *sqlx.DB) library.Repository {
	return &libraryRepository{db: db}
}

type libraryRow struct {
	ID             string         `db:"id"`
	OrganizationID string         `db:"organization_id"`
	Label          string         `db:"label"`
	Icon           string         `db:"icon"`
	Color          string         `db:"color"`
	TileCount      int            `db:"tile_count"`
	Tiles          types.JSONText `db:"tiles"`
	LastEdited     time.Time      `db:"last_edited"`
}

func (r libraryRow) toModel() library.Page {
	return library.Page{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Label:          r.Label,
		Icon:           r.Icon,
		Color:          r.Color,
		TileCount:      r.TileCount,
		Tiles:          json.RawMessage(r.Tiles),
		LastEdited:     r.LastEdited,
	}
}

func libraryRowFrom(p library.Page) libraryRow {
	tiles := p.Tiles
	if tiles == nil {
		tiles = json.RawMessage(`[]`)
	}
	return libraryRow{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Label:          p.Label,
		Icon:           p.Icon,
		Color:          p.Color,
		TileCount:      p.TileCount,
		Tiles:          types.JSONText(tiles),
		LastEdited:     p.LastEdited,
	}
}

func (repo *libraryRepository) CreateLibraryPage(ctx context.Context, p library.Page) (library.Page, error) {
	const q = `
		INSERT INTO library (id, organization_id, label, icon, color, tile_count, tiles, last_edited)
		VALUES (:id, :organization_id, :label, :icon, :color, :tile_count, :tiles, :last_edited)`
	if _, err := repo.db.NamedExecContext(ctx, q, libraryRowFrom(p)); err != nil {
		return library.Page{}, err
	}
	return p, nil
}

func (repo *libraryRepository) GetLibraryPageByID(ctx context.Context, id string) (library.Page, error) {
	var row libraryRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM library WHERE id = $1`, id); err != nil {
		return library.Page{}, noRows(err, library.ErrNotFound)
	}
	return row.toModel(), nil
}

func (repo *libraryRepository) QueryLibraryPagesByOrg(ctx context.Context, orgID string) ([]library.Page, error) {
	var rows []libraryRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM library WHERE organization_id = $1 ORDER BY label`, orgID)
	if err != nil {
		return nil, err
	}
	pages := make([]library.Page, 0, len(rows))
	for _, row := range rows {
		pages = append(pages, row.toModel())
	}
	return pages, nil
}

func (repo *libraryRepository) UpdateLibraryPage(ctx context.Context, p library.Page) (library.Page, error) {
	const q = `
		UPDATE library
		SET label = :label, icon = :icon, color = :color, tile_count = :tile_count,
		    tiles = :tiles, last_edited = :last_edited
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, libraryRowFrom(p))
	if err != nil {
		return library.Page{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return library.Page{}, library.ErrNotFound
	}
	return p, nil
}

func (repo *libraryRepository) DeleteLibraryPage(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM library WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return library.ErrNotFound
	}
	return nil
}
