package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/model"
	"github.com/lumenflow/portal/internal/realtime"
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetRepository interface {
	Create(ctx context.Context, asset *model.Asset) error
	Delete(ctx context.Context, id string) error
	ByID(ctx context.Context, id string) (*model.Asset, error)
	ByProjectIDs(ctx context.Context, projectIDs []string) ([]*model.Asset, error)
	CountByProjectIDs(ctx context.Context, projectIDs []string) (map[string]int, error)
}

type assetRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewAssetRepository(db *sqlx.DB, pub realtime.Publisher) AssetRepository {
	return &assetRepository{db: db, pub: pub}
}

func (r *assetRepository) Create(ctx context.Context, a *model.Asset) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO assets (id, project_id, name, storage_path, mime_type, size, uploaded_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.ProjectID, a.Name, a.StoragePath, a.MimeType, a.Size, a.UploadedBy, a.CreatedAt)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableAssets, realtime.Insert, a, nil)
	return nil
}

func (r *assetRepository) Delete(ctx context.Context, id string) error {
	old, err := r.ByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}

	notify(ctx, r.pub, TableAssets, realtime.Delete, nil, old)
	return nil
}

func (r *assetRepository) ByID(ctx context.Context, id string) (*model.Asset, error) {
	var a model.Asset
	err := r.db.GetContext(ctx, &a, `
		SELECT a.*, p.name AS project_name
		FROM assets a
		JOIN projects p ON p.id = a.project_id
		WHERE a.id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ByProjectIDs lists assets newest first, joined with their project name.
func (r *assetRepository) ByProjectIDs(ctx context.Context, projectIDs []string) ([]*model.Asset, error) {
	assets := []*model.Asset{}
	if len(projectIDs) == 0 {
		return assets, nil
	}

	query, args, err := sqlx.In(`
		SELECT a.*, p.name AS project_name
		FROM assets a
		JOIN projects p ON p.id = a.project_id
		WHERE a.project_id IN (?)
		ORDER BY a.created_at DESC
	`, projectIDs)
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &assets, r.db.Rebind(query), args...)
	return assets, err
}

func (r *assetRepository) CountByProjectIDs(ctx context.Context, projectIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(projectIDs) == 0 {
		return counts, nil
	}

	query, args, err := sqlx.In(`
		SELECT project_id, COUNT(*) AS n
		FROM assets
		WHERE project_id IN (?)
		GROUP BY project_id
	`, projectIDs)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ProjectID string `db:"project_id"`
		N         int    `db:"n"`
	}
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ProjectID] = row.N
	}
	return counts, nil
}
