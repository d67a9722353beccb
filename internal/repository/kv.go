package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/kv"
)

// KVRepository is the SQL backed kv.Store.
type KVRepository struct {
	db *sqlx.DB
}

var _ kv.Store = (*KVRepository)(nil)

func NewKVRepository(db *sqlx.DB) *KVRepository {
	return &KVRepository{db: db}
}

func (r *KVRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM kv WHERE storage_key = $1`, key)
	if err == sql.ErrNoRows {
		return "", kv.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv (storage_key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (storage_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	return err
}

func (r *KVRepository) Remove(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE storage_key = $1`, key)
	return err
}

// RemovePrefix compares with substr instead of LIKE so keys may contain % and _.
func (r *KVRepository) RemovePrefix(ctx context.Context, prefix string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM kv WHERE substr(storage_key, 1, length(CAST($1 AS TEXT))) = CAST($1 AS TEXT)`, prefix)
	return err
}
