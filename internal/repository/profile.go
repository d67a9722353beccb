package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lumenflow/portal/internal/model"
)

type ProfileRepository interface {
	ByUserID(ctx context.Context, userID string) (*model.Profile, error)
	Create(ctx context.Context, profile *model.Profile) error
	Update(ctx context.Context, profile *model.Profile) error
	UpdateRole(ctx context.Context, userID, role string) error
	TouchLastSeen(ctx context.Context, userID string, at time.Time) error
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) ByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE user_id = $1`, userID)

	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.Role == "" {
		profile.Role = model.RoleClient
	}
	if profile.Locale == "" {
		profile.Locale = "en"
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, name, avatar_url, role, locale, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, profile.ID, profile.UserID, profile.Name, profile.AvatarURL, profile.Role, profile.Locale, profile.CreatedAt, profile.UpdatedAt)

	return err
}

// Update saves the self-editable fields.
func (r *profileRepository) Update(ctx context.Context, profile *model.Profile) error {
	profile.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE profiles
		SET name = $1, avatar_url = $2, locale = $3, updated_at = $4
		WHERE user_id = $5
	`, profile.Name, profile.AvatarURL, profile.Locale, profile.UpdatedAt, profile.UserID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrProfileNotFound)
}

func (r *profileRepository) UpdateRole(ctx context.Context, userID, role string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET role = $1, updated_at = $2 WHERE user_id = $3`,
		role, time.Now(), userID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrProfileNotFound)
}

func (r *profileRepository) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE profiles SET last_seen = $1 WHERE user_id = $2`, at, userID)
	return err
}
