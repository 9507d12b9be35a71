package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edutenant-api/internal/models"
)

const settingColumns = "id, school_id, key, value, type, description, updated_by, created_at, updated_at"

// SettingRepository persists per-school settings.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository creates a setting repository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// List returns every stored setting of a school.
func (r *SettingRepository) List(ctx context.Context, schoolID string) ([]models.Setting, error) {
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, "SELECT "+settingColumns+" FROM settings WHERE school_id = $1 ORDER BY key", schoolID); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// Get returns a single setting.
func (r *SettingRepository) Get(ctx context.Context, schoolID, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, "SELECT "+settingColumns+" FROM settings WHERE school_id = $1 AND key = $2", schoolID, key); err != nil {
		return nil, err
	}
	return &setting, nil
}

const upsertSettingQuery = `INSERT INTO settings (id, school_id, key, value, type, description, updated_by, created_at, updated_at)
	VALUES (:id, :school_id, :key, :value, :type, :description, :updated_by, :created_at, :updated_at)
	ON CONFLICT (school_id, key) DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type,
		description = COALESCE(EXCLUDED.description, settings.description), updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`

func prepareSetting(setting *models.Setting, now time.Time) {
	if setting.ID == "" {
		setting.ID = uuid.NewString()
	}
	if setting.CreatedAt.IsZero() {
		setting.CreatedAt = now
	}
	setting.UpdatedAt = now
}

// Upsert inserts or replaces a setting.
func (r *SettingRepository) Upsert(ctx context.Context, setting *models.Setting) error {
	prepareSetting(setting, time.Now().UTC())
	if _, err := r.db.NamedExecContext(ctx, upsertSettingQuery, setting); err != nil {
		return fmt.Errorf("upsert setting %s: %w", setting.Key, err)
	}
	return nil
}

// UpsertMany writes all settings in one transaction.
func (r *SettingRepository) UpsertMany(ctx context.Context, settings []models.Setting) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range settings {
		prepareSetting(&settings[i], now)
		if _, err = tx.NamedExecContext(ctx, upsertSettingQuery, &settings[i]); err != nil {
			return fmt.Errorf("upsert setting %s: %w", settings[i].Key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit settings tx: %w", err)
	}
	return nil
}

// Delete removes a setting and reports whether a row existed.
func (r *SettingRepository) Delete(ctx context.Context, schoolID, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE school_id = $1 AND key = $2`, schoolID, key)
	if err != nil {
		return false, fmt.Errorf("delete setting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete setting: %w", err)
	}
	return affected > 0, nil
}
