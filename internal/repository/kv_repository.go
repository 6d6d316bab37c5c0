package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"true-north/internal/model"
)

// KVRepository is the device-local key-value cache. No expiry, no transactions
// across keys; a single Set is atomic.
type KVRepository struct {
	db *gorm.DB
}

func NewKVRepository(db *gorm.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the value and whether the key exists.
func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var row model.KeyValue
	err := r.db.WithContext(ctx).Where("cache_key = ?", key).First(&row).Error
	switch {
	case err == nil:
		return row.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
}

// Set upserts the value under key.
func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	row := model.KeyValue{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}
