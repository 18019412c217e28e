package stats

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore persists stats rows in Postgres.
type GormStore struct {
	db *gorm.DB
}

func OpenGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Stats{}); err != nil {
		return nil, fmt.Errorf("migrate stats: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (g *GormStore) Get(ctx context.Context, userID string) (Stats, bool, error) {
	var s Stats
	err := g.db.WithContext(ctx).First(&s, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Stats{}, false, nil
	}
	if err != nil {
		return Stats{}, false, err
	}
	return s, true, nil
}

func (g *GormStore) Update(ctx context.Context, userID string, patch Patch) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s Stats
		err := tx.First(&s, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s = Stats{UserID: userID}
		} else if err != nil {
			return err
		}
		applyPatch(&s, patch)
		return tx.Save(&s).Error
	})
}

func (g *GormStore) Leaderboard(ctx context.Context, limit int) ([]Stats, error) {
	var out []Stats
	q := g.db.WithContext(ctx).Order("wins DESC").Order("xp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
