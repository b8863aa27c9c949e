package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/offersync/app/models"
)

// bumpGeneration advances the catalog generation on db. Called with the
// transaction handle it commits or rolls back together with the write it
// follows.
func bumpGeneration(ctx context.Context, db *gorm.DB) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&models.CatalogState{}).
		Where("id = ?", models.CatalogStateID).
		Updates(map[string]interface{}{
			"generation": gorm.Expr("generation + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("repositories: bump catalog generation: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.CatalogState{ID: models.CatalogStateID, Generation: 1, UpdatedAt: now}).Error
	if err != nil {
		return fmt.Errorf("repositories: seed catalog generation: %w", err)
	}
	return nil
}

func currentGeneration(ctx context.Context, db *gorm.DB) (int64, error) {
	var st models.CatalogState
	err := db.WithContext(ctx).Where("id = ?", models.CatalogStateID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("repositories: read catalog generation: %w", err)
	}
	return st.Generation, nil
}
