package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/offersync/app/models"
)

// InstanceGormRepository is the GORM InstanceRepository.
type InstanceGormRepository struct {
	db *gorm.DB
}

func NewInstanceGormRepository(db *gorm.DB) *InstanceGormRepository {
	return &InstanceGormRepository{db: db}
}

func (r *InstanceGormRepository) Current(ctx context.Context) (models.Instance, error) {
	var in models.Instance
	err := r.db.WithContext(ctx).Order("id desc").First(&in).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Instance{}, ErrNotFound
	}
	if err != nil {
		return models.Instance{}, fmt.Errorf("repositories: current instance: %w", err)
	}
	return in, nil
}

func (r *InstanceGormRepository) Create(ctx context.Context, in *models.Instance) error {
	if err := r.db.WithContext(ctx).Create(in).Error; err != nil {
		return fmt.Errorf("repositories: create instance: %w", err)
	}
	return nil
}
