package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/offersync/app/models"
	"github.com/shashiranjanraj/offersync/pkg/database"
)

// ProductGormRepository is the GORM ProductRepository.
type ProductGormRepository struct {
	db *gorm.DB
}

func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

func (r *ProductGormRepository) FindByID(ctx context.Context, id uint) (models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("repositories: find product %d: %w", id, err)
	}
	return p, nil
}

func (r *ProductGormRepository) FindByName(ctx context.Context, name string) (models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("repositories: find product by name: %w", err)
	}
	return p, nil
}

func (r *ProductGormRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("name = ?", name).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("repositories: check product name: %w", err)
	}
	return count > 0, nil
}

func (r *ProductGormRepository) Create(ctx context.Context, p *models.Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("repositories: create product: %w", err)
	}
	return bumpGeneration(ctx, r.db)
}

func (r *ProductGormRepository) Update(ctx context.Context, id uint, f ProductFields) error {
	updates := map[string]interface{}{}
	if f.Name != nil {
		updates["name"] = *f.Name
	}
	if f.Description != nil {
		updates["description"] = *f.Description
	}
	if f.Active != nil {
		updates["active"] = *f.Active
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return fmt.Errorf("repositories: update product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Some drivers report zero rows when the values did not change.
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return bumpGeneration(ctx, r.db)
}

func (r *ProductGormRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return fmt.Errorf("repositories: delete product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return bumpGeneration(ctx, r.db)
}

func (r *ProductGormRepository) ListActive(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id asc").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("repositories: list active products: %w", err)
	}
	return products, nil
}

func (r *ProductGormRepository) ListActiveWithOffers(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id asc").
		Preload("Offers", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ? AND items_in_stock > ?", models.OfferActive, 0).
				Order("acquired_on asc, id asc")
		}).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("repositories: list active products with offers: %w", err)
	}
	return products, nil
}

func (r *ProductGormRepository) CatalogGeneration(ctx context.Context) (int64, error) {
	return currentGeneration(ctx, r.db)
}
