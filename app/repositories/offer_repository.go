package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/offersync/app/models"
)

// OfferGormRepository is the GORM HistoryStore.
type OfferGormRepository struct {
	db *gorm.DB
}

func NewOfferGormRepository(db *gorm.DB) *OfferGormRepository {
	return &OfferGormRepository{db: db}
}

func (r *OfferGormRepository) Append(ctx context.Context, offers ...*models.Offer) error {
	if len(offers) == 0 {
		return nil
	}
	for _, o := range offers {
		if !o.Status.Valid() {
			return fmt.Errorf("repositories: append offer: invalid status %q", o.Status)
		}
		if o.ItemsInStock < 0 {
			return fmt.Errorf("repositories: append offer: negative stock %d", o.ItemsInStock)
		}
		o.AcquiredOn = o.AcquiredOn.UTC()
	}
	if err := r.db.WithContext(ctx).Create(offers).Error; err != nil {
		return fmt.Errorf("repositories: append offers: %w", err)
	}
	return bumpGeneration(ctx, r.db)
}

func (r *OfferGormRepository) Query(ctx context.Context, q OfferQuery) ([]models.Offer, error) {
	tx := r.db.WithContext(ctx).Model(&models.Offer{}).Where("product_id = ?", q.ProductID)
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}
	if !q.From.IsZero() {
		tx = tx.Where("acquired_on >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		tx = tx.Where("acquired_on <= ?", q.To.UTC())
	}
	if q.InStockOnly {
		tx = tx.Where("items_in_stock > ?", 0)
	}

	var offers []models.Offer
	if err := tx.Order("acquired_on asc, id asc").Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("repositories: query offers for product %d: %w", q.ProductID, err)
	}
	return offers, nil
}

func (r *OfferGormRepository) BulkTransition(ctx context.Context, productID uint, from, to models.OfferStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("product_id = ? AND status = ?", productID, from).
		Update("status", to)
	if res.Error != nil {
		return 0, fmt.Errorf("repositories: transition offers %s→%s for product %d: %w", from, to, productID, res.Error)
	}
	if res.RowsAffected > 0 {
		if err := bumpGeneration(ctx, r.db); err != nil {
			return 0, err
		}
	}
	return res.RowsAffected, nil
}

func (r *OfferGormRepository) MinActivePrice(ctx context.Context, productID uint) (int64, error) {
	var out struct{ Min int64 }
	err := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Select("COALESCE(MIN(price), 0) AS min").
		Where("product_id = ? AND status = ?", productID, models.OfferActive).
		Scan(&out).Error
	if err != nil {
		return 0, fmt.Errorf("repositories: min active price for product %d: %w", productID, err)
	}
	return out.Min, nil
}
