package repositories

import (
	"context"

	"gorm.io/gorm"
)

type txReposGorm struct {
	products  ProductRepository
	offers    HistoryStore
	instances InstanceRepository
}

func (r *txReposGorm) Products() ProductRepository   { return r.products }
func (r *txReposGorm) Offers() HistoryStore          { return r.offers }
func (r *txReposGorm) Instances() InstanceRepository { return r.instances }

// TxManagerGorm runs callbacks inside a GORM transaction.
type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txReposGorm{
			products:  NewProductGormRepository(tx),
			offers:    NewOfferGormRepository(tx),
			instances: NewInstanceGormRepository(tx),
		})
	})
}
