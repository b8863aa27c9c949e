// Package repositories persists instances, products and the offer history.
//
// Interfaces live next to their GORM implementations. Every constructor
// takes an explicit *gorm.DB; inside WithinTx the same constructors are
// called with the transaction handle.
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/shashiranjanraj/offersync/app/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("repositories: record not found")

// ErrDuplicate is returned when a write violates a unique index.
var ErrDuplicate = errors.New("repositories: duplicate record")

// InstanceRepository stores the vendor registration.
type InstanceRepository interface {
	// Current returns the most recently created instance or ErrNotFound.
	Current(ctx context.Context) (models.Instance, error)
	Create(ctx context.Context, in *models.Instance) error
}

// ProductFields lists the columns Update may change. Nil pointers are left
// untouched.
type ProductFields struct {
	Name        *string
	Description *string
	Active      *bool
}

// ProductRepository stores catalogue products.
type ProductRepository interface {
	FindByID(ctx context.Context, id uint) (models.Product, error)
	FindByName(ctx context.Context, name string) (models.Product, error)
	// NameTaken reports whether any product, active or not, uses name.
	NameTaken(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id uint, f ProductFields) error
	Delete(ctx context.Context, id uint) error
	// ListActive returns active products ordered by id.
	ListActive(ctx context.Context) ([]models.Product, error)
	// ListActiveWithOffers is ListActive with Offers preloaded: only offers
	// that are active and in stock.
	ListActiveWithOffers(ctx context.Context) ([]models.Product, error)
	// CatalogGeneration returns a counter that every product or offer write
	// advances, in the same transaction as the write.
	CatalogGeneration(ctx context.Context) (int64, error)
}

// OfferQuery filters a history scan. Zero values mean "no filter".
type OfferQuery struct {
	ProductID   uint
	Statuses    []models.OfferStatus
	From        time.Time
	To          time.Time
	InStockOnly bool
}

// HistoryStore is the append-only offer ledger.
type HistoryStore interface {
	Append(ctx context.Context, offers ...*models.Offer) error
	// Query returns offers ordered by acquired_on, then id.
	Query(ctx context.Context, q OfferQuery) ([]models.Offer, error)
	// BulkTransition moves every offer of productID in status from to status
	// to and returns the number of rows changed.
	BulkTransition(ctx context.Context, productID uint, from, to models.OfferStatus) (int64, error)
	// MinActivePrice returns the lowest active price for productID, or 0
	// when it has no active offers.
	MinActivePrice(ctx context.Context, productID uint) (int64, error)
}

// TxRepos exposes the repositories bound to a single transaction.
type TxRepos interface {
	Products() ProductRepository
	Offers() HistoryStore
	Instances() InstanceRepository
}

// TransactionManager hides begin/commit/rollback from the services.
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
