package models

import "time"

// OfferStatus is the lifecycle state of an offer snapshot.
type OfferStatus string

const (
	// OfferActive marks the latest ingested generation for a product.
	OfferActive OfferStatus = "active"
	// OfferHistoric marks every superseded generation.
	OfferHistoric OfferStatus = "historic"
	// OfferDeleted is reserved; nothing writes it yet.
	OfferDeleted OfferStatus = "deleted"
)

// Valid reports whether s is a known status.
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferActive, OfferHistoric, OfferDeleted:
		return true
	}
	return false
}

// Offer is one price/stock snapshot for a product. Offers are append-only;
// the only mutation is the bulk active→historic transition.
type Offer struct {
	ID           uint        `gorm:"primaryKey;autoIncrement"                                      json:"id"`
	ProductID    uint        `gorm:"not null;index:idx_offers_product_acquired,priority:1;index:idx_offers_product_status,priority:1" json:"product_id"`
	Price        int64       `gorm:"not null"                                                      json:"price"`
	ItemsInStock int64       `gorm:"not null;default:0"                                            json:"items_in_stock"`
	AcquiredOn   time.Time   `gorm:"not null;precision:6;index:idx_offers_product_acquired,priority:2" json:"acquired_on"`
	Status       OfferStatus `gorm:"size:16;not null;index:idx_offers_product_status,priority:2"   json:"status"`
}
