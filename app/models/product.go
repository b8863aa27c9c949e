package models

import "time"

// Product is a locally owned catalogue entry mirrored at the vendor.
//
// Names are unique across all rows; an inactive row keeps its name so that a
// later registration under the same name reactivates it.
type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"      json:"id"`
	Name        string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"type:text"                     json:"description"`
	Active      bool      `gorm:"not null;index"                json:"active"`
	InstanceID  uint      `gorm:"not null;index"                json:"instance_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Offers []Offer `gorm:"foreignKey:ProductID" json:"offers,omitempty"`
}
