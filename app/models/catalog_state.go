package models

import "time"

// CatalogState holds a single row whose Generation grows with every write to
// products or offers. Readers key derived data, such as the cached listing,
// on it.
type CatalogState struct {
	ID         uint      `gorm:"primaryKey"`
	Generation int64     `gorm:"not null;default:0"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (CatalogState) TableName() string { return "catalog_state" }

// CatalogStateID is the primary key of the only CatalogState row.
const CatalogStateID = 1
