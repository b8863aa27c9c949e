package models

import "time"

// Instance is the registration of this service with the vendor API. It is
// created by the first successful handshake and never changed afterwards.
type Instance struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	AccessToken string    `gorm:"size:512;not null;uniqueIndex"`
	CreatedAt   time.Time `gorm:"not null"`
}
