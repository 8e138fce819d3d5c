package model

import "time"

// PushSubscription holds the information for a browser push
// subscription, mapped to the assets the subscriber wants due-date
// alerts for.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Assets []*Asset `gorm:"many2many:subscription_asset_mapping;"`
}
