package model

import "time"

// SparePart tracks the on-hand stock of one consumable. QuantityOnHand
// is a shared counter; decrements are floored at zero at the SQL level.
type SparePart struct {
	ID             int64  `gorm:"primaryKey"`
	Name           string `gorm:"size:256;not null"`
	QuantityOnHand int    `gorm:"not null"`
	UnitCost       float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
