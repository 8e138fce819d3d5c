package model

import "time"

// UsageReading is one cumulative usage sample for an asset (hours,
// cycles, kilometres). The log is append-only; readings are assumed
// non-decreasing per asset but decreasing values are stored anyway and
// simply never trip a threshold.
type UsageReading struct {
	ID          int64     `gorm:"primaryKey"`
	AssetID     int64     `gorm:"index;not null"`
	Reading     float64   `gorm:"not null"`
	ReadingDate time.Time `gorm:"not null;index"`
	CreatedAt   time.Time

	// Associations
	Asset Asset `gorm:"constraint:OnDelete:CASCADE"`
}
