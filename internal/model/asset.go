package model

import "time"

// AssetStatus enumerates the operational states of an asset.
type AssetStatus string

const (
	StatusOperational      AssetStatus = "operational"
	StatusAvailable        AssetStatus = "available"
	StatusInUse            AssetStatus = "in_use"
	StatusUnderMaintenance AssetStatus = "under_maintenance"
	StatusRetired          AssetStatus = "retired"
	StatusDisposed         AssetStatus = "disposed"
	StatusLost             AssetStatus = "lost"
)

// Terminal reports whether the status is outside the
// operational/under-maintenance cycle. The engine never enters or
// leaves a terminal state; those transitions are external.
func (s AssetStatus) Terminal() bool {
	return s == StatusRetired || s == StatusDisposed || s == StatusLost
}

// Operational reports whether the asset counts as in service for the
// purposes of the maintenance state machine. "available" and "in_use"
// are context-specific spellings of the same thing.
func (s AssetStatus) Operational() bool {
	return s == StatusOperational || s == StatusAvailable || s == StatusInUse
}

// Asset represents one registered piece of equipment.
type Asset struct {
	ID                    int64       `gorm:"primaryKey"`
	Name                  string      `gorm:"size:256;not null"`
	Status                AssetStatus `gorm:"size:32;not null;index"`
	LastMaintenanceDate   *time.Time
	NextMaintenanceDate   *time.Time
	ExpectedLifetimeYears int
	CreatedAt             time.Time
	UpdatedAt             time.Time

	// Associations
	Schedules []MaintenanceSchedule `gorm:"foreignKey:AssetID"`
}
