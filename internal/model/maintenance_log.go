package model

import "time"

// Maintenance work classifications. Preventive logs on assets with a
// known expected lifetime also refresh the asset's fallback
// next-maintenance date.
const (
	MaintenancePreventive = "preventive"
	MaintenanceCorrective = "corrective"
	MaintenancePredictive = "predictive"
	MaintenanceEmergency  = "emergency"
)

// MaintenanceLog records one completed maintenance event. It is an
// immutable history record; deleting one reverses its spare-part
// consumption.
type MaintenanceLog struct {
	ID                    int64  `gorm:"primaryKey"`
	AssetID               int64  `gorm:"index;not null"`
	MaintenanceScheduleID *int64 `gorm:"index"`
	MaintenanceRequestID  *int64 `gorm:"index"`
	MaintenanceType       string `gorm:"size:64;not null"`
	Summary               string
	StartDatetime         time.Time `gorm:"not null"`
	CompletionDatetime    time.Time `gorm:"not null"`
	Cost                  float64
	CreatedAt             time.Time
	UpdatedAt             time.Time

	// Associations
	Asset Asset                `gorm:"constraint:OnDelete:CASCADE"`
	Parts []MaintenanceLogPart `gorm:"foreignKey:MaintenanceLogID"`
}

// MaintenanceLogPart is one spare-part consumption line on a log,
// priced at time of use.
type MaintenanceLogPart struct {
	ID               int64 `gorm:"primaryKey"`
	MaintenanceLogID int64 `gorm:"index;not null"`
	SparePartID      int64 `gorm:"index;not null"`
	Quantity         int   `gorm:"not null"`
	UnitCost         float64
}
