package model

import "time"

// RequestStatus enumerates the lifecycle states of a maintenance
// request.
type RequestStatus string

const (
	RequestOpen       RequestStatus = "open"
	RequestAssigned   RequestStatus = "assigned"
	RequestInProgress RequestStatus = "in_progress"
	RequestOnHold     RequestStatus = "on_hold"
	RequestResolved   RequestStatus = "resolved"
	RequestClosed     RequestStatus = "closed"
	RequestCancelled  RequestStatus = "cancelled"
)

// Active reports whether the request still keeps its asset under
// maintenance. An asset reverts to operational only when none of its
// requests are active.
func (s RequestStatus) Active() bool {
	return s == RequestOpen || s == RequestAssigned || s == RequestInProgress
}

// MaintenanceRequest is an ad-hoc (non-scheduled) maintenance need.
type MaintenanceRequest struct {
	ID               int64         `gorm:"primaryKey"`
	AssetID          int64         `gorm:"index;not null"`
	Title            string        `gorm:"size:256;not null"`
	Description      string
	Status           RequestStatus `gorm:"size:16;not null;index"`
	AssignedToUserID *int64
	Resolution       string
	ResolvedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// Associations
	Asset Asset `gorm:"constraint:OnDelete:CASCADE"`
}
