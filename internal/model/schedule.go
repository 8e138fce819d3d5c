package model

import "time"

// RecurrenceType selects which recurrence interpretation applies to a
// schedule. Exactly one applies per record.
type RecurrenceType string

const (
	RecurrenceOnce       RecurrenceType = "once"
	RecurrenceDaily      RecurrenceType = "daily"
	RecurrenceWeekly     RecurrenceType = "weekly"
	RecurrenceMonthly    RecurrenceType = "monthly"
	RecurrenceYearly     RecurrenceType = "yearly"
	RecurrenceUsageBased RecurrenceType = "usage_based"
)

// MaintenanceSchedule represents one recurring maintenance obligation
// for one asset. For usage-based schedules NextDueDate stays nil until
// a submitted reading trips the threshold.
type MaintenanceSchedule struct {
	ID                 int64          `gorm:"primaryKey"`
	AssetID            int64          `gorm:"index;not null"`
	MaintenanceType    string         `gorm:"size:64;not null"`
	StartDate          time.Time      `gorm:"not null"`
	RecurrenceType     RecurrenceType `gorm:"size:16;not null"`
	RecurrenceInterval int
	DayOfWeek          *int // 0 = Sunday .. 6 = Saturday
	DayOfMonth         *int // 1..31, clamped to the target month
	MonthOfYear        *int // 1..12

	UsageThreshold          *float64
	UsageUnit               string `gorm:"size:32"`
	LastServiceUsageReading *float64

	NextDueDate *time.Time `gorm:"index"`
	IsActive    bool       `gorm:"not null;default:true;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Associations
	Asset Asset `gorm:"constraint:OnDelete:CASCADE"`
}
