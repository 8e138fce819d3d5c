package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"asset-maintenance-backend/internal/model"
	"asset-maintenance-backend/internal/recurrence"
)

// Store defines the read-side database operations shared by the API
// and the due-schedule scanner. Multi-entity mutations live in the
// engine, which composes the transaction-scoped helpers below.
type Store interface {
	DB() *gorm.DB
	DueSchedules(ctx context.Context, now time.Time, withinDays int) ([]model.MaintenanceSchedule, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// DueSchedules returns active schedules whose next due date falls
// within the given number of days from now. withinDays 0 means due or
// overdue right now.
func (s *gormStore) DueSchedules(ctx context.Context, now time.Time, withinDays int) ([]model.MaintenanceSchedule, error) {
	horizon := now.AddDate(0, 0, withinDays)
	var schedules []model.MaintenanceSchedule
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND next_due_date IS NOT NULL AND next_due_date <= ?", true, horizon).
		Order("next_due_date").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}
	return schedules, nil
}

// --- Transaction-scoped helpers used by the engine ---

// LockSchedule loads a schedule row under a row lock so that two
// concurrent advancements of the same schedule serialize instead of
// both reading the same stale base.
func LockSchedule(tx *gorm.DB, id int64) (*model.MaintenanceSchedule, error) {
	var s model.MaintenanceSchedule
	if err := withRowLock(tx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// LockUsageSchedules loads the asset's active usage-based schedules
// under row locks, for threshold evaluation.
func LockUsageSchedules(tx *gorm.DB, assetID int64) ([]model.MaintenanceSchedule, error) {
	var schedules []model.MaintenanceSchedule
	err := withRowLock(tx).
		Where("asset_id = ? AND recurrence_type = ? AND is_active = ?",
			assetID, model.RecurrenceUsageBased, true).
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// withRowLock adds SELECT ... FOR UPDATE on dialects that support it.
// SQLite serializes writers at the connection level, so the clause is a
// postgres concern.
func withRowLock(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Advance moves a schedule past a completed maintenance at
// completionTime. Once schedules deactivate and keep their due date as
// informational history. Usage-based schedules reset the consumption
// counter; their due date is only ever set by threshold evaluation.
// Everything else re-anchors at the completion time and recalculates.
func Advance(tx *gorm.DB, s *model.MaintenanceSchedule, completionTime time.Time) error {
	rule, err := recurrence.FromSchedule(s)
	if err != nil {
		return err
	}

	switch rule.(type) {
	case recurrence.Once:
		s.IsActive = false
	case recurrence.UsageBased:
		if s.UsageThreshold != nil {
			serviced := *s.UsageThreshold
			s.LastServiceUsageReading = &serviced
		}
	default:
		s.StartDate = completionTime
		next, err := recurrence.NextDueDate(rule, s.StartDate, completionTime)
		if err != nil {
			return err
		}
		s.NextDueDate = next
	}

	if err := tx.Save(s).Error; err != nil {
		return fmt.Errorf("failed to advance schedule %d: %w", s.ID, err)
	}
	return nil
}

// AdjustSparePart changes a part's on-hand quantity by delta, floored
// at zero in SQL so concurrent consumptions cannot drive the counter
// negative. Returns false when no such part exists.
func AdjustSparePart(tx *gorm.DB, partID int64, delta int) (bool, error) {
	res := tx.Model(&model.SparePart{}).
		Where("id = ?", partID).
		Update("quantity_on_hand", gorm.Expr(
			"CASE WHEN quantity_on_hand + ? > 0 THEN quantity_on_hand + ? ELSE 0 END",
			delta, delta))
	if res.Error != nil {
		return false, fmt.Errorf("failed to adjust spare part %d: %w", partID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CountActiveRequests counts the asset's maintenance requests still in
// {open, assigned, in progress}, optionally excluding one request
// (the one just resolved).
func CountActiveRequests(tx *gorm.DB, assetID int64, excludeID *int64) (int64, error) {
	q := tx.Model(&model.MaintenanceRequest{}).
		Where("asset_id = ? AND status IN ?", assetID,
			[]model.RequestStatus{model.RequestOpen, model.RequestAssigned, model.RequestInProgress})
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
