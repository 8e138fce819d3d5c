package engine

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"asset-maintenance-backend/internal/model"
	"asset-maintenance-backend/internal/recurrence"
	"asset-maintenance-backend/internal/store"
)

// Engine orchestrates the side effects of maintenance events: spare
// part consumption, schedule advancement, request resolution and asset
// status transitions. Every operation runs as a single transaction;
// either all of its mutations commit or none do. The engine never
// reads a clock, callers pass the reference time explicitly.
type Engine struct {
	db *gorm.DB
}

// New creates an engine on top of the given database handle.
func New(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// PartUse is one spare-part consumption line on a log input.
type PartUse struct {
	SparePartID int64 `json:"spare_part_id"`
	Quantity    int   `json:"quantity"`
}

// LogInput describes one completed maintenance event to record.
type LogInput struct {
	AssetID               int64     `json:"asset_id"`
	MaintenanceScheduleID *int64    `json:"maintenance_schedule_id"`
	MaintenanceRequestID  *int64    `json:"maintenance_request_id"`
	MaintenanceType       string    `json:"maintenance_type"`
	Summary               string    `json:"summary"`
	StartDatetime         time.Time `json:"start_datetime"`
	CompletionDatetime    time.Time `json:"completion_datetime"`
	Cost                  float64   `json:"cost"`
	Parts                 []PartUse `json:"parts"`
}

// RecordLog records a completed maintenance event and applies all of
// its side effects atomically: log insert, spare-part decrement,
// schedule advancement, request resolution, asset status recompute and
// asset date stamps.
func (e *Engine) RecordLog(ctx context.Context, in LogInput) (*model.MaintenanceLog, error) {
	if in.MaintenanceType == "" {
		return nil, validationf("maintenance_type is required")
	}
	if in.StartDatetime.IsZero() || in.CompletionDatetime.IsZero() {
		return nil, validationf("start and completion datetimes are required")
	}
	if in.CompletionDatetime.Before(in.StartDatetime) {
		return nil, validationf("completion_datetime %s is before start_datetime %s",
			in.CompletionDatetime.Format(time.RFC3339), in.StartDatetime.Format(time.RFC3339))
	}
	for _, p := range in.Parts {
		if p.Quantity <= 0 {
			return nil, validationf("spare part %d: quantity must be positive", p.SparePartID)
		}
	}

	var logRow model.MaintenanceLog
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		asset, err := getAsset(tx, in.AssetID)
		if err != nil {
			return err
		}

		// Resolve spare parts up front so a missing part rejects the
		// whole operation before any mutation.
		parts, err := getSpareParts(tx, in.Parts)
		if err != nil {
			return err
		}

		logRow = model.MaintenanceLog{
			AssetID:               in.AssetID,
			MaintenanceScheduleID: in.MaintenanceScheduleID,
			MaintenanceRequestID:  in.MaintenanceRequestID,
			MaintenanceType:       in.MaintenanceType,
			Summary:               in.Summary,
			StartDatetime:         in.StartDatetime,
			CompletionDatetime:    in.CompletionDatetime,
			Cost:                  in.Cost,
		}
		for _, p := range in.Parts {
			logRow.Parts = append(logRow.Parts, model.MaintenanceLogPart{
				SparePartID: p.SparePartID,
				Quantity:    p.Quantity,
				UnitCost:    parts[p.SparePartID].UnitCost,
			})
		}
		if err := tx.Create(&logRow).Error; err != nil {
			return wrapDB("insert maintenance log", err)
		}

		for _, p := range in.Parts {
			found, err := store.AdjustSparePart(tx, p.SparePartID, -p.Quantity)
			if err != nil {
				return wrapDB("decrement spare part", err)
			}
			if !found {
				return &NotFoundError{Entity: "spare part", ID: p.SparePartID}
			}
		}

		if in.MaintenanceScheduleID != nil {
			if err := e.advanceSchedule(tx, *in.MaintenanceScheduleID, in.AssetID, in.CompletionDatetime); err != nil {
				return err
			}
		}

		if in.MaintenanceRequestID != nil {
			if err := resolveRequest(tx, *in.MaintenanceRequestID, in.AssetID, in.Summary, in.CompletionDatetime); err != nil {
				return err
			}
		}

		if !asset.Status.Terminal() {
			remaining, err := store.CountActiveRequests(tx, in.AssetID, in.MaintenanceRequestID)
			if err != nil {
				return wrapDB("count active requests", err)
			}
			if next, ok := statusOnRequestsSettled(asset.Status, remaining); ok {
				asset.Status = next
			}
		}

		completion := in.CompletionDatetime
		asset.LastMaintenanceDate = &completion
		// Coarse lifetime-tiered fallback for assets no schedule drives.
		if in.MaintenanceScheduleID == nil &&
			in.MaintenanceType == model.MaintenancePreventive &&
			asset.ExpectedLifetimeYears > 0 {
			next := completion.AddDate(0, fallbackIntervalMonths(asset.ExpectedLifetimeYears), 0)
			asset.NextMaintenanceDate = &next
		}
		if err := tx.Save(asset).Error; err != nil {
			return wrapDB("update asset", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &logRow, nil
}

// advanceSchedule locks and advances the schedule a log references.
func (e *Engine) advanceSchedule(tx *gorm.DB, scheduleID, assetID int64, completionTime time.Time) error {
	sched, err := store.LockSchedule(tx, scheduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entity: "maintenance schedule", ID: scheduleID}
		}
		return wrapDB("lock schedule", err)
	}
	if sched.AssetID != assetID {
		return validationf("schedule %d belongs to asset %d, not %d", scheduleID, sched.AssetID, assetID)
	}
	if _, err := recurrence.FromSchedule(sched); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	if err := store.Advance(tx, sched, completionTime); err != nil {
		if errors.Is(err, recurrence.ErrAdvanceLimit) {
			return &ValidationError{Msg: err.Error()}
		}
		return wrapDB("advance schedule", err)
	}
	return nil
}

// resolveRequest marks the request a log references as resolved, unless
// it is already closed.
func resolveRequest(tx *gorm.DB, requestID, assetID int64, summary string, completionTime time.Time) error {
	var req model.MaintenanceRequest
	if err := tx.First(&req, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entity: "maintenance request", ID: requestID}
		}
		return wrapDB("load request", err)
	}
	if req.AssetID != assetID {
		return validationf("request %d belongs to asset %d, not %d", requestID, req.AssetID, assetID)
	}
	if req.Status == model.RequestClosed {
		return nil
	}
	req.Status = model.RequestResolved
	req.ResolvedAt = &completionTime
	if summary != "" {
		req.Resolution = summary
	}
	if err := tx.Save(&req).Error; err != nil {
		return wrapDB("resolve request", err)
	}
	return nil
}

// DeleteLog removes a maintenance log and reverses its spare-part
// consumption inside the same transaction.
func (e *Engine) DeleteLog(ctx context.Context, id int64) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var logRow model.MaintenanceLog
		if err := tx.Preload("Parts").First(&logRow, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "maintenance log", ID: id}
			}
			return wrapDB("load maintenance log", err)
		}
		for _, p := range logRow.Parts {
			if _, err := store.AdjustSparePart(tx, p.SparePartID, p.Quantity); err != nil {
				return wrapDB("restore spare part", err)
			}
		}
		if err := tx.Where("maintenance_log_id = ?", id).Delete(&model.MaintenanceLogPart{}).Error; err != nil {
			return wrapDB("delete log parts", err)
		}
		if err := tx.Delete(&model.MaintenanceLog{}, id).Error; err != nil {
			return wrapDB("delete maintenance log", err)
		}
		return nil
	})
}

// RecordUsageReading appends a cumulative usage sample for an asset and
// evaluates the asset's active usage-based schedules against it. A
// schedule whose threshold is crossed becomes due immediately:
// next_due_date is set to now, not to a calendar recompute. The IDs of
// schedules that became due are returned.
func (e *Engine) RecordUsageReading(ctx context.Context, assetID int64, reading float64, readingDate, now time.Time) ([]int64, error) {
	if reading < 0 {
		return nil, validationf("usage reading must not be negative, got %g", reading)
	}
	if readingDate.IsZero() {
		readingDate = now
	}

	var triggered []int64
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAsset(tx, assetID); err != nil {
			return err
		}
		row := model.UsageReading{AssetID: assetID, Reading: reading, ReadingDate: readingDate}
		if err := tx.Create(&row).Error; err != nil {
			return wrapDB("insert usage reading", err)
		}

		schedules, err := store.LockUsageSchedules(tx, assetID)
		if err != nil {
			return wrapDB("lock usage schedules", err)
		}
		for i := range schedules {
			s := &schedules[i]
			if !recurrence.UsageDue(s, reading) {
				continue
			}
			due := now
			s.NextDueDate = &due
			if err := tx.Save(s).Error; err != nil {
				return wrapDB("mark schedule due", err)
			}
			triggered = append(triggered, s.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return triggered, nil
}

// ScheduleInput describes a new recurring maintenance obligation.
type ScheduleInput struct {
	AssetID            int64                `json:"asset_id"`
	MaintenanceType    string               `json:"maintenance_type"`
	StartDate          time.Time            `json:"start_date"`
	RecurrenceType     model.RecurrenceType `json:"recurrence_type"`
	RecurrenceInterval int                  `json:"recurrence_interval"`
	DayOfWeek          *int                 `json:"day_of_week"`
	DayOfMonth         *int                 `json:"day_of_month"`
	MonthOfYear        *int                 `json:"month_of_year"`
	UsageThreshold     *float64             `json:"usage_threshold"`
	UsageUnit          string               `json:"usage_unit"`
}

// CreateSchedule persists a new schedule with its initial due date: the
// start date itself when still in the future, otherwise the first
// occurrence computed from now. Usage-based schedules start with no due
// date at all; the first reading past the threshold sets one.
func (e *Engine) CreateSchedule(ctx context.Context, in ScheduleInput, now time.Time) (*model.MaintenanceSchedule, error) {
	if in.MaintenanceType == "" {
		return nil, validationf("maintenance_type is required")
	}
	if in.StartDate.IsZero() {
		return nil, validationf("start_date is required")
	}

	sched := model.MaintenanceSchedule{
		AssetID:            in.AssetID,
		MaintenanceType:    in.MaintenanceType,
		StartDate:          in.StartDate,
		RecurrenceType:     in.RecurrenceType,
		RecurrenceInterval: in.RecurrenceInterval,
		DayOfWeek:          in.DayOfWeek,
		DayOfMonth:         in.DayOfMonth,
		MonthOfYear:        in.MonthOfYear,
		UsageThreshold:     in.UsageThreshold,
		UsageUnit:          in.UsageUnit,
		IsActive:           true,
	}
	rule, err := recurrence.FromSchedule(&sched)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if u, ok := rule.(recurrence.UsageBased); ok {
		if u.Threshold <= 0 {
			return nil, validationf("usage-based schedules need a positive usage_threshold")
		}
		// Until the first service there is no consumption baseline;
		// start counting from zero.
		if sched.LastServiceUsageReading == nil {
			zero := 0.0
			sched.LastServiceUsageReading = &zero
		}
	}
	next, err := recurrence.NextDueDate(rule, sched.StartDate, now)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	sched.NextDueDate = next

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getAsset(tx, in.AssetID); err != nil {
			return err
		}
		if err := tx.Create(&sched).Error; err != nil {
			return wrapDB("insert schedule", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

// RequestInput describes a new ad-hoc maintenance need.
type RequestInput struct {
	AssetID          int64  `json:"asset_id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	AssignedToUserID *int64 `json:"assigned_to_user_id"`
}

// CreateRequest files a maintenance request. A request created with an
// assignee starts out assigned; filing against an operational asset
// moves the asset under maintenance.
func (e *Engine) CreateRequest(ctx context.Context, in RequestInput) (*model.MaintenanceRequest, error) {
	if in.Title == "" {
		return nil, validationf("title is required")
	}

	req := model.MaintenanceRequest{
		AssetID:          in.AssetID,
		Title:            in.Title,
		Description:      in.Description,
		Status:           model.RequestOpen,
		AssignedToUserID: in.AssignedToUserID,
	}
	if in.AssignedToUserID != nil {
		req.Status = model.RequestAssigned
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		asset, err := getAsset(tx, in.AssetID)
		if err != nil {
			return err
		}
		if err := tx.Create(&req).Error; err != nil {
			return wrapDB("insert request", err)
		}
		if next, ok := statusOnRequestCreated(asset.Status, in.AssignedToUserID != nil); ok {
			asset.Status = next
			if err := tx.Save(asset).Error; err != nil {
				return wrapDB("update asset", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

var knownRequestStatuses = map[model.RequestStatus]bool{
	model.RequestOpen:       true,
	model.RequestAssigned:   true,
	model.RequestInProgress: true,
	model.RequestOnHold:     true,
	model.RequestResolved:   true,
	model.RequestClosed:     true,
	model.RequestCancelled:  true,
}

// UpdateRequestStatus moves a request through its lifecycle and applies
// the asset status transition the move implies.
func (e *Engine) UpdateRequestStatus(ctx context.Context, id int64, newStatus model.RequestStatus, now time.Time) (*model.MaintenanceRequest, error) {
	if !knownRequestStatuses[newStatus] {
		return nil, validationf("unknown request status %q", newStatus)
	}

	var req model.MaintenanceRequest
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&req, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "maintenance request", ID: id}
			}
			return wrapDB("load request", err)
		}
		asset, err := getAsset(tx, req.AssetID)
		if err != nil {
			return err
		}

		wasActive := req.Status.Active()
		req.Status = newStatus
		if newStatus == model.RequestResolved && req.ResolvedAt == nil {
			req.ResolvedAt = &now
		}
		if err := tx.Save(&req).Error; err != nil {
			return wrapDB("update request", err)
		}

		switch {
		case wasActive && !newStatus.Active():
			remaining, err := store.CountActiveRequests(tx, req.AssetID, &req.ID)
			if err != nil {
				return wrapDB("count active requests", err)
			}
			if next, ok := statusOnRequestsSettled(asset.Status, remaining); ok {
				asset.Status = next
				if err := tx.Save(asset).Error; err != nil {
					return wrapDB("update asset", err)
				}
			}
		case newStatus == model.RequestAssigned || newStatus == model.RequestInProgress:
			if next, ok := statusOnRequestActive(asset.Status); ok {
				asset.Status = next
				if err := tx.Save(asset).Error; err != nil {
					return wrapDB("update asset", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// --- helpers ---

func getAsset(tx *gorm.DB, id int64) (*model.Asset, error) {
	var a model.Asset
	if err := tx.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "asset", ID: id}
		}
		return nil, wrapDB("load asset", err)
	}
	return &a, nil
}

func getSpareParts(tx *gorm.DB, uses []PartUse) (map[int64]model.SparePart, error) {
	if len(uses) == 0 {
		return nil, nil
	}
	ids := make([]int64, 0, len(uses))
	for _, u := range uses {
		ids = append(ids, u.SparePartID)
	}
	var parts []model.SparePart
	if err := tx.Find(&parts, ids).Error; err != nil {
		return nil, wrapDB("load spare parts", err)
	}
	byID := make(map[int64]model.SparePart, len(parts))
	for _, p := range parts {
		byID[p.ID] = p
	}
	for _, u := range uses {
		if _, ok := byID[u.SparePartID]; !ok {
			return nil, &NotFoundError{Entity: "spare part", ID: u.SparePartID}
		}
	}
	return byID, nil
}

// fallbackIntervalMonths maps an asset's expected lifetime to the
// default preventive interval used when no schedule drives the asset.
func fallbackIntervalMonths(lifetimeYears int) int {
	switch {
	case lifetimeYears >= 10:
		return 6
	case lifetimeYears <= 2:
		return 1
	default:
		return 3
	}
}
