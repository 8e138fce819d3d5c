package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appdb "asset-maintenance-backend/internal/db"
	"asset-maintenance-backend/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, appdb.Migrate(gdb))
	t.Cleanup(func() {
		sqlDB, _ := gdb.DB()
		sqlDB.Close()
	})
	return gdb
}

func seedAsset(t *testing.T, db *gorm.DB, status model.AssetStatus, lifetimeYears int) *model.Asset {
	t.Helper()
	asset := model.Asset{Name: "CNC mill", Status: status, ExpectedLifetimeYears: lifetimeYears}
	require.NoError(t, db.Create(&asset).Error)
	return &asset
}

func at(y int, m time.Month, d, hh int) time.Time {
	return time.Date(y, m, d, hh, 0, 0, 0, time.UTC)
}

func TestRecordLog_AdvancesDailySchedule(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	sched := model.MaintenanceSchedule{
		AssetID:            asset.ID,
		MaintenanceType:    model.MaintenancePreventive,
		StartDate:          at(2026, time.January, 1, 8),
		RecurrenceType:     model.RecurrenceDaily,
		RecurrenceInterval: 30,
		IsActive:           true,
	}
	require.NoError(t, db.Create(&sched).Error)

	completion := at(2026, time.February, 3, 16)
	logRow, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:               asset.ID,
		MaintenanceScheduleID: &sched.ID,
		MaintenanceType:       model.MaintenancePreventive,
		StartDatetime:         at(2026, time.February, 3, 9),
		CompletionDatetime:    completion,
	})
	require.NoError(t, err)
	require.NotZero(t, logRow.ID)

	var got model.MaintenanceSchedule
	require.NoError(t, db.First(&got, sched.ID).Error)
	assert.True(t, got.IsActive)
	assert.Equal(t, completion.Unix(), got.StartDate.Unix(), "schedule re-anchors at the completion time")
	require.NotNil(t, got.NextDueDate)
	assert.Equal(t, completion.AddDate(0, 0, 30).Unix(), got.NextDueDate.Unix())

	var gotAsset model.Asset
	require.NoError(t, db.First(&gotAsset, asset.ID).Error)
	require.NotNil(t, gotAsset.LastMaintenanceDate)
	assert.Equal(t, completion.Unix(), gotAsset.LastMaintenanceDate.Unix())
}

func TestRecordLog_OnceScheduleIdempotent(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	due := at(2026, time.January, 10, 8)
	sched := model.MaintenanceSchedule{
		AssetID:         asset.ID,
		MaintenanceType: model.MaintenanceCorrective,
		StartDate:       due,
		RecurrenceType:  model.RecurrenceOnce,
		NextDueDate:     &due,
		IsActive:        true,
	}
	require.NoError(t, db.Create(&sched).Error)

	for i := 0; i < 2; i++ {
		_, err := eng.RecordLog(context.Background(), LogInput{
			AssetID:               asset.ID,
			MaintenanceScheduleID: &sched.ID,
			MaintenanceType:       model.MaintenanceCorrective,
			StartDatetime:         at(2026, time.January, 10, 9),
			CompletionDatetime:    at(2026, time.January, 10, 11),
		})
		require.NoError(t, err)

		var got model.MaintenanceSchedule
		require.NoError(t, db.First(&got, sched.ID).Error)
		assert.False(t, got.IsActive, "once schedules deactivate after firing")
		require.NotNil(t, got.NextDueDate)
		assert.Equal(t, due.Unix(), got.NextDueDate.Unix(), "due date stays as informational history")
	}
}

func TestRecordLog_UsageBasedAdvanceResetsCounter(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	threshold := 500.0
	lastService := 1000.0
	due := at(2026, time.January, 5, 8)
	sched := model.MaintenanceSchedule{
		AssetID:                 asset.ID,
		MaintenanceType:         model.MaintenancePreventive,
		StartDate:               at(2025, time.June, 1, 8),
		RecurrenceType:          model.RecurrenceUsageBased,
		UsageThreshold:          &threshold,
		UsageUnit:               "hours",
		LastServiceUsageReading: &lastService,
		NextDueDate:             &due,
		IsActive:                true,
	}
	require.NoError(t, db.Create(&sched).Error)

	_, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:               asset.ID,
		MaintenanceScheduleID: &sched.ID,
		MaintenanceType:       model.MaintenancePreventive,
		StartDatetime:         at(2026, time.January, 5, 9),
		CompletionDatetime:    at(2026, time.January, 5, 12),
	})
	require.NoError(t, err)

	var got model.MaintenanceSchedule
	require.NoError(t, db.First(&got, sched.ID).Error)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.LastServiceUsageReading)
	assert.Equal(t, threshold, *got.LastServiceUsageReading, "consumption counter resets to just-serviced")
	require.NotNil(t, got.NextDueDate)
	assert.Equal(t, due.Unix(), got.NextDueDate.Unix(), "calendar advancement never touches usage-based due dates")
}

func TestRecordLog_ConsumesSparePartsFlooredAtZero(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	part := model.SparePart{Name: "bearing", QuantityOnHand: 3, UnitCost: 12.5}
	require.NoError(t, db.Create(&part).Error)

	logRow, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:            asset.ID,
		MaintenanceType:    model.MaintenanceCorrective,
		StartDatetime:      at(2026, time.January, 5, 9),
		CompletionDatetime: at(2026, time.January, 5, 12),
		Parts:              []PartUse{{SparePartID: part.ID, Quantity: 5}},
	})
	require.NoError(t, err)

	var gotPart model.SparePart
	require.NoError(t, db.First(&gotPart, part.ID).Error)
	assert.Equal(t, 0, gotPart.QuantityOnHand, "on-hand quantity floors at zero, never negative")

	var lines []model.MaintenanceLogPart
	require.NoError(t, db.Where("maintenance_log_id = ?", logRow.ID).Find(&lines).Error)
	require.Len(t, lines, 1)
	assert.Equal(t, 12.5, lines[0].UnitCost, "consumption cost recorded at time of use")
}

func TestRecordLog_AtomicOnMissingSparePart(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	part := model.SparePart{Name: "filter", QuantityOnHand: 10}
	require.NoError(t, db.Create(&part).Error)

	due := at(2026, time.March, 1, 8)
	sched := model.MaintenanceSchedule{
		AssetID:            asset.ID,
		MaintenanceType:    model.MaintenancePreventive,
		StartDate:          at(2026, time.January, 1, 8),
		RecurrenceType:     model.RecurrenceMonthly,
		RecurrenceInterval: 1,
		NextDueDate:        &due,
		IsActive:           true,
	}
	require.NoError(t, db.Create(&sched).Error)

	_, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:               asset.ID,
		MaintenanceScheduleID: &sched.ID,
		MaintenanceType:       model.MaintenancePreventive,
		StartDatetime:         at(2026, time.March, 1, 9),
		CompletionDatetime:    at(2026, time.March, 1, 12),
		Parts: []PartUse{
			{SparePartID: part.ID, Quantity: 2},
			{SparePartID: 9999, Quantity: 1},
		},
	})
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "spare part", nfe.Entity)

	// Nothing may have been applied: no log row, stock untouched,
	// schedule not advanced, asset dates unchanged.
	var logCount int64
	db.Model(&model.MaintenanceLog{}).Count(&logCount)
	assert.Equal(t, int64(0), logCount)

	var gotPart model.SparePart
	require.NoError(t, db.First(&gotPart, part.ID).Error)
	assert.Equal(t, 10, gotPart.QuantityOnHand)

	var gotSched model.MaintenanceSchedule
	require.NoError(t, db.First(&gotSched, sched.ID).Error)
	require.NotNil(t, gotSched.NextDueDate)
	assert.Equal(t, due.Unix(), gotSched.NextDueDate.Unix())

	var gotAsset model.Asset
	require.NoError(t, db.First(&gotAsset, asset.ID).Error)
	assert.Nil(t, gotAsset.LastMaintenanceDate)
}

func TestRecordLog_Validation(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	_, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:            asset.ID,
		MaintenanceType:    model.MaintenanceCorrective,
		StartDatetime:      at(2026, time.January, 5, 12),
		CompletionDatetime: at(2026, time.January, 5, 9), // before start
	})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = eng.RecordLog(context.Background(), LogInput{
		AssetID:            99999,
		MaintenanceType:    model.MaintenanceCorrective,
		StartDatetime:      at(2026, time.January, 5, 9),
		CompletionDatetime: at(2026, time.January, 5, 12),
	})
	var nfe *NotFoundError
	assert.ErrorAs(t, err, &nfe)
}

func TestRecordLog_ResolvesLinkedRequest(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusUnderMaintenance, 0)

	req := model.MaintenanceRequest{AssetID: asset.ID, Title: "spindle noise", Status: model.RequestInProgress}
	require.NoError(t, db.Create(&req).Error)

	completion := at(2026, time.January, 6, 15)
	_, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:              asset.ID,
		MaintenanceRequestID: &req.ID,
		MaintenanceType:      model.MaintenanceCorrective,
		Summary:              "replaced spindle bearing",
		StartDatetime:        at(2026, time.January, 6, 9),
		CompletionDatetime:   completion,
	})
	require.NoError(t, err)

	var gotReq model.MaintenanceRequest
	require.NoError(t, db.First(&gotReq, req.ID).Error)
	assert.Equal(t, model.RequestResolved, gotReq.Status)
	require.NotNil(t, gotReq.ResolvedAt)
	assert.Equal(t, completion.Unix(), gotReq.ResolvedAt.Unix())
	assert.Equal(t, "replaced spindle bearing", gotReq.Resolution)

	var gotAsset model.Asset
	require.NoError(t, db.First(&gotAsset, asset.ID).Error)
	assert.Equal(t, model.StatusOperational, gotAsset.Status, "no active requests remain")
}

func TestRecordLog_ClosedRequestLeftAlone(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	req := model.MaintenanceRequest{AssetID: asset.ID, Title: "done already", Status: model.RequestClosed}
	require.NoError(t, db.Create(&req).Error)

	_, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:              asset.ID,
		MaintenanceRequestID: &req.ID,
		MaintenanceType:      model.MaintenanceCorrective,
		StartDatetime:        at(2026, time.January, 6, 9),
		CompletionDatetime:   at(2026, time.January, 6, 15),
	})
	require.NoError(t, err)

	var gotReq model.MaintenanceRequest
	require.NoError(t, db.First(&gotReq, req.ID).Error)
	assert.Equal(t, model.RequestClosed, gotReq.Status)
}

func TestRecordLog_LifetimeFallback(t *testing.T) {
	testCases := []struct {
		name       string
		lifetime   int
		wantMonths int
	}{
		{"long-lived asset gets six months", 15, 6},
		{"short-lived asset gets one month", 2, 1},
		{"mid-range asset gets three months", 5, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db := newTestDB(t)
			eng := New(db)
			asset := seedAsset(t, db, model.StatusOperational, tc.lifetime)

			completion := at(2026, time.January, 6, 15)
			_, err := eng.RecordLog(context.Background(), LogInput{
				AssetID:            asset.ID,
				MaintenanceType:    model.MaintenancePreventive,
				StartDatetime:      at(2026, time.January, 6, 9),
				CompletionDatetime: completion,
			})
			require.NoError(t, err)

			var got model.Asset
			require.NoError(t, db.First(&got, asset.ID).Error)
			require.NotNil(t, got.NextMaintenanceDate)
			assert.Equal(t, completion.AddDate(0, tc.wantMonths, 0).Unix(), got.NextMaintenanceDate.Unix())
		})
	}
}

func TestRecordLog_FallbackSkippedWhenScheduleDrives(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 15)

	sched := model.MaintenanceSchedule{
		AssetID:            asset.ID,
		MaintenanceType:    model.MaintenancePreventive,
		StartDate:          at(2026, time.January, 1, 8),
		RecurrenceType:     model.RecurrenceDaily,
		RecurrenceInterval: 7,
		IsActive:           true,
	}
	require.NoError(t, db.Create(&sched).Error)

	_, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:               asset.ID,
		MaintenanceScheduleID: &sched.ID,
		MaintenanceType:       model.MaintenancePreventive,
		StartDatetime:         at(2026, time.January, 6, 9),
		CompletionDatetime:    at(2026, time.January, 6, 15),
	})
	require.NoError(t, err)

	var got model.Asset
	require.NoError(t, db.First(&got, asset.ID).Error)
	assert.Nil(t, got.NextMaintenanceDate, "schedule-driven assets skip the lifetime fallback")
}

func TestRecordLog_TerminalAssetNeverReactivated(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusRetired, 0)

	req := model.MaintenanceRequest{AssetID: asset.ID, Title: "stale request", Status: model.RequestOpen}
	require.NoError(t, db.Create(&req).Error)

	_, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:              asset.ID,
		MaintenanceRequestID: &req.ID,
		MaintenanceType:      model.MaintenanceCorrective,
		StartDatetime:        at(2026, time.January, 6, 9),
		CompletionDatetime:   at(2026, time.January, 6, 15),
	})
	require.NoError(t, err)

	var got model.Asset
	require.NoError(t, db.First(&got, asset.ID).Error)
	assert.Equal(t, model.StatusRetired, got.Status)
}

func TestRecordUsageReading_ThresholdCrossing(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	threshold := 500.0
	lastService := 1000.0
	sched := model.MaintenanceSchedule{
		AssetID:                 asset.ID,
		MaintenanceType:         model.MaintenancePreventive,
		StartDate:               at(2025, time.June, 1, 8),
		RecurrenceType:          model.RecurrenceUsageBased,
		UsageThreshold:          &threshold,
		UsageUnit:               "hours",
		LastServiceUsageReading: &lastService,
		IsActive:                true,
	}
	require.NoError(t, db.Create(&sched).Error)

	now := at(2026, time.January, 10, 12)

	triggered, err := eng.RecordUsageReading(context.Background(), asset.ID, 1400, at(2026, time.January, 10, 11), now)
	require.NoError(t, err)
	assert.Empty(t, triggered, "delta 400 stays below the threshold")

	var got model.MaintenanceSchedule
	require.NoError(t, db.First(&got, sched.ID).Error)
	assert.Nil(t, got.NextDueDate)

	triggered, err = eng.RecordUsageReading(context.Background(), asset.ID, 1600, at(2026, time.January, 11, 11), now)
	require.NoError(t, err)
	assert.Equal(t, []int64{sched.ID}, triggered)

	require.NoError(t, db.First(&got, sched.ID).Error)
	require.NotNil(t, got.NextDueDate)
	assert.Equal(t, now.Unix(), got.NextDueDate.Unix(), "crossing makes the schedule due immediately")

	var readings int64
	db.Model(&model.UsageReading{}).Where("asset_id = ?", asset.ID).Count(&readings)
	assert.Equal(t, int64(2), readings, "every reading lands in the append-only log")
}

func TestRecordUsageReading_NegativeRejected(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	_, err := eng.RecordUsageReading(context.Background(), asset.ID, -10, at(2026, time.January, 10, 11), at(2026, time.January, 10, 12))
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	var readings int64
	db.Model(&model.UsageReading{}).Count(&readings)
	assert.Equal(t, int64(0), readings)
}

func TestCreateSchedule_InitialDueDate(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)
	now := at(2026, time.January, 10, 12)

	t.Run("future start date is used verbatim", func(t *testing.T) {
		start := at(2026, time.March, 1, 8)
		sched, err := eng.CreateSchedule(context.Background(), ScheduleInput{
			AssetID:         asset.ID,
			MaintenanceType: model.MaintenancePreventive,
			StartDate:       start,
			RecurrenceType:  model.RecurrenceWeekly,
		}, now)
		require.NoError(t, err)
		require.NotNil(t, sched.NextDueDate)
		assert.Equal(t, start.Unix(), sched.NextDueDate.Unix())
	})

	t.Run("past start date computes the next occurrence", func(t *testing.T) {
		sched, err := eng.CreateSchedule(context.Background(), ScheduleInput{
			AssetID:            asset.ID,
			MaintenanceType:    model.MaintenancePreventive,
			StartDate:          at(2025, time.June, 1, 8),
			RecurrenceType:     model.RecurrenceDaily,
			RecurrenceInterval: 3,
		}, now)
		require.NoError(t, err)
		require.NotNil(t, sched.NextDueDate)
		assert.Equal(t, now.AddDate(0, 0, 3).Unix(), sched.NextDueDate.Unix())
	})

	t.Run("usage-based starts with no due date", func(t *testing.T) {
		threshold := 250.0
		sched, err := eng.CreateSchedule(context.Background(), ScheduleInput{
			AssetID:         asset.ID,
			MaintenanceType: model.MaintenancePreventive,
			StartDate:       at(2025, time.June, 1, 8),
			RecurrenceType:  model.RecurrenceUsageBased,
			UsageThreshold:  &threshold,
			UsageUnit:       "cycles",
		}, now)
		require.NoError(t, err)
		assert.Nil(t, sched.NextDueDate)
		require.NotNil(t, sched.LastServiceUsageReading)
		assert.Equal(t, 0.0, *sched.LastServiceUsageReading)
	})

	t.Run("unknown recurrence type rejected", func(t *testing.T) {
		_, err := eng.CreateSchedule(context.Background(), ScheduleInput{
			AssetID:         asset.ID,
			MaintenanceType: model.MaintenancePreventive,
			StartDate:       at(2025, time.June, 1, 8),
			RecurrenceType:  "fortnightly",
		}, now)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestRequestLifecycle_StatusReversion(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)
	now := at(2026, time.January, 10, 12)

	first, err := eng.CreateRequest(context.Background(), RequestInput{AssetID: asset.ID, Title: "leaking coolant"})
	require.NoError(t, err)
	second, err := eng.CreateRequest(context.Background(), RequestInput{AssetID: asset.ID, Title: "worn belt"})
	require.NoError(t, err)

	var gotAsset model.Asset
	require.NoError(t, db.First(&gotAsset, asset.ID).Error)
	assert.Equal(t, model.StatusUnderMaintenance, gotAsset.Status)

	_, err = eng.UpdateRequestStatus(context.Background(), first.ID, model.RequestResolved, now)
	require.NoError(t, err)
	require.NoError(t, db.First(&gotAsset, asset.ID).Error)
	assert.Equal(t, model.StatusUnderMaintenance, gotAsset.Status, "one open request keeps the asset under maintenance")

	_, err = eng.UpdateRequestStatus(context.Background(), second.ID, model.RequestResolved, now)
	require.NoError(t, err)
	require.NoError(t, db.First(&gotAsset, asset.ID).Error)
	assert.Equal(t, model.StatusOperational, gotAsset.Status, "resolving the last request reverts the asset")

	var gotReq model.MaintenanceRequest
	require.NoError(t, db.First(&gotReq, first.ID).Error)
	require.NotNil(t, gotReq.ResolvedAt)
}

func TestCreateRequest_AssignedStartsAssigned(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	tech := int64(42)
	req, err := eng.CreateRequest(context.Background(), RequestInput{
		AssetID:          asset.ID,
		Title:            "calibration drift",
		AssignedToUserID: &tech,
	})
	require.NoError(t, err)
	assert.Equal(t, model.RequestAssigned, req.Status)
}

func TestUpdateRequestStatus_CancellationRevertsAsset(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)
	now := at(2026, time.January, 10, 12)

	req, err := eng.CreateRequest(context.Background(), RequestInput{AssetID: asset.ID, Title: "false alarm"})
	require.NoError(t, err)

	_, err = eng.UpdateRequestStatus(context.Background(), req.ID, model.RequestCancelled, now)
	require.NoError(t, err)

	var gotAsset model.Asset
	require.NoError(t, db.First(&gotAsset, asset.ID).Error)
	assert.Equal(t, model.StatusOperational, gotAsset.Status)
}

func TestDeleteLog_RestoresSpareParts(t *testing.T) {
	db := newTestDB(t)
	eng := New(db)
	asset := seedAsset(t, db, model.StatusOperational, 0)

	part := model.SparePart{Name: "v-belt", QuantityOnHand: 8, UnitCost: 4}
	require.NoError(t, db.Create(&part).Error)

	logRow, err := eng.RecordLog(context.Background(), LogInput{
		AssetID:            asset.ID,
		MaintenanceType:    model.MaintenanceCorrective,
		StartDatetime:      at(2026, time.January, 6, 9),
		CompletionDatetime: at(2026, time.January, 6, 15),
		Parts:              []PartUse{{SparePartID: part.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	var gotPart model.SparePart
	require.NoError(t, db.First(&gotPart, part.ID).Error)
	require.Equal(t, 5, gotPart.QuantityOnHand)

	require.NoError(t, eng.DeleteLog(context.Background(), logRow.ID))

	require.NoError(t, db.First(&gotPart, part.ID).Error)
	assert.Equal(t, 8, gotPart.QuantityOnHand, "deleting a log reverses its consumption")

	var logCount int64
	db.Model(&model.MaintenanceLog{}).Count(&logCount)
	assert.Equal(t, int64(0), logCount)

	err = eng.DeleteLog(context.Background(), logRow.ID)
	var nfe *NotFoundError
	assert.ErrorAs(t, err, &nfe)
}
