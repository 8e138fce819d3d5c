package scanner

import (
	"context"
	"log"
	"time"

	"asset-maintenance-backend/config"
	"asset-maintenance-backend/internal/notification"
	"asset-maintenance-backend/internal/store"
)

// Service periodically scans for maintenance schedules whose due date
// has arrived and dispatches alerts to the notification pool. It is the
// external batch process the engine expects; it only reads, the engine
// owns every mutation.
type Service struct {
	cfg   *config.Config
	store store.Store
	pool  *notification.WorkerPool

	// alerted remembers the due date last announced per schedule so a
	// schedule is not re-announced every tick until it advances.
	alerted map[int64]time.Time
}

// NewService creates a new due-schedule scanner.
func NewService(cfg *config.Config, s store.Store, pool *notification.WorkerPool) *Service {
	return &Service{
		cfg:     cfg,
		store:   s,
		pool:    pool,
		alerted: make(map[int64]time.Time),
	}
}

// Run starts the scan loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	log.Printf("Due-schedule scanner starting, interval %s", s.cfg.Scanner.Interval)
	ticker := time.NewTicker(s.cfg.Scanner.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.ScanOnce(ctx, time.Now()); err != nil {
				log.Printf("Due-schedule scan failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("Due-schedule scanner shutting down")
			return
		}
	}
}

// ScanOnce performs a single scan and returns the number of alerts
// dispatched.
func (s *Service) ScanOnce(ctx context.Context, now time.Time) (int, error) {
	schedules, err := s.store.DueSchedules(ctx, now, s.cfg.Scanner.WithinDays)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, sched := range schedules {
		if sched.NextDueDate == nil {
			continue
		}
		if last, ok := s.alerted[sched.ID]; ok && last.Equal(*sched.NextDueDate) {
			continue
		}
		s.pool.Dispatch(notification.DueAlert{
			AssetID:         sched.AssetID,
			ScheduleID:      sched.ID,
			MaintenanceType: sched.MaintenanceType,
			DueAt:           *sched.NextDueDate,
		})
		s.alerted[sched.ID] = *sched.NextDueDate
		dispatched++
	}
	if dispatched > 0 {
		log.Printf("Dispatched %d due-maintenance alerts", dispatched)
	}
	return dispatched, nil
}
