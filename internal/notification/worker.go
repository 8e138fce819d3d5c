package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"asset-maintenance-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush
// library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// DueAlert is one "maintenance is due" event to fan out to the asset's
// subscribers.
type DueAlert struct {
	AssetID         int64
	ScheduleID      int64
	MaintenanceType string
	DueAt           time.Time
}

// WorkerPool manages a pool of workers for sending due-maintenance
// notifications.
type WorkerPool struct {
	size    int
	jobs    chan DueAlert
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan DueAlert, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// SetSender swaps the delivery implementation, used by tests.
func (wp *WorkerPool) SetSender(s Sender) {
	wp.sender = s
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			wp.notifySubscribers(ctx, alert)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends an alert to the worker pool.
func (wp *WorkerPool) Dispatch(alert DueAlert) {
	wp.jobs <- alert
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan DueAlert {
	return wp.jobs
}

// notifySubscribers fetches the asset's subscriptions and sends one
// notification per subscriber.
func (wp *WorkerPool) notifySubscribers(ctx context.Context, alert DueAlert) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_asset_mapping sam ON sam.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sam.asset_id = ?", alert.AssetID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for asset %d: %v", alert.AssetID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	assetLabel := fmt.Sprintf("%d", alert.AssetID)
	var asset model.Asset
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&asset, alert.AssetID).Error; err != nil {
		log.Printf("Error fetching asset %d: %v", alert.AssetID, err)
	} else if asset.Name != "" {
		assetLabel = asset.Name
	}

	log.Printf("Sending %d notifications for asset %d", len(subscriptions), alert.AssetID)
	message := fmt.Sprintf("%s maintenance for asset %s is due (%s)",
		alert.MaintenanceType, assetLabel, alert.DueAt.Format("2006-01-02"))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
