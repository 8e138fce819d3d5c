package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"asset-maintenance-backend/internal/engine"
	"asset-maintenance-backend/internal/mw"
	"asset-maintenance-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, eng *engine.Engine, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, eng, webpushOptions)

	// Rate limit: 10 requests per second with a burst of 5
	rateLimiter := mw.RateLimiter(rate.Limit(10), 5)

	// Cache read endpoints briefly; the due list only moves when a log
	// is recorded or a reading trips a threshold.
	cacheStore := cache.New(time.Minute, 10*time.Minute)
	caching := mw.Cache(cacheStore, time.Minute)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/maintenance-logs", handler.PostLog)
		api.DELETE("/maintenance-logs/:id", handler.DeleteLog)

		api.POST("/maintenance-schedules", handler.PostSchedule)
		api.GET("/maintenance-schedules/due", caching, handler.GetDueSchedules)

		api.POST("/maintenance-requests", handler.PostRequest)
		api.PATCH("/maintenance-requests/:id/status", handler.PatchRequestStatus)

		api.POST("/assets/:asset_id/usage-readings", handler.PostUsageReading)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
