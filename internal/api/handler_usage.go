package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type postUsageReadingRequest struct {
	Reading     float64    `json:"reading" binding:"required"`
	ReadingDate *time.Time `json:"reading_date"`
}

// PostUsageReading handles POST /api/assets/:asset_id/usage-readings:
// appends a cumulative usage sample and reports which usage-based
// schedules became due because of it.
func (h *Handler) PostUsageReading(c *gin.Context) {
	assetID, err := strconv.ParseInt(c.Param("asset_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset ID"})
		return
	}

	var req postUsageReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	readingDate := now
	if req.ReadingDate != nil {
		readingDate = *req.ReadingDate
	}

	triggered, err := h.engine.RecordUsageReading(c.Request.Context(), assetID, req.Reading, readingDate, now)
	if err != nil {
		respondError(c, err)
		return
	}
	if triggered == nil {
		triggered = []int64{}
	}
	c.JSON(http.StatusCreated, gin.H{"triggered_schedules": triggered})
}
