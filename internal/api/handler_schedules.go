package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"asset-maintenance-backend/internal/engine"
)

// PostSchedule handles POST /api/maintenance-schedules: creates a
// recurring maintenance obligation with its initial due date.
func (h *Handler) PostSchedule(c *gin.Context) {
	var in engine.ScheduleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sched, err := h.engine.CreateSchedule(c.Request.Context(), in, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sched)
}

// GetDueSchedules handles GET /api/maintenance-schedules/due: active
// schedules due within the given number of days (default 0, i.e. due
// right now).
func (h *Handler) GetDueSchedules(c *gin.Context) {
	withinDays := 0
	if v := c.Query("within_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid within_days"})
			return
		}
		withinDays = n
	}

	schedules, err := h.store.DueSchedules(c.Request.Context(), time.Now().UTC(), withinDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query due schedules"})
		return
	}
	c.JSON(http.StatusOK, schedules)
}
