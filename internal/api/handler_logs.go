package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"asset-maintenance-backend/internal/engine"
)

// PostLog handles POST /api/maintenance-logs: records one completed
// maintenance event and all of its side effects.
func (h *Handler) PostLog(c *gin.Context) {
	var in engine.LogInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logRow, err := h.engine.RecordLog(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, logRow)
}

// DeleteLog handles DELETE /api/maintenance-logs/:id: removes a log and
// restores the spare parts it consumed.
func (h *Handler) DeleteLog(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid log ID"})
		return
	}

	if err := h.engine.DeleteLog(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
