package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"asset-maintenance-backend/internal/engine"
	"asset-maintenance-backend/internal/model"
)

// PostRequest handles POST /api/maintenance-requests: files an ad-hoc
// maintenance need, moving the asset under maintenance when warranted.
func (h *Handler) PostRequest(c *gin.Context) {
	var in engine.RequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.engine.CreateRequest(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

type patchRequestStatusRequest struct {
	Status model.RequestStatus `json:"status" binding:"required"`
}

// PatchRequestStatus handles PATCH /api/maintenance-requests/:id/status.
func (h *Handler) PatchRequestStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request ID"})
		return
	}

	var body patchRequestStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.engine.UpdateRequestStatus(c.Request.Context(), id, body.Status, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
