package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"igx_tracker/internal/store"
)

// ListPositions lists stored fixes, newest first.
func (h *Handler) ListPositions(c *gin.Context) {
	var (
		filter store.PositionFilter
		ok     bool
	)
	if filter.DeviceID, ok = queryUint(c, "device_id"); !ok {
		return
	}
	if filter.Limit, ok = queryLimit(c); !ok {
		return
	}
	positions, err := h.Store.ListPositions(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

// ListLogs returns the processing log, newest first.
func (h *Handler) ListLogs(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		return
	}
	logs, err := h.Store.ListLogs(c.Request.Context(), limit)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
