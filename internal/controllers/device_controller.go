package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"igx_tracker/internal/geo"
	"igx_tracker/internal/store"
)

const maxAliasLength = 64

func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.Store.ListDevices(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

// UpdateDevice sets or clears (empty string) a device alias. Nothing else on a
// device is editable.
func (h *Handler) UpdateDevice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Alias *string `json:"alias" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alias := strings.TrimSpace(*body.Alias)
	if len(alias) > maxAliasLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alias: must have at most 64 characters"})
		return
	}

	dev, err := h.Store.SetDeviceAlias(c.Request.Context(), id, alias)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if h.Cache != nil {
		h.Cache.Forget(c.Request.Context(), dev.IMEI)
	}
	c.JSON(http.StatusOK, dev)
}

// DeviceTrack renders the device's recent positions as a GeoJSON feature.
func (h *Handler) DeviceTrack(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	dev, err := h.Store.GetDevice(ctx, id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	positions, err := h.Store.ListPositions(ctx, store.PositionFilter{DeviceID: id, Limit: limit})
	if err != nil {
		respondStoreError(c, err)
		return
	}

	feature, err := geo.TrackFeature(*dev, positions)
	if errors.Is(err, geo.ErrEmptyTrack) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not build track: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, feature)
}
