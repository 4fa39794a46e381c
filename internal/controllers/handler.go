package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"igx_tracker/internal/config"
	"igx_tracker/internal/ingest"
	"igx_tracker/internal/store"
)

// CacheInvalidator drops cached device entries after edits.
type CacheInvalidator interface {
	Forget(ctx context.Context, imei string)
}

// Handler carries what the admin API needs. Cache may be nil.
type Handler struct {
	Store    store.Store
	Pipeline *ingest.Pipeline
	Auth     config.AuthConfig
	Hub      *PositionHub
	Cache    CacheInvalidator
}

// respondStoreError maps store errors onto HTTP statuses.
func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	logrus.WithError(err).WithField("path", c.FullPath()).Error("store error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "database error: " + err.Error()})
}

// paramID reads a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// queryUint reads an optional numeric query parameter; 0 when absent.
func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(n), true
}

func queryLimit(c *gin.Context) (int, bool) {
	n, ok := queryUint(c, "limit")
	return int(n), ok
}
