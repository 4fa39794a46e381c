package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"igx_tracker/internal/store"
)

// maxBulkBytes caps a decompressed bulk upload.
const maxBulkBytes = 32 << 20

var errBodyTooLarge = errors.New("request body too large")

// IngestFrame runs a single frame (the request body) through the pipeline.
func (h *Handler) IngestFrame(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw := strings.TrimSpace(body)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty frame"})
		return
	}

	out, err := h.Pipeline.Ingest(c.Request.Context(), raw)
	if err != nil {
		logrus.WithError(err).Error("ingest failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !out.Accepted {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"accepted": false,
			"error":    out.Frame.ErrorText(),
			"frame":    out.Frame,
		})
		return
	}
	c.JSON(http.StatusCreated, out)
}

// IngestBulk accepts newline-separated frames as a text body, a form field
// "data" or JSON {"data": "..."}; the body may be gzip encoded.
func (h *Handler) IngestBulk(c *gin.Context) {
	blob, err := bulkData(c)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(blob) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data provided"})
		return
	}

	sum, err := h.Pipeline.IngestBatch(c.Request.Context(), blob)
	if err != nil {
		logrus.WithError(err).WithField("batch_id", sum.BatchID).Error("bulk ingest aborted")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    err.Error(),
			"batch_id": sum.BatchID,
			"total":    sum.Total,
			"accepted": sum.Accepted,
			"rejected": sum.Rejected,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch_id": sum.BatchID,
		"total":    sum.Total,
		"accepted": sum.Accepted,
		"rejected": sum.Rejected,
		"message":  sum.Message(),
	})
}

func bulkData(c *gin.Context) (string, error) {
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		return c.PostForm("data"), nil
	}
	body, err := readBody(c)
	if err != nil {
		return "", err
	}
	switch c.ContentType() {
	case gin.MIMEJSON:
		var req struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return "", fmt.Errorf("invalid JSON body: %w", err)
		}
		return req.Data, nil
	case gin.MIMEPOSTForm:
		values, err := url.ParseQuery(body)
		if err != nil {
			return "", fmt.Errorf("invalid form body: %w", err)
		}
		return values.Get("data"), nil
	default:
		return body, nil
	}
}

// readBody returns the request body, decompressing gzip when announced.
func readBody(c *gin.Context) (string, error) {
	var r io.Reader = c.Request.Body
	if strings.EqualFold(c.GetHeader("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(c.Request.Body)
		if err != nil {
			return "", fmt.Errorf("invalid gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	b, err := io.ReadAll(io.LimitReader(r, maxBulkBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxBulkBytes {
		return "", errBodyTooLarge
	}
	return string(b), nil
}

// ListFrames lists audit records, newest first.
func (h *Handler) ListFrames(c *gin.Context) {
	var filter store.FrameFilter
	if raw := c.Query("processed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid processed"})
			return
		}
		filter.Processed = &v
	}
	var ok bool
	if filter.DeviceID, ok = queryUint(c, "device_id"); !ok {
		return
	}
	if filter.Limit, ok = queryLimit(c); !ok {
		return
	}

	frames, err := h.Store.ListFrames(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, frames)
}

func (h *Handler) GetFrame(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	frame, err := h.Store.GetFrame(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, frame)
}
