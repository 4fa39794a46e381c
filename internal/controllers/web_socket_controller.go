package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"igx_tracker/internal/middleware"
	"igx_tracker/internal/models"
)

const writeWait = 5 * time.Second

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // token auth, origin is not trusted anyway
	},
}

// PositionEvent is what live-feed clients receive for every accepted fix.
type PositionEvent struct {
	DeviceID  uint            `json:"device_id"`
	IMEI      string          `json:"imei"`
	Name      string          `json:"name"`
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Lat       decimal.Decimal `json:"lat"`
	Lon       decimal.Decimal `json:"lon"`
	SpeedKmh  decimal.Decimal `json:"speed_kmh"`
	CourseDeg int             `json:"course_deg"`
	IOFlags   map[string]any  `json:"io_flags"`
}

type feedClient struct {
	deviceID uint // 0 = every device
}

// PositionHub fans accepted positions out to websocket subscribers.
type PositionHub struct {
	clients   map[*websocket.Conn]feedClient
	broadcast chan PositionEvent
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
}

// NewPositionHub creates a hub and starts its broadcast loop.
func NewPositionHub() *PositionHub {
	hub := &PositionHub{
		clients:   make(map[*websocket.Conn]feedClient),
		broadcast: make(chan PositionEvent, 100),
		done:      make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *PositionHub) run() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.broadcast:
			h.send(ev)
		}
	}
}

func (h *PositionHub) send(ev PositionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, cl := range h.clients {
		if cl.deviceID != 0 && cl.deviceID != ev.DeviceID {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			logrus.WithError(err).WithField("conn_ptr", fmt.Sprintf("%p", conn)).Info("dropping live feed client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Close stops the broadcast loop and disconnects every client.
func (h *PositionHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for conn := range h.clients {
			conn.Close()
			delete(h.clients, conn)
		}
	})
}

func (h *PositionHub) register(conn *websocket.Conn, cl feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = cl
	logrus.WithFields(logrus.Fields{
		"device_id": cl.deviceID,
		"conn_ptr":  fmt.Sprintf("%p", conn),
	}).Info("live feed client registered")
}

func (h *PositionHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// Clients returns the number of connected subscribers.
func (h *PositionHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// PublishPosition queues pos for broadcast; it never blocks the pipeline.
func (h *PositionHub) PublishPosition(pos *models.Position, dev *models.Device) {
	ev := PositionEvent{
		DeviceID:  pos.DeviceID,
		Seq:       pos.Seq,
		Timestamp: pos.Timestamp,
		Lat:       pos.Lat,
		Lon:       pos.Lon,
		SpeedKmh:  pos.SpeedKmh,
		CourseDeg: pos.CourseDeg,
		IOFlags:   pos.IOFlags,
	}
	if dev != nil {
		ev.IMEI = dev.IMEI
		ev.Name = dev.DisplayName()
	}
	select {
	case h.broadcast <- ev:
	default:
		logrus.Warn("live feed channel full, dropping position")
	}
}

// HandlePositionWebSocket authenticates with ?token= and streams positions,
// optionally narrowed with ?device_id=.
func (h *Handler) HandlePositionWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
		return
	}
	claims, err := middleware.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if claims.Role != roleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		return
	}

	var cl feedClient
	if raw := c.Query("device_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device_id"})
			return
		}
		cl.deviceID = uint(id)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	h.Hub.register(conn, cl)
	defer h.Hub.unregister(conn)

	// The feed is one-way; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).Debug("live feed read ended")
			}
			return
		}
	}
}
