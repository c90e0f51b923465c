package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"maintenance-service/internal/db"
	"maintenance-service/internal/logging"
	"maintenance-service/internal/models"
	"maintenance-service/internal/providers"
	"maintenance-service/internal/schedule"
	"maintenance-service/internal/sweep"
)

// NotificationStore reads and acknowledges in-app notifications.
type NotificationStore interface {
	NotificationsByUserID(ctx context.Context, userID int64, limit, offset int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id [16]byte, userID int64) error
}

// Sweeper runs sweeps on demand and remembers the last one.
type Sweeper interface {
	Trigger(ctx context.Context, today time.Time) (sweep.Report, bool, error)
	Today() time.Time
	LastReport() (sweep.Report, bool)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store    NotificationStore
	sweeper  Sweeper
	hub      *providers.Hub
	pinger   Pinger
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

func NewHandler(store NotificationStore, sweeper Sweeper, hub *providers.Hub, pinger Pinger, logger *logging.Logger) *Handler {
	return &Handler{
		store:   store,
		sweeper: sweeper,
		hub:     hub,
		pinger:  pinger,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Errorf("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type triggerRequest struct {
	AsOf string `json:"as_of"`
}

// TriggerSweep runs a sweep and answers with its report. A sweep already in
// progress is joined rather than started again.
func (h *Handler) TriggerSweep(c *gin.Context) {
	var req triggerRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Errorf("Invalid request body for sweep: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	today := h.sweeper.Today()
	if req.AsOf != "" {
		day, err := schedule.ParseDay(req.AsOf)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
			return
		}
		today = day
	}

	// Sweeps are not bound to the request lifetime.
	rep, shared, err := h.sweeper.Trigger(context.WithoutCancel(c.Request.Context()), today)
	if err != nil {
		h.logger.Errorf("Manual sweep failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
		return
	}
	h.logger.Infof("Manual sweep %s done", rep.RunID)
	c.JSON(http.StatusOK, gin.H{"report": rep, "shared": shared})
}

func (h *Handler) LastSweep(c *gin.Context) {
	rep, ok := h.sweeper.LastReport()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No sweep has run yet"})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func (h *Handler) GetNotificationsByUserID(c *gin.Context) {
	userIDStr := c.Param("user_id")
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		h.logger.Errorf("Invalid user_id %s: %v", userIDStr, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit == 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	notifications, err := h.store.NotificationsByUserID(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to get notifications for user_id %d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}

	h.logger.Debugf("Retrieved %d notifications for user_id %d", len(notifications), userID)
	c.JSON(http.StatusOK, notifications)
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification id"})
		return
	}
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	err = h.store.MarkNotificationRead(c.Request.Context(), id, userID)
	if errors.Is(err, db.ErrNotificationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		h.logger.Errorf("Failed to mark notification %s read: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification read"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Subscribe upgrades to a WebSocket that receives the user's in-app
// notifications as they are created.
func (h *Handler) Subscribe(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for user %d: %v", userID, err)
		return
	}
	if !h.hub.AddConnection(userID, conn) {
		h.logger.Warnf("Rejected WebSocket for user %d holding %d connections", userID, h.hub.Connected(userID))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"))
		_ = conn.Close()
		return
	}
	defer func() {
		h.hub.RemoveConnection(userID, conn)
		_ = conn.Close()
	}()

	// Client messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
