package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/mpr/internal/models"
	"github.com/your-org/mpr/internal/queue"
	"github.com/your-org/mpr/pkg/dto"
)

// SessionHandler relays surveillance session commands to the watcher over
// the NATS control subject.
type SessionHandler struct {
	producer *queue.Producer
}

func NewSessionHandler(producer *queue.Producer) *SessionHandler {
	return &SessionHandler{producer: producer}
}

func (h *SessionHandler) Start(c *gin.Context) {
	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := uuid.New()
	cmd := models.SessionCommand{
		Action:    "start",
		SessionID: sessionID,
		Device:    req.Device,
	}
	if err := h.producer.PublishControl(cmd); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.SessionResponse{
		SessionID: sessionID,
		Status:    "starting",
		Device:    req.Device,
	})
}

func (h *SessionHandler) Stop(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	cmd := models.SessionCommand{
		Action:    "stop",
		SessionID: sessionID,
	}
	if err := h.producer.PublishControl(cmd); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, dto.SessionResponse{
		SessionID: sessionID,
		Status:    "stopping",
	})
}
