package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/mpr/internal/models"
	"github.com/your-org/mpr/internal/registry"
	"github.com/your-org/mpr/internal/storage"
	"github.com/your-org/mpr/pkg/dto"
)

// AdminHandler serves the moderation endpoints: case status, approval, and
// deletion. The router mounts these behind the admin key.
type AdminHandler struct {
	svc *registry.Service
}

func NewAdminHandler(svc *registry.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// SetStatus changes a case's status. Marking a missing person Found closes
// the case and emails the registered contact.
func (h *AdminHandler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := models.Status(req.Status)
	if status != models.StatusMissing && status != models.StatusFound {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	person, err := h.svc.SetStatus(c.Request.Context(), id, status)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	case errors.Is(err, registry.ErrNotification):
		c.JSON(http.StatusOK, gin.H{
			"person":  personResponse(person),
			"warning": "case-closed email could not be sent",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, personResponse(person))
}

// SetApproval changes a case's moderation state.
func (h *AdminHandler) SetApproval(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	var req dto.SetApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	approval := models.Approval(req.Approval)
	switch approval {
	case models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approval"})
		return
	}

	person, err := h.svc.SetApproval(c.Request.Context(), id, approval)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, personResponse(person))
}

// Delete removes a case together with its photo, locations, and sightings.
func (h *AdminHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
