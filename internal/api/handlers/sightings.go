package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/mpr/internal/storage"
	"github.com/your-org/mpr/pkg/dto"
)

type SightingHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewSightingHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *SightingHandler {
	return &SightingHandler{db: db, minio: minio}
}

// List returns recent sightings, optionally narrowed to one person.
func (h *SightingHandler) List(c *gin.Context) {
	var personID *uuid.UUID
	if pidStr := c.Query("person_id"); pidStr != "" {
		id, err := uuid.Parse(pidStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person_id"})
			return
		}
		personID = &id
	}

	limit := 50
	if limStr := c.Query("limit"); limStr != "" {
		if v, err := strconv.Atoi(limStr); err == nil {
			limit = v
		}
	}

	sightings, err := h.db.ListSightings(c.Request.Context(), personID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.SightingResponse, 0, len(sightings))
	for _, sg := range sightings {
		resp = append(resp, dto.SightingResponse{
			ID:         sg.ID,
			PersonID:   sg.PersonID,
			SessionID:  sg.SessionID,
			Score:      sg.Score,
			Notified:   sg.Notified,
			ClipKey:    sg.ClipKey,
			DetectedAt: formatTime(sg.DetectedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sightings": resp, "total": len(resp)})
}

// Clip serves a captured video clip by its object key.
func (h *SightingHandler) Clip(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || !strings.HasPrefix(key, "clips/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid clip key"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "clip not found"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="sighting.avi"`)
	c.Data(http.StatusOK, "video/x-msvideo", data)
}
