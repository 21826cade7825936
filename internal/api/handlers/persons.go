package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/mpr/internal/auth"
	"github.com/your-org/mpr/internal/models"
	"github.com/your-org/mpr/internal/registry"
	"github.com/your-org/mpr/internal/storage"
	"github.com/your-org/mpr/pkg/dto"
)

type PersonHandler struct {
	svc   *registry.Service
	db    *storage.PostgresStore
	minio *storage.MinIOStore
	// EmbedFn extracts a face embedding from image bytes.
	// Set this after the vision engine is initialized.
	EmbedFn func(imageData []byte) ([]float32, error)
	// MatchThreshold is the similarity floor for Search, shared with the
	// capture session's config.
	MatchThreshold float64
}

// formatTime renders timestamps in UTC RFC 3339 for API responses.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func NewPersonHandler(svc *registry.Service, db *storage.PostgresStore, minio *storage.MinIOStore) *PersonHandler {
	return &PersonHandler{svc: svc, db: db, minio: minio}
}

// Register accepts a multipart registration form with a reference photo.
func (h *PersonHandler) Register(c *gin.Context) {
	var form dto.PersonForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input, err := formToInput(form)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	photo, err := readPhoto(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	person, err := h.svc.Register(c.Request.Context(), input, photo)
	switch {
	case errors.Is(err, storage.ErrDuplicateIdentity):
		c.JSON(http.StatusConflict, gin.H{"error": "a case with this national ID already exists"})
		return
	case errors.Is(err, registry.ErrNotification):
		// The case is registered; only the confirmation email failed.
		c.JSON(http.StatusCreated, gin.H{
			"person":  personResponse(person),
			"warning": "confirmation email could not be sent",
		})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, personResponse(person))
}

func (h *PersonHandler) List(c *gin.Context) {
	persons, err := h.svc.List(c.Request.Context(), c.Query("national_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PersonResponse, 0, len(persons))
	for i := range persons {
		resp = append(resp, personResponse(&persons[i]))
	}
	c.JSON(http.StatusOK, gin.H{"persons": resp, "total": len(resp)})
}

func (h *PersonHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.svc.Get(c.Request.Context(), id)
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

// Update overwrites a case. Status and approval fields submitted without the
// admin key are ignored in favor of the stored values.
func (h *PersonHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	var form dto.PersonForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input, err := formToInput(form)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	photo, err := readPhoto(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	person, err := h.svc.Update(c.Request.Context(), id, input, photo, auth.IsAdmin(c))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	case errors.Is(err, storage.ErrDuplicateIdentity):
		c.JSON(http.StatusConflict, gin.H{"error": "a case with this national ID already exists"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, personResponse(person))
}

// Locations returns the person's detected location history, newest first.
func (h *PersonHandler) Locations(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	locations, err := h.svc.Locations(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.LocationResponse, 0, len(locations))
	for _, loc := range locations {
		resp = append(resp, dto.LocationResponse{
			ID:         loc.ID,
			PersonID:   loc.PersonID,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			DetectedAt: formatTime(loc.DetectedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"locations": resp, "total": len(resp)})
}

// Photo serves the stored reference photo.
func (h *PersonHandler) Photo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if person.PhotoKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no photo on file"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), person.PhotoKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// Search performs a face similarity search by uploading a photo.
func (h *PersonHandler) Search(c *gin.Context) {
	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read photo failed"})
		return
	}

	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision engine not initialized"})
		return
	}

	embedding, err := h.EmbedFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	threshold := h.searchThreshold()
	limit := 5

	matches, err := h.db.SearchFaces(c.Request.Context(), embedding, threshold, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := make([]dto.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, dto.SearchResult{
			PersonID: m.PersonID,
			Name:     m.Name,
			Score:    float64(m.Score),
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": len(results)})
}

func (h *PersonHandler) searchThreshold() float64 {
	if h.MatchThreshold > 0 {
		return h.MatchThreshold
	}
	return 0.4
}

// --- helpers ---

func readPhoto(c *gin.Context) ([]byte, error) {
	file, _, err := c.Request.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.New("invalid photo upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("read photo failed")
	}
	return data, nil
}

func formToInput(form dto.PersonForm) (registry.PersonInput, error) {
	dob, err := time.Parse("2006-01-02", form.DateOfBirth)
	if err != nil {
		return registry.PersonInput{}, errors.New("date_of_birth must be YYYY-MM-DD")
	}
	missingFrom, err := time.Parse("2006-01-02", form.MissingFrom)
	if err != nil {
		return registry.PersonInput{}, errors.New("missing_from must be YYYY-MM-DD")
	}

	gender := models.Gender(form.Gender)
	switch gender {
	case models.GenderMale, models.GenderFemale, models.GenderOther:
	default:
		return registry.PersonInput{}, errors.New("invalid gender")
	}

	input := registry.PersonInput{
		FirstName:   form.FirstName,
		LastName:    form.LastName,
		FatherName:  form.FatherName,
		DateOfBirth: dob,
		Address:     form.Address,
		Email:       form.Email,
		Phone:       form.Phone,
		NationalID:  form.NationalID,
		Gender:      gender,
		MissingFrom: missingFrom,
	}

	if form.Status != "" {
		status := models.Status(form.Status)
		if status != models.StatusMissing && status != models.StatusFound {
			return registry.PersonInput{}, errors.New("invalid status")
		}
		input.Status = status
	}
	if form.Approval != "" {
		approval := models.Approval(form.Approval)
		switch approval {
		case models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected:
		default:
			return registry.PersonInput{}, errors.New("invalid approval")
		}
		input.Approval = approval
	}

	return input, nil
}

func personResponse(p *models.Person) dto.PersonResponse {
	return dto.PersonResponse{
		ID:          p.ID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		FatherName:  p.FatherName,
		DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
		Address:     p.Address,
		Email:       p.Email,
		Phone:       p.Phone,
		NationalID:  p.NationalID,
		Gender:      string(p.Gender),
		PhotoKey:    p.PhotoKey,
		MissingFrom: p.MissingFrom.Format("2006-01-02"),
		Status:      string(p.Status),
		Approval:    string(p.Approval),
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
}
