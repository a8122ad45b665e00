package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/repository"
	"voyago/guide-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GuideHandler holds the guide service dependency.
type GuideHandler struct {
	guideService service.GuideService
}

// NewGuideHandler creates a new GuideHandler.
func NewGuideHandler(guideService service.GuideService) *GuideHandler {
	return &GuideHandler{guideService: guideService}
}

// --- Request Structs ---

type GuideProfileRequest struct {
	Specialties    []string               `json:"specialties" binding:"required,min=1"`
	Destinations   []domain.Destination   `json:"destinations" binding:"required,min=1"`
	Languages      []string               `json:"languages" binding:"required,min=1"`
	Description    string                 `json:"description" binding:"required"`
	Experience     domain.Experience      `json:"experience"`
	Certifications []domain.Certification `json:"certifications"`
	Pricing        domain.Pricing         `json:"pricing" binding:"required"`
	Status         domain.GuideStatus     `json:"status"`
}

type AvailabilityRequest struct {
	Date        time.Time         `json:"date" binding:"required"`
	IsAvailable *bool             `json:"isAvailable"`
	TimeSlots   []domain.TimeSlot `json:"timeSlots" binding:"required"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
}

// --- Handler Methods ---

// CreateProfile creates the caller's guide profile.
func (h *GuideHandler) CreateProfile(c *gin.Context) {
	userID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	var req GuideProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	guide, err := h.guideService.CreateProfile(c.Request.Context(), userID, profileInputFromRequest(req))
	if err != nil {
		h.mapGuideError(c, err)
		return
	}

	c.JSON(http.StatusCreated, guide)
}

// GetGuide returns one guide profile; public.
func (h *GuideHandler) GetGuide(c *gin.Context) {
	guideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid guide ID")
		return
	}

	guide, err := h.guideService.GetGuide(c.Request.Context(), guideID)
	if err != nil {
		h.mapGuideError(c, err)
		return
	}

	c.JSON(http.StatusOK, guide)
}

// GetMyGuide returns the caller's own guide profile.
func (h *GuideHandler) GetMyGuide(c *gin.Context) {
	userID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	guide, err := h.guideService.GetGuideByUserID(c.Request.Context(), userID)
	if err != nil {
		h.mapGuideError(c, err)
		return
	}

	c.JSON(http.StatusOK, guide)
}

// UpdateProfile updates the caller's guide profile.
func (h *GuideHandler) UpdateProfile(c *gin.Context) {
	userID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	guideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid guide ID")
		return
	}

	var req GuideProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	guide, err := h.guideService.UpdateProfile(c.Request.Context(), userID, guideID, profileInputFromRequest(req))
	if err != nil {
		h.mapGuideError(c, err)
		return
	}

	c.JSON(http.StatusOK, guide)
}

// SetAvailability replaces the availability entry for one calendar date.
func (h *GuideHandler) SetAvailability(c *gin.Context) {
	userID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	guideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid guide ID")
		return
	}

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}
	entry := domain.AvailabilityEntry{
		Date:        req.Date,
		IsAvailable: isAvailable,
		TimeSlots:   req.TimeSlots,
	}

	guide, err := h.guideService.SetAvailability(c.Request.Context(), userID, guideID, entry)
	if err != nil {
		h.mapGuideError(c, err)
		return
	}

	c.JSON(http.StatusOK, guide)
}

// Search filters guides by destination, specialties, languages, price,
// rating and availability window; paginated, rating-descending.
func (h *GuideHandler) Search(c *gin.Context) {
	filter := repository.GuideFilter{
		City:        c.Query("city"),
		Country:     c.Query("country"),
		Specialties: splitMulti(c.Query("specialties")),
		Languages:   splitMulti(c.Query("languages")),
	}

	if v := c.Query("maxPrice"); v != "" {
		maxPrice, err := strconv.ParseFloat(v, 64)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid maxPrice")
			return
		}
		filter.MaxPrice = &maxPrice
	}
	if v := c.Query("minRating"); v != "" {
		minRating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid minRating")
			return
		}
		filter.MinRating = &minRating
	}
	if v := c.Query("availableFrom"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid availableFrom, expected YYYY-MM-DD")
			return
		}
		filter.AvailableFrom = &from
	}
	if v := c.Query("availableTo"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid availableTo, expected YYYY-MM-DD")
			return
		}
		filter.AvailableTo = &to
	}
	if v := c.Query("page"); v != "" {
		page, err := strconv.ParseInt(v, 10, 64)
		if err != nil || page < 1 {
			abortWithError(c, http.StatusBadRequest, "Invalid page")
			return
		}
		filter.Page = page
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || limit < 1 {
			abortWithError(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	result, err := h.guideService.Search(c.Request.Context(), filter)
	if err != nil {
		h.mapGuideError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddReview appends the caller's review to a guide.
func (h *GuideHandler) AddReview(c *gin.Context) {
	userID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	guideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid guide ID")
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	guide, err := h.guideService.AddReview(c.Request.Context(), guideID, userID, req.Rating, req.Comment)
	if err != nil {
		h.mapGuideError(c, err)
		return
	}

	c.JSON(http.StatusCreated, guide)
}

// ListReviews returns a guide's embedded review list.
func (h *GuideHandler) ListReviews(c *gin.Context) {
	guideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid guide ID")
		return
	}

	guide, err := h.guideService.GetGuide(c.Request.Context(), guideID)
	if err != nil {
		h.mapGuideError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews":         guide.Reviews,
		"rating":          guide.Rating,
		"numberOfReviews": guide.NumberOfReviews,
	})
}

// mapGuideError translates guide service errors into HTTP responses.
func (h *GuideHandler) mapGuideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGuideNotFound), errors.Is(err, service.ErrUserNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrGuideAccessDenied), errors.Is(err, service.ErrNotGuideRole):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrGuideProfileExists), errors.Is(err, service.ErrDuplicateReview):
		abortWithError(c, http.StatusConflict, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

func profileInputFromRequest(req GuideProfileRequest) service.GuideProfileInput {
	return service.GuideProfileInput{
		Specialties:    req.Specialties,
		Destinations:   req.Destinations,
		Languages:      req.Languages,
		Description:    req.Description,
		Experience:     req.Experience,
		Certifications: req.Certifications,
		Pricing:        req.Pricing,
		Status:         req.Status,
	}
}

func splitMulti(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
