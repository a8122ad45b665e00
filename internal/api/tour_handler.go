package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TourHandler holds the booking service dependency.
type TourHandler struct {
	bookingService service.BookingService
}

// NewTourHandler creates a new TourHandler.
func NewTourHandler(bookingService service.BookingService) *TourHandler {
	return &TourHandler{bookingService: bookingService}
}

// --- Request Structs ---

type BookTourRequest struct {
	Date            time.Time        `json:"date" binding:"required"`
	StartTime       string           `json:"startTime" binding:"required"`
	EndTime         string           `json:"endTime" binding:"required"`
	NumberOfPeople  int              `json:"numberOfPeople" binding:"required,min=1"`
	SpecialRequests string           `json:"specialRequests"`
	Itinerary       domain.Itinerary `json:"itinerary" binding:"required"`
}

type CancelTourRequest struct {
	Reason string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status domain.TourStatus `json:"status" binding:"required,oneof=confirmed completed"`
}

// --- Handler Methods ---

// BookTour books a slot on a guide's calendar.
func (h *TourHandler) BookTour(c *gin.Context) {
	clientID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	guideID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid guide ID")
		return
	}

	var req BookTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	tour, err := h.bookingService.BookTour(c.Request.Context(), clientID, service.BookingRequest{
		GuideID:         guideID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		NumberOfPeople:  req.NumberOfPeople,
		SpecialRequests: req.SpecialRequests,
		Itinerary:       req.Itinerary,
	})
	if err != nil {
		h.mapBookingError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tour)
}

// GetTour returns one booking to its client or guide.
func (h *TourHandler) GetTour(c *gin.Context) {
	requesterID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	tourID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid tour ID")
		return
	}

	tour, err := h.bookingService.GetTour(c.Request.Context(), tourID, requesterID)
	if err != nil {
		h.mapBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, tour)
}

// MyTours lists the caller's bookings as a client, soonest first.
func (h *TourHandler) MyTours(c *gin.Context) {
	clientID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	tours, err := h.bookingService.ListClientTours(c.Request.Context(), clientID)
	if err != nil {
		h.mapBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tours": tours})
}

// GuideTours lists the bookings held against the caller's guide profile.
func (h *TourHandler) GuideTours(c *gin.Context) {
	userID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	tours, err := h.bookingService.ListGuideTours(c.Request.Context(), userID)
	if err != nil {
		h.mapBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tours": tours})
}

// CancelTour cancels a pending or confirmed booking and frees its slot.
func (h *TourHandler) CancelTour(c *gin.Context) {
	requesterID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	tourID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid tour ID")
		return
	}

	var req CancelTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	tour, err := h.bookingService.CancelTour(c.Request.Context(), tourID, requesterID, req.Reason)
	if err != nil {
		h.mapBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, tour)
}

// UpdateStatus advances a booking along its lifecycle; guide only.
func (h *TourHandler) UpdateStatus(c *gin.Context) {
	requesterID, err := getUserObjectIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return
	}

	tourID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid tour ID")
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	tour, err := h.bookingService.UpdateStatus(c.Request.Context(), tourID, requesterID, req.Status)
	if err != nil {
		h.mapBookingError(c, err)
		return
	}

	c.JSON(http.StatusOK, tour)
}

// mapBookingError translates booking service errors into HTTP responses.
func (h *TourHandler) mapBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrSlotUnavailable), errors.Is(err, service.ErrInvalidState):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTourNotFound), errors.Is(err, service.ErrGuideNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		abortWithError(c, http.StatusForbidden, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
