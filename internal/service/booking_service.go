package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"voyago/guide-app/internal/cache"
	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrTourNotFound = errors.New("tour not found")
	// ErrSlotUnavailable covers every way a requested slot cannot be booked:
	// no availability on that date, the day marked unavailable, no matching
	// slot, a slot already booked, and losing a concurrent booking race.
	ErrSlotUnavailable = errors.New("requested time slot is not available")
	ErrNotAuthorized   = errors.New("requester is not a party to this tour")
	ErrInvalidState    = errors.New("tour status does not allow this transition")
)

// BookingRequest is the input to BookTour.
type BookingRequest struct {
	GuideID         primitive.ObjectID
	Date            time.Time
	StartTime       string
	EndTime         string
	NumberOfPeople  int
	SpecialRequests string
	Itinerary       domain.Itinerary
}

// --- Service Interface ---
type BookingService interface {
	BookTour(ctx context.Context, clientID primitive.ObjectID, req BookingRequest) (*domain.Tour, error)
	CancelTour(ctx context.Context, tourID, requesterID primitive.ObjectID, reason string) (*domain.Tour, error)
	UpdateStatus(ctx context.Context, tourID, requesterID primitive.ObjectID, newStatus domain.TourStatus) (*domain.Tour, error)
	GetTour(ctx context.Context, tourID, requesterID primitive.ObjectID) (*domain.Tour, error)
	ListClientTours(ctx context.Context, clientID primitive.ObjectID) ([]domain.Tour, error)
	ListGuideTours(ctx context.Context, userID primitive.ObjectID) ([]domain.Tour, error)
}

// --- Service Implementation ---

// bookingService implements the BookingService interface. It is stateless
// between calls; every consistency guarantee lives in the conditional writes
// issued through the repositories.
type bookingService struct {
	tourRepo   repository.TourRepository
	guideRepo  repository.GuideRepository
	guideCache cache.GuideCache // optional; nil disables caching
}

// NewBookingService creates a new instance of bookingService.
func NewBookingService(tourRepo repository.TourRepository, guideRepo repository.GuideRepository, guideCache cache.GuideCache) BookingService {
	return &bookingService{
		tourRepo:   tourRepo,
		guideRepo:  guideRepo,
		guideCache: guideCache,
	}
}

// BookTour validates the requested slot, computes the price, flips the slot
// to booked and persists the new tour.
//
// The slot flip comes first and is the linearization point: the conditional
// update only matches while the slot is still unbooked, so of N concurrent
// requests for one slot exactly one wins and the rest fail ErrSlotUnavailable.
// If the tour insert afterwards fails, the slot is released again as the
// compensating action, so a booked slot without a tour is never observable.
func (s *bookingService) BookTour(ctx context.Context, clientID primitive.ObjectID, req BookingRequest) (*domain.Tour, error) {
	if req.NumberOfPeople < 1 {
		return nil, fmt.Errorf("%w: numberOfPeople must be at least 1", ErrValidation)
	}
	if req.StartTime == "" || req.EndTime == "" {
		return nil, fmt.Errorf("%w: startTime and endTime are required", ErrValidation)
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrValidation)
	}

	guide, err := s.guideRepo.GetByID(ctx, req.GuideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}

	// Cheap pre-check against the loaded document. Purely advisory: the
	// authoritative decision is the conditional write below.
	date := domain.NormalizeDate(req.Date)
	entry := guide.FindAvailability(date)
	if entry == nil || !entry.IsAvailable {
		return nil, ErrSlotUnavailable
	}
	slot := entry.FindSlot(req.StartTime, req.EndTime)
	if slot == nil || slot.IsBooked {
		return nil, ErrSlotUnavailable
	}

	totalPrice := domain.TourPrice(guide.Pricing, req.NumberOfPeople)

	if err := s.guideRepo.BookSlot(ctx, guide.ID, date, req.StartTime, req.EndTime); err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}
	s.invalidate(ctx, guide.ID)

	tour := &domain.Tour{
		GuideID:  guide.ID,
		ClientID: clientID,
		Destination: domain.Destination{
			City:        req.Itinerary.MeetingPoint.City,
			Country:     req.Itinerary.MeetingPoint.Country,
			Coordinates: req.Itinerary.MeetingPoint.Coordinates,
		},
		Date:            date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		NumberOfPeople:  req.NumberOfPeople,
		TotalPrice:      totalPrice,
		Currency:        guide.Pricing.Currency,
		Status:          domain.TourStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		SpecialRequests: req.SpecialRequests,
		Itinerary:       req.Itinerary,
	}

	tourID, err := s.tourRepo.Create(ctx, tour)
	if err != nil {
		// Compensating action: give the slot back before surfacing the error.
		if relErr := s.guideRepo.ReleaseSlot(ctx, guide.ID, date, req.StartTime, req.EndTime); relErr != nil {
			log.Printf("ERROR: compensating slot release failed for guide %s %s %s-%s: %v",
				guide.ID.Hex(), date.Format("2006-01-02"), req.StartTime, req.EndTime, relErr)
		}
		s.invalidate(ctx, guide.ID)
		return nil, fmt.Errorf("persist tour: %w", err)
	}
	tour.ID = tourID

	return tour, nil
}

// CancelTour moves a pending or confirmed tour to cancelled and releases its
// slot. Either party (the booking client or the guide's owning user) may
// cancel. The status flip is guarded on the current status, so a concurrent
// double cancel resolves to exactly one winner; the loser gets ErrInvalidState.
func (s *bookingService) CancelTour(ctx context.Context, tourID, requesterID primitive.ObjectID, reason string) (*domain.Tour, error) {
	tour, err := s.tourRepo.GetByID(ctx, tourID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTourNotFound
		}
		return nil, err
	}

	if err := s.authorizeParty(ctx, tour, requesterID); err != nil {
		return nil, err
	}

	if tour.Status == domain.TourStatusCompleted || tour.Status == domain.TourStatusCancelled {
		return nil, ErrInvalidState
	}

	err = s.tourRepo.TransitionStatus(ctx, tourID,
		[]domain.TourStatus{domain.TourStatusPending, domain.TourStatusConfirmed},
		domain.TourStatusCancelled, reason)
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	// Idempotent release: the slot (or the whole day) may have been removed
	// by the guide since booking, which is fine.
	if err := s.guideRepo.ReleaseSlot(ctx, tour.GuideID, tour.Date, tour.StartTime, tour.EndTime); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("ERROR: slot release on cancel failed for tour %s: %v", tourID.Hex(), err)
		}
	}
	s.invalidate(ctx, tour.GuideID)

	tour.Status = domain.TourStatusCancelled
	tour.CancellationReason = reason
	return tour, nil
}

// UpdateStatus advances a tour along pending -> confirmed -> completed.
// Only the guide's owning user may call it; cancellation has its own path.
func (s *bookingService) UpdateStatus(ctx context.Context, tourID, requesterID primitive.ObjectID, newStatus domain.TourStatus) (*domain.Tour, error) {
	if newStatus != domain.TourStatusConfirmed && newStatus != domain.TourStatusCompleted {
		return nil, fmt.Errorf("%w: status must be confirmed or completed", ErrValidation)
	}

	tour, err := s.tourRepo.GetByID(ctx, tourID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTourNotFound
		}
		return nil, err
	}

	guide, err := s.guideRepo.GetByID(ctx, tour.GuideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}
	if guide.UserID != requesterID {
		return nil, ErrNotAuthorized
	}

	if !tour.Status.CanTransitionTo(newStatus) {
		return nil, ErrInvalidState
	}

	err = s.tourRepo.TransitionStatus(ctx, tourID,
		[]domain.TourStatus{tour.Status}, newStatus, "")
	if err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrInvalidState
		}
		return nil, err
	}

	tour.Status = newStatus
	return tour, nil
}

// GetTour returns a tour to one of its parties.
func (s *bookingService) GetTour(ctx context.Context, tourID, requesterID primitive.ObjectID) (*domain.Tour, error) {
	tour, err := s.tourRepo.GetByID(ctx, tourID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTourNotFound
		}
		return nil, err
	}
	if err := s.authorizeParty(ctx, tour, requesterID); err != nil {
		return nil, err
	}
	return tour, nil
}

// ListClientTours returns the requester's bookings as a client.
func (s *bookingService) ListClientTours(ctx context.Context, clientID primitive.ObjectID) ([]domain.Tour, error) {
	tours, err := s.tourRepo.GetByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if tours == nil {
		tours = []domain.Tour{}
	}
	return tours, nil
}

// ListGuideTours returns the bookings held against the requester's guide profile.
func (s *bookingService) ListGuideTours(ctx context.Context, userID primitive.ObjectID) ([]domain.Tour, error) {
	guide, err := s.guideRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}
	tours, err := s.tourRepo.GetByGuideID(ctx, guide.ID)
	if err != nil {
		return nil, err
	}
	if tours == nil {
		tours = []domain.Tour{}
	}
	return tours, nil
}

// authorizeParty checks the requester is the tour's client or the guide's
// owning user.
func (s *bookingService) authorizeParty(ctx context.Context, tour *domain.Tour, requesterID primitive.ObjectID) error {
	if tour.ClientID == requesterID {
		return nil
	}
	guide, err := s.guideRepo.GetByID(ctx, tour.GuideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The guide is gone; only the client could still be a party.
			return ErrNotAuthorized
		}
		return err
	}
	if guide.UserID == requesterID {
		return nil
	}
	return ErrNotAuthorized
}

func (s *bookingService) invalidate(ctx context.Context, guideID primitive.ObjectID) {
	if s.guideCache != nil {
		s.guideCache.Invalidate(ctx, guideID.Hex())
	}
}
