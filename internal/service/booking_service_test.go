package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voyago/guide-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testGuide(userID primitive.ObjectID) *domain.Guide {
	return &domain.Guide{
		UserID:      userID,
		Specialties: []string{"history"},
		Destinations: []domain.Destination{
			{City: "Lisbon", Country: "Portugal"},
		},
		Languages:   []string{"English", "Portuguese"},
		Description: "Licensed guide with a decade of walking tours through Lisbon's old quarters, from Alfama to Belem and everything between.",
		Pricing:     domain.Pricing{BaseRate: 50, Currency: "EUR", PerPerson: true},
		Status:      domain.GuideStatusActive,
		Availability: []domain.AvailabilityEntry{
			{
				Date:        domain.NormalizeDate(time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)),
				IsAvailable: true,
				TimeSlots: []domain.TimeSlot{
					{StartTime: "09:00", EndTime: "12:00"},
					{StartTime: "14:00", EndTime: "17:00"},
				},
			},
		},
	}
}

func testBookingRequest(guideID primitive.ObjectID) BookingRequest {
	return BookingRequest{
		GuideID:        guideID,
		Date:           time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		StartTime:      "09:00",
		EndTime:        "12:00",
		NumberOfPeople: 3,
		Itinerary: domain.Itinerary{
			MeetingPoint: domain.MeetingPoint{
				Description: "Praca do Comercio, by the arch",
				City:        "Lisbon",
				Country:     "Portugal",
			},
		},
	}
}

func newBookingFixture() (*fakeTourRepo, *fakeGuideRepo, BookingService) {
	tourRepo := newFakeTourRepo()
	guideRepo := newFakeGuideRepo()
	svc := NewBookingService(tourRepo, guideRepo, nil)
	return tourRepo, guideRepo, svc
}

func TestBookTour(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()

	guideUserID := primitive.NewObjectID()
	guideID := guideRepo.add(testGuide(guideUserID))
	clientID := primitive.NewObjectID()

	tour, err := svc.BookTour(ctx, clientID, testBookingRequest(guideID))
	if err != nil {
		t.Fatalf("BookTour failed: %v", err)
	}
	if tour.Status != domain.TourStatusPending {
		t.Errorf("expected status pending, got %s", tour.Status)
	}
	if tour.PaymentStatus != domain.PaymentStatusPending {
		t.Errorf("expected payment status pending, got %s", tour.PaymentStatus)
	}
	if tour.TotalPrice != 150 {
		t.Errorf("expected total price 150 (50 per person x 3), got %v", tour.TotalPrice)
	}
	if tour.Currency != "EUR" {
		t.Errorf("expected currency EUR, got %q", tour.Currency)
	}
	if tour.Destination.City != "Lisbon" {
		t.Errorf("expected destination snapshot Lisbon, got %q", tour.Destination.City)
	}

	slot := guideRepo.slot(guideID, tour.Date, "09:00", "12:00")
	if slot == nil || !slot.IsBooked {
		t.Fatal("expected booked slot after successful booking")
	}

	// The same slot cannot be booked twice.
	if _, err := svc.BookTour(ctx, primitive.NewObjectID(), testBookingRequest(guideID)); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable on second booking, got %v", err)
	}

	// The other slot on the same day is still open.
	req := testBookingRequest(guideID)
	req.StartTime, req.EndTime = "14:00", "17:00"
	if _, err := svc.BookTour(ctx, clientID, req); err != nil {
		t.Errorf("expected second slot to book, got %v", err)
	}
}

func TestBookTourFlatPricing(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()

	g := testGuide(primitive.NewObjectID())
	g.Pricing = domain.Pricing{BaseRate: 80, Currency: "EUR", PerPerson: false}
	guideID := guideRepo.add(g)

	tour, err := svc.BookTour(ctx, primitive.NewObjectID(), testBookingRequest(guideID))
	if err != nil {
		t.Fatalf("BookTour failed: %v", err)
	}
	if tour.TotalPrice != 80 {
		t.Errorf("expected flat price 80 regardless of group size, got %v", tour.TotalPrice)
	}
}

func TestBookTourValidation(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()
	guideID := guideRepo.add(testGuide(primitive.NewObjectID()))
	clientID := primitive.NewObjectID()

	tests := []struct {
		name    string
		mutate  func(*BookingRequest)
		wantErr error
	}{
		{"zero people", func(r *BookingRequest) { r.NumberOfPeople = 0 }, ErrValidation},
		{"missing times", func(r *BookingRequest) { r.StartTime = "" }, ErrValidation},
		{"zero date", func(r *BookingRequest) { r.Date = time.Time{} }, ErrValidation},
		{"unknown date", func(r *BookingRequest) { r.Date = r.Date.AddDate(0, 0, 1) }, ErrSlotUnavailable},
		{"unknown slot", func(r *BookingRequest) { r.StartTime = "10:00" }, ErrSlotUnavailable},
		{"unknown guide", func(r *BookingRequest) { r.GuideID = primitive.NewObjectID() }, ErrGuideNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := testBookingRequest(guideID)
			tc.mutate(&req)
			if _, err := svc.BookTour(ctx, clientID, req); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBookTourUnavailableDay(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()

	g := testGuide(primitive.NewObjectID())
	g.Availability[0].IsAvailable = false
	guideID := guideRepo.add(g)

	if _, err := svc.BookTour(ctx, primitive.NewObjectID(), testBookingRequest(guideID)); !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("expected ErrSlotUnavailable for a day marked unavailable, got %v", err)
	}
}

// Of N concurrent requests for the same slot, exactly one may win.
func TestBookTourConcurrentSameSlot(t *testing.T) {
	ctx := context.Background()
	tourRepo, guideRepo, svc := newBookingFixture()
	guideID := guideRepo.add(testGuide(primitive.NewObjectID()))

	const attempts = 20
	var successes, conflicts, unexpected int64
	var wg sync.WaitGroup
	wg.Add(attempts)

	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.BookTour(ctx, primitive.NewObjectID(), testBookingRequest(guideID))
			switch {
			case err == nil:
				atomic.AddInt64(&successes, 1)
			case errors.Is(err, ErrSlotUnavailable):
				atomic.AddInt64(&conflicts, 1)
			default:
				atomic.AddInt64(&unexpected, 1)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 winner, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
	if unexpected != 0 {
		t.Errorf("got %d unexpected errors", unexpected)
	}

	tours, err := tourRepo.GetByGuideID(ctx, guideID)
	if err != nil {
		t.Fatalf("GetByGuideID failed: %v", err)
	}
	if len(tours) != 1 {
		t.Errorf("expected exactly 1 persisted tour, got %d", len(tours))
	}
}

// If the tour insert fails after the slot was taken, the slot must be
// released again.
func TestBookTourCompensatesFailedInsert(t *testing.T) {
	ctx := context.Background()
	tourRepo, guideRepo, svc := newBookingFixture()
	guideID := guideRepo.add(testGuide(primitive.NewObjectID()))
	tourRepo.failCreate = true

	req := testBookingRequest(guideID)
	if _, err := svc.BookTour(ctx, primitive.NewObjectID(), req); err == nil {
		t.Fatal("expected error when tour insert fails")
	}

	slot := guideRepo.slot(guideID, req.Date, req.StartTime, req.EndTime)
	if slot == nil {
		t.Fatal("slot disappeared")
	}
	if slot.IsBooked {
		t.Error("expected slot released after failed insert")
	}

	// The slot is bookable again once inserts recover.
	tourRepo.failCreate = false
	if _, err := svc.BookTour(ctx, primitive.NewObjectID(), req); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
}

func TestCancelTour(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()

	guideUserID := primitive.NewObjectID()
	guideID := guideRepo.add(testGuide(guideUserID))
	clientID := primitive.NewObjectID()

	req := testBookingRequest(guideID)
	tour, err := svc.BookTour(ctx, clientID, req)
	if err != nil {
		t.Fatalf("BookTour failed: %v", err)
	}

	cancelled, err := svc.CancelTour(ctx, tour.ID, clientID, "change of plans")
	if err != nil {
		t.Fatalf("CancelTour failed: %v", err)
	}
	if cancelled.Status != domain.TourStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancellationReason != "change of plans" {
		t.Errorf("expected reason stored, got %q", cancelled.CancellationReason)
	}

	slot := guideRepo.slot(guideID, req.Date, req.StartTime, req.EndTime)
	if slot == nil || slot.IsBooked {
		t.Error("expected slot released after cancellation")
	}

	// Cancelling twice is an invalid transition.
	if _, err := svc.CancelTour(ctx, tour.ID, clientID, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double cancel, got %v", err)
	}
}

func TestCancelTourAuthorization(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()

	guideUserID := primitive.NewObjectID()
	guideID := guideRepo.add(testGuide(guideUserID))
	clientID := primitive.NewObjectID()

	tour, err := svc.BookTour(ctx, clientID, testBookingRequest(guideID))
	if err != nil {
		t.Fatalf("BookTour failed: %v", err)
	}

	if _, err := svc.CancelTour(ctx, tour.ID, primitive.NewObjectID(), ""); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for a stranger, got %v", err)
	}

	// The guide's owning user is a party and may cancel.
	if _, err := svc.CancelTour(ctx, tour.ID, guideUserID, "double booked"); err != nil {
		t.Errorf("expected guide user to cancel, got %v", err)
	}

	if _, err := svc.CancelTour(ctx, primitive.NewObjectID(), clientID, ""); !errors.Is(err, ErrTourNotFound) {
		t.Errorf("expected ErrTourNotFound, got %v", err)
	}
}

func TestCancelCompletedTour(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()

	guideUserID := primitive.NewObjectID()
	guideID := guideRepo.add(testGuide(guideUserID))
	clientID := primitive.NewObjectID()

	tour, err := svc.BookTour(ctx, clientID, testBookingRequest(guideID))
	if err != nil {
		t.Fatalf("BookTour failed: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, tour.ID, guideUserID, domain.TourStatusConfirmed); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, tour.ID, guideUserID, domain.TourStatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if _, err := svc.CancelTour(ctx, tour.ID, clientID, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState cancelling a completed tour, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()

	guideUserID := primitive.NewObjectID()
	guideID := guideRepo.add(testGuide(guideUserID))
	clientID := primitive.NewObjectID()

	tour, err := svc.BookTour(ctx, clientID, testBookingRequest(guideID))
	if err != nil {
		t.Fatalf("BookTour failed: %v", err)
	}

	// Skipping a step is rejected.
	if _, err := svc.UpdateStatus(ctx, tour.ID, guideUserID, domain.TourStatusCompleted); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for pending -> completed, got %v", err)
	}

	// Only the guide's user may advance the status.
	if _, err := svc.UpdateStatus(ctx, tour.ID, clientID, domain.TourStatusConfirmed); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for the client, got %v", err)
	}

	// Cancellation must go through CancelTour.
	if _, err := svc.UpdateStatus(ctx, tour.ID, guideUserID, domain.TourStatusCancelled); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for cancelled target, got %v", err)
	}

	updated, err := svc.UpdateStatus(ctx, tour.ID, guideUserID, domain.TourStatusConfirmed)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if updated.Status != domain.TourStatusConfirmed {
		t.Errorf("expected confirmed, got %s", updated.Status)
	}

	updated, err = svc.UpdateStatus(ctx, tour.ID, guideUserID, domain.TourStatusCompleted)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if updated.Status != domain.TourStatusCompleted {
		t.Errorf("expected completed, got %s", updated.Status)
	}

	// Nothing moves forward from completed.
	if _, err := svc.UpdateStatus(ctx, tour.ID, guideUserID, domain.TourStatusConfirmed); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState after completion, got %v", err)
	}
}

func TestGetTourAndListings(t *testing.T) {
	ctx := context.Background()
	_, guideRepo, svc := newBookingFixture()

	guideUserID := primitive.NewObjectID()
	guideID := guideRepo.add(testGuide(guideUserID))
	clientID := primitive.NewObjectID()

	tour, err := svc.BookTour(ctx, clientID, testBookingRequest(guideID))
	if err != nil {
		t.Fatalf("BookTour failed: %v", err)
	}

	if _, err := svc.GetTour(ctx, tour.ID, clientID); err != nil {
		t.Errorf("client should read own tour: %v", err)
	}
	if _, err := svc.GetTour(ctx, tour.ID, guideUserID); err != nil {
		t.Errorf("guide user should read tour: %v", err)
	}
	if _, err := svc.GetTour(ctx, tour.ID, primitive.NewObjectID()); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized for a stranger, got %v", err)
	}

	clientTours, err := svc.ListClientTours(ctx, clientID)
	if err != nil || len(clientTours) != 1 {
		t.Errorf("expected 1 client tour, got %d (err %v)", len(clientTours), err)
	}

	guideTours, err := svc.ListGuideTours(ctx, guideUserID)
	if err != nil || len(guideTours) != 1 {
		t.Errorf("expected 1 guide tour, got %d (err %v)", len(guideTours), err)
	}

	if _, err := svc.ListGuideTours(ctx, primitive.NewObjectID()); !errors.Is(err, ErrGuideNotFound) {
		t.Errorf("expected ErrGuideNotFound for a user without a profile, got %v", err)
	}

	// No tours is an empty slice, not nil.
	empty, err := svc.ListClientTours(ctx, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("ListClientTours failed: %v", err)
	}
	if empty == nil {
		t.Error("expected empty slice, got nil")
	}
}
