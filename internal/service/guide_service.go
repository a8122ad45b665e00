package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voyago/guide-app/internal/cache"
	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrGuideNotFound      = errors.New("guide not found")
	ErrGuideProfileExists = errors.New("guide profile already exists for this user")
	ErrGuideAccessDenied  = errors.New("access denied to modify this guide profile")
	ErrNotGuideRole       = errors.New("user does not have the guide role")
	ErrDuplicateReview    = errors.New("user has already reviewed this guide")
	// ErrValidation is the base for field-level failures; wrap it with the
	// offending detail so handlers can map every variant to one HTTP code.
	ErrValidation = errors.New("validation failed")
)

const minDescriptionLength = 100

// GuideProfileInput carries the editable profile fields.
type GuideProfileInput struct {
	Specialties    []string
	Destinations   []domain.Destination
	Languages      []string
	Description    string
	Experience     domain.Experience
	Certifications []domain.Certification
	Pricing        domain.Pricing
	Status         domain.GuideStatus
}

// SearchResult is one page of guides plus pagination bookkeeping.
type SearchResult struct {
	Guides     []domain.Guide `json:"guides"`
	Page       int64          `json:"page"`
	TotalPages int64          `json:"totalPages"`
	Total      int64          `json:"total"`
}

// --- Service Interface ---
type GuideService interface {
	CreateProfile(ctx context.Context, userID primitive.ObjectID, input GuideProfileInput) (*domain.Guide, error)
	GetGuide(ctx context.Context, guideID primitive.ObjectID) (*domain.Guide, error)
	GetGuideByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Guide, error)
	UpdateProfile(ctx context.Context, userID, guideID primitive.ObjectID, input GuideProfileInput) (*domain.Guide, error)
	SetAvailability(ctx context.Context, userID, guideID primitive.ObjectID, entry domain.AvailabilityEntry) (*domain.Guide, error)
	Search(ctx context.Context, filter repository.GuideFilter) (*SearchResult, error)
	AddReview(ctx context.Context, guideID, reviewerID primitive.ObjectID, rating int, comment string) (*domain.Guide, error)
}

// --- Service Implementation ---

// guideService implements the GuideService interface.
type guideService struct {
	guideRepo  repository.GuideRepository
	userRepo   repository.UserRepository
	guideCache cache.GuideCache // optional; nil disables caching
}

// NewGuideService creates a new instance of guideService.
func NewGuideService(guideRepo repository.GuideRepository, userRepo repository.UserRepository, guideCache cache.GuideCache) GuideService {
	return &guideService{
		guideRepo:  guideRepo,
		userRepo:   userRepo,
		guideCache: guideCache,
	}
}

// CreateProfile creates the one guide profile a guide-role user may own.
func (s *guideService) CreateProfile(ctx context.Context, userID primitive.ObjectID, input GuideProfileInput) (*domain.Guide, error) {
	if userID == primitive.NilObjectID {
		return nil, fmt.Errorf("%w: user ID is required", ErrValidation)
	}
	if err := validateProfileInput(input); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsGuide() {
		return nil, ErrNotGuideRole
	}

	guide := &domain.Guide{
		UserID:         userID,
		Specialties:    input.Specialties,
		Destinations:   input.Destinations,
		Languages:      input.Languages,
		Description:    input.Description,
		Experience:     input.Experience,
		Certifications: input.Certifications,
		Pricing:        normalizePricing(input.Pricing),
		Status:         domain.GuideStatusPending,
	}

	guideID, err := s.guideRepo.Create(ctx, guide)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrGuideProfileExists
		}
		return nil, err
	}
	guide.ID = guideID
	return guide, nil
}

// GetGuide loads a guide, preferring the cache.
func (s *guideService) GetGuide(ctx context.Context, guideID primitive.ObjectID) (*domain.Guide, error) {
	if s.guideCache != nil {
		if guide, ok := s.guideCache.Get(ctx, guideID.Hex()); ok {
			return guide, nil
		}
	}

	guide, err := s.guideRepo.GetByID(ctx, guideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}

	if s.guideCache != nil {
		s.guideCache.Set(ctx, guide)
	}
	return guide, nil
}

// GetGuideByUserID loads the profile owned by a user.
func (s *guideService) GetGuideByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Guide, error) {
	guide, err := s.guideRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}
	return guide, nil
}

// UpdateProfile replaces the editable fields; owner only.
func (s *guideService) UpdateProfile(ctx context.Context, userID, guideID primitive.ObjectID, input GuideProfileInput) (*domain.Guide, error) {
	if err := validateProfileInput(input); err != nil {
		return nil, err
	}

	guide, err := s.ownedGuide(ctx, userID, guideID)
	if err != nil {
		return nil, err
	}

	guide.Specialties = input.Specialties
	guide.Destinations = input.Destinations
	guide.Languages = input.Languages
	guide.Description = input.Description
	guide.Experience = input.Experience
	guide.Certifications = input.Certifications
	guide.Pricing = normalizePricing(input.Pricing)
	if input.Status != "" {
		if input.Status != domain.GuideStatusActive && input.Status != domain.GuideStatusInactive {
			return nil, fmt.Errorf("%w: status must be active or inactive", ErrValidation)
		}
		guide.Status = input.Status
	}

	if err := s.guideRepo.UpdateProfile(ctx, guide); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}

	s.invalidate(ctx, guideID)
	return guide, nil
}

// SetAvailability replaces-or-inserts the availability entry for one calendar
// date; owner only. Slots start unbooked.
func (s *guideService) SetAvailability(ctx context.Context, userID, guideID primitive.ObjectID, entry domain.AvailabilityEntry) (*domain.Guide, error) {
	if entry.Date.IsZero() {
		return nil, fmt.Errorf("%w: availability date is required", ErrValidation)
	}
	for _, slot := range entry.TimeSlots {
		if slot.StartTime == "" || slot.EndTime == "" {
			return nil, fmt.Errorf("%w: time slots require startTime and endTime", ErrValidation)
		}
		if slot.StartTime >= slot.EndTime {
			return nil, fmt.Errorf("%w: slot startTime must precede endTime", ErrValidation)
		}
		if slot.IsBooked {
			return nil, fmt.Errorf("%w: new slots cannot be pre-booked", ErrValidation)
		}
	}

	if _, err := s.ownedGuide(ctx, userID, guideID); err != nil {
		return nil, err
	}

	entry.Date = domain.NormalizeDate(entry.Date)
	if err := s.guideRepo.SetAvailability(ctx, guideID, entry); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}

	s.invalidate(ctx, guideID)
	return s.guideRepo.GetByID(ctx, guideID)
}

// Search runs a filtered, paginated guide query.
func (s *guideService) Search(ctx context.Context, filter repository.GuideFilter) (*SearchResult, error) {
	if filter.MinRating != nil && (*filter.MinRating < 0 || *filter.MinRating > 5) {
		return nil, fmt.Errorf("%w: minRating must be between 0 and 5", ErrValidation)
	}
	if filter.MaxPrice != nil && *filter.MaxPrice < 0 {
		return nil, fmt.Errorf("%w: maxPrice cannot be negative", ErrValidation)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	guides, total, err := s.guideRepo.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := total / filter.Limit
	if total%filter.Limit != 0 {
		totalPages++
	}

	if guides == nil {
		guides = []domain.Guide{}
	}
	return &SearchResult{
		Guides:     guides,
		Page:       filter.Page,
		TotalPages: totalPages,
		Total:      total,
	}, nil
}

// AddReview appends a review and recomputes the derived rating fields.
func (s *guideService) AddReview(ctx context.Context, guideID, reviewerID primitive.ObjectID, rating int, comment string) (*domain.Guide, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if comment == "" {
		return nil, fmt.Errorf("%w: comment is required", ErrValidation)
	}

	guide, err := s.guideRepo.GetByID(ctx, guideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}
	if guide.HasReviewBy(reviewerID) {
		return nil, ErrDuplicateReview
	}

	review := domain.Review{
		UserID:  reviewerID,
		Rating:  rating,
		Comment: comment,
		Date:    time.Now().UTC(),
	}
	if err := s.guideRepo.AddReview(ctx, guideID, review); err != nil {
		// The guarded push also catches a reviewer racing themselves.
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return nil, ErrDuplicateReview
		}
		return nil, err
	}

	// Re-read so the recomputation covers exactly what is persisted.
	guide, err = s.guideRepo.GetByID(ctx, guideID)
	if err != nil {
		return nil, err
	}
	ratingAvg, count := domain.RecomputeRating(guide.Reviews)
	if err := s.guideRepo.SetRating(ctx, guideID, ratingAvg, count); err != nil {
		return nil, err
	}
	guide.Rating = ratingAvg
	guide.NumberOfReviews = count

	s.invalidate(ctx, guideID)
	return guide, nil
}

// ownedGuide loads a guide and checks the requester owns it.
func (s *guideService) ownedGuide(ctx context.Context, userID, guideID primitive.ObjectID) (*domain.Guide, error) {
	guide, err := s.guideRepo.GetByID(ctx, guideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrGuideNotFound
		}
		return nil, err
	}
	if guide.UserID != userID {
		return nil, ErrGuideAccessDenied
	}
	return guide, nil
}

func (s *guideService) invalidate(ctx context.Context, guideID primitive.ObjectID) {
	if s.guideCache != nil {
		s.guideCache.Invalidate(ctx, guideID.Hex())
	}
}

func validateProfileInput(input GuideProfileInput) error {
	if len(input.Specialties) == 0 {
		return fmt.Errorf("%w: at least one specialty is required", ErrValidation)
	}
	if len(input.Destinations) == 0 {
		return fmt.Errorf("%w: at least one destination is required", ErrValidation)
	}
	if len(input.Languages) == 0 {
		return fmt.Errorf("%w: at least one language is required", ErrValidation)
	}
	if len(input.Description) < minDescriptionLength {
		return fmt.Errorf("%w: description must be at least %d characters long", ErrValidation, minDescriptionLength)
	}
	if input.Pricing.BaseRate < 0 {
		return fmt.Errorf("%w: base rate cannot be negative", ErrValidation)
	}
	return nil
}

func normalizePricing(p domain.Pricing) domain.Pricing {
	if p.Currency == "" {
		p.Currency = "EUR"
	}
	return p
}
