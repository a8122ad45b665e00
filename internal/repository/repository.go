package repository

import (
	"context"
	"time"

	"voyago/guide-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound = RepositoryError("not found")
	// ErrPreconditionFailed means a conditional write matched no document:
	// either the target is gone or the guarded state changed under us
	// (slot already booked, status already moved, review already present).
	ErrPreconditionFailed = RepositoryError("write precondition failed")
	ErrDuplicate          = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	SetProfileImageKey(ctx context.Context, id primitive.ObjectID, objectKey string) error
	TouchLastLogin(ctx context.Context, id primitive.ObjectID) error
}

// GuideFilter carries the search dimensions. Dimensions combine with AND,
// values inside a multi-value dimension combine with OR. Zero values mean
// "not filtered".
type GuideFilter struct {
	City          string
	Country       string
	Specialties   []string
	Languages     []string
	MaxPrice      *float64
	MinRating     *float64
	AvailableFrom *time.Time
	AvailableTo   *time.Time
	Page          int64
	Limit         int64
}

// GuideRepository defines the interface for interacting with guide profiles.
// Availability and reviews are embedded in the guide document, so every
// mutation here is a single-aggregate write.
type GuideRepository interface {
	Create(ctx context.Context, guide *domain.Guide) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Guide, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Guide, error)
	UpdateProfile(ctx context.Context, guide *domain.Guide) error

	// SetAvailability replaces the entry for entry.Date, or inserts one if the
	// date is new. At most one entry per (guide, date).
	SetAvailability(ctx context.Context, guideID primitive.ObjectID, entry domain.AvailabilityEntry) error

	// BookSlot conditionally flips the matching slot to booked. The update
	// only matches while the day is available and the slot is still unbooked;
	// a lost race surfaces as ErrPreconditionFailed, never as success.
	BookSlot(ctx context.Context, guideID primitive.ObjectID, date time.Time, startTime, endTime string) error

	// ReleaseSlot flips the matching slot back to unbooked. A missing day or
	// slot is tolerated silently so releases are idempotent.
	ReleaseSlot(ctx context.Context, guideID primitive.ObjectID, date time.Time, startTime, endTime string) error

	// AddReview appends the review unless the reviewer already has one on
	// this guide (guarded push). Rating recomputation is the caller's job.
	AddReview(ctx context.Context, guideID primitive.ObjectID, review domain.Review) error
	SetRating(ctx context.Context, guideID primitive.ObjectID, rating float64, numberOfReviews int) error

	// Search returns one page of matching guides plus the total match count,
	// sorted by rating descending with _id as the stable tiebreak.
	Search(ctx context.Context, filter GuideFilter) ([]domain.Guide, int64, error)
}

// TourRepository defines the interface for interacting with bookings.
type TourRepository interface {
	Create(ctx context.Context, tour *domain.Tour) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Tour, error)
	GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.Tour, error)
	GetByGuideID(ctx context.Context, guideID primitive.ObjectID) ([]domain.Tour, error)

	// TransitionStatus moves the tour to the target status only if its current
	// status is one of from; otherwise ErrPreconditionFailed. Reason is stored
	// only when transitioning to cancelled.
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from []domain.TourStatus, to domain.TourStatus, reason string) error
}
