package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GuideStatus represents the lifecycle state of a guide profile.
type GuideStatus string

const (
	GuideStatusActive   GuideStatus = "active"
	GuideStatusInactive GuideStatus = "inactive"
	GuideStatusPending  GuideStatus = "pending"
)

// Coordinates is a plain lat/lon pair. No geo queries are run against it,
// it is carried for the clients to render maps.
type Coordinates struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// Destination is one place a guide operates in.
type Destination struct {
	City        string      `bson:"city" json:"city"`
	Country     string      `bson:"country" json:"country"`
	Coordinates Coordinates `bson:"coordinates" json:"coordinates"`
}

// Experience describes how long and in what way a guide has been guiding.
type Experience struct {
	Years       int    `bson:"years" json:"years"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
}

// Certification is a named credential a guide holds.
type Certification struct {
	Name        string `bson:"name" json:"name"`
	Issuer      string `bson:"issuer,omitempty" json:"issuer,omitempty"`
	Year        int    `bson:"year,omitempty" json:"year,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
}

// CustomRate is an optional per-service price override.
type CustomRate struct {
	Service string  `bson:"service" json:"service"`
	Rate    float64 `bson:"rate" json:"rate"`
}

// Pricing holds a guide's rates. TotalPrice for a booking is
// BaseRate * people when PerPerson is set, otherwise BaseRate flat.
type Pricing struct {
	BaseRate    float64      `bson:"baseRate" json:"baseRate"`
	Currency    string       `bson:"currency" json:"currency"`
	PerPerson   bool         `bson:"perPerson" json:"perPerson"`
	CustomRates []CustomRate `bson:"customRates,omitempty" json:"customRates,omitempty"`
}

// TimeSlot is one bookable interval on a calendar day.
// IsBooked is the single source of truth for whether the slot can be booked;
// it is only ever flipped through conditional updates at the repository layer.
type TimeSlot struct {
	StartTime string `bson:"startTime" json:"startTime"` // "HH:MM"
	EndTime   string `bson:"endTime" json:"endTime"`
	IsBooked  bool   `bson:"isBooked" json:"isBooked"`
}

// AvailabilityEntry holds the slots a guide offers on one calendar date.
// Invariant: at most one entry per (guide, date); Date is truncated to
// UTC midnight so "same calendar day" is plain equality.
type AvailabilityEntry struct {
	Date        time.Time  `bson:"date" json:"date"`
	IsAvailable bool       `bson:"isAvailable" json:"isAvailable"`
	TimeSlots   []TimeSlot `bson:"timeSlots" json:"timeSlots"`
}

// Review is a client's rating of a guide, embedded in the guide document.
// Invariant: at most one review per (guide, user).
type Review struct {
	UserID  primitive.ObjectID `bson:"userId" json:"userId"`
	Rating  int                `bson:"rating" json:"rating"` // 1..5
	Comment string             `bson:"comment" json:"comment"`
	Date    time.Time          `bson:"date" json:"date"`
}

// Guide is the profile aggregate: availability and reviews are owned
// sub-documents with no independent lifetime.
type Guide struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"` // 1:1 with User, unique
	Specialties     []string            `bson:"specialties" json:"specialties"`
	Destinations    []Destination       `bson:"destinations" json:"destinations"`
	Languages       []string            `bson:"languages" json:"languages"`
	Description     string              `bson:"description" json:"description"`
	Experience      Experience          `bson:"experience" json:"experience"`
	Certifications  []Certification     `bson:"certifications,omitempty" json:"certifications,omitempty"`
	Pricing         Pricing             `bson:"pricing" json:"pricing"`
	Availability    []AvailabilityEntry `bson:"availability" json:"availability"`
	Reviews         []Review            `bson:"reviews" json:"reviews"`
	Rating          float64             `bson:"rating" json:"rating"` // derived, see RecomputeRating
	NumberOfReviews int                 `bson:"numberOfReviews" json:"numberOfReviews"`
	IsVerified      bool                `bson:"isVerified" json:"isVerified"`
	Status          GuideStatus         `bson:"status" json:"status"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// RecomputeRating returns the derived (rating, numberOfReviews) pair for a
// review list. Rating is always a pure function of the reviews; callers must
// re-run this after every review-list mutation.
func RecomputeRating(reviews []Review) (float64, int) {
	if len(reviews) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews)), len(reviews)
}

// NormalizeDate truncates t to UTC midnight. Availability entries and booking
// requests both pass through this so date matching is exact equality.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FindAvailability returns the entry for the given (already normalized) date,
// or nil if the guide has no entry that day.
func (g *Guide) FindAvailability(date time.Time) *AvailabilityEntry {
	for i := range g.Availability {
		if g.Availability[i].Date.Equal(date) {
			return &g.Availability[i]
		}
	}
	return nil
}

// FindSlot returns the slot with exactly matching start/end times, or nil.
func (a *AvailabilityEntry) FindSlot(startTime, endTime string) *TimeSlot {
	for i := range a.TimeSlots {
		if a.TimeSlots[i].StartTime == startTime && a.TimeSlots[i].EndTime == endTime {
			return &a.TimeSlots[i]
		}
	}
	return nil
}

// HasReviewBy reports whether the user already reviewed this guide.
func (g *Guide) HasReviewBy(userID primitive.ObjectID) bool {
	for _, r := range g.Reviews {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
