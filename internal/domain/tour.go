package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TourStatus is the booking lifecycle. Transitions are forward-only:
// pending -> confirmed -> completed, with cancellation reachable from
// pending and confirmed only.
type TourStatus string

const (
	TourStatusPending   TourStatus = "pending"
	TourStatusConfirmed TourStatus = "confirmed"
	TourStatusCompleted TourStatus = "completed"
	TourStatusCancelled TourStatus = "cancelled"
)

// PaymentStatus tracks payment independently of the booking lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// CanTransitionTo reports whether moving from s to next is a legal
// forward-progress step. Cancellation goes through its own path and is
// deliberately not part of this table.
func (s TourStatus) CanTransitionTo(next TourStatus) bool {
	switch s {
	case TourStatusPending:
		return next == TourStatusConfirmed
	case TourStatusConfirmed:
		return next == TourStatusCompleted
	default:
		return false
	}
}

// MeetingPoint is where the tour starts.
type MeetingPoint struct {
	Description string      `bson:"description" json:"description"`
	City        string      `bson:"city,omitempty" json:"city,omitempty"`
	Country     string      `bson:"country,omitempty" json:"country,omitempty"`
	Coordinates Coordinates `bson:"coordinates" json:"coordinates"`
}

// Activity is one scheduled item in a tour itinerary.
type Activity struct {
	Time        string `bson:"time" json:"time"`
	Description string `bson:"description" json:"description"`
	Location    string `bson:"location,omitempty" json:"location,omitempty"`
}

// Itinerary is supplied by the client at booking time.
type Itinerary struct {
	MeetingPoint MeetingPoint `bson:"meetingPoint" json:"meetingPoint"`
	Activities   []Activity   `bson:"activities,omitempty" json:"activities,omitempty"`
}

// Tour is a booking. It references Guide and User (shared, not owned) and
// snapshots the destination from the itinerary's meeting point so the record
// stays meaningful even if the guide later edits their destinations.
type Tour struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GuideID     primitive.ObjectID `bson:"guideId" json:"guideId"`
	ClientID    primitive.ObjectID `bson:"clientId" json:"clientId"`
	Destination Destination        `bson:"destination" json:"destination"`

	Date      time.Time `bson:"date" json:"date"` // UTC midnight, see NormalizeDate
	StartTime string    `bson:"startTime" json:"startTime"`
	EndTime   string    `bson:"endTime" json:"endTime"`

	NumberOfPeople int     `bson:"numberOfPeople" json:"numberOfPeople"`
	TotalPrice     float64 `bson:"totalPrice" json:"totalPrice"`
	Currency       string  `bson:"currency" json:"currency"`

	Status          TourStatus    `bson:"status" json:"status"`
	PaymentStatus   PaymentStatus `bson:"paymentStatus" json:"paymentStatus"`
	SpecialRequests string        `bson:"specialRequests,omitempty" json:"specialRequests,omitempty"`
	Itinerary       Itinerary     `bson:"itinerary" json:"itinerary"`

	CancellationReason string `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// TourPrice computes the total price for a booking against a guide's pricing.
func TourPrice(p Pricing, numberOfPeople int) float64 {
	if p.PerPerson {
		return p.BaseRate * float64(numberOfPeople)
	}
	return p.BaseRate
}
