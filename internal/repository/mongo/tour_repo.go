package mongo

import (
	"context"
	"errors"
	"time"

	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const tourCollectionName = "tours"

// mongoTourRepository implements repository.TourRepository
type mongoTourRepository struct {
	collection *mongo.Collection
}

// NewMongoTourRepository creates a new Tour repository backed by MongoDB.
func NewMongoTourRepository(db *mongo.Database) repository.TourRepository {
	return &mongoTourRepository{
		collection: db.Collection(tourCollectionName),
	}
}

// Create inserts a new booking into the database.
func (r *mongoTourRepository) Create(ctx context.Context, tour *domain.Tour) (primitive.ObjectID, error) {
	if tour.GuideID == primitive.NilObjectID || tour.ClientID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("tour requires guideId and clientId")
	}

	tour.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	tour.CreatedAt = now
	tour.UpdatedAt = now
	if tour.Status == "" {
		tour.Status = domain.TourStatusPending
	}
	if tour.PaymentStatus == "" {
		tour.PaymentStatus = domain.PaymentStatusPending
	}

	result, err := r.collection.InsertOne(ctx, tour)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted tour ID")
	}

	return insertedID, nil
}

// GetByID retrieves a booking by its ID.
func (r *mongoTourRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Tour, error) {
	var tour domain.Tour
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tour)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &tour, nil
}

// GetByClientID retrieves all bookings made by a client, soonest first.
func (r *mongoTourRepository) GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.Tour, error) {
	return r.findSorted(ctx, bson.M{"clientId": clientID})
}

// GetByGuideID retrieves all bookings held by a guide, soonest first.
func (r *mongoTourRepository) GetByGuideID(ctx context.Context, guideID primitive.ObjectID) ([]domain.Tour, error) {
	return r.findSorted(ctx, bson.M{"guideId": guideID})
}

func (r *mongoTourRepository) findSorted(ctx context.Context, filter bson.M) ([]domain.Tour, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "startTime", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tours []domain.Tour
	if err = cursor.All(ctx, &tours); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return tours, nil
}

// TransitionStatus moves the tour status behind a guard on the current one,
// so two concurrent transitions cannot both take effect: the loser's filter
// no longer matches and it gets ErrPreconditionFailed.
func (r *mongoTourRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from []domain.TourStatus, to domain.TourStatus, reason string) error {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": from},
	}
	set := bson.M{
		"status":    to,
		"updatedAt": time.Now().UTC(),
	}
	if to == domain.TourStatusCancelled && reason != "" {
		set["cancellationReason"] = reason
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrPreconditionFailed
	}
	return nil
}

// EnsureTourIndexes creates necessary indexes for the tours collection.
// Call this once during application startup.
func EnsureTourIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "guideId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
