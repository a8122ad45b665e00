package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const guideCollectionName = "guides"

// mongoGuideRepository implements repository.GuideRepository
type mongoGuideRepository struct {
	collection *mongo.Collection
}

// NewMongoGuideRepository creates a new Guide repository backed by MongoDB.
func NewMongoGuideRepository(db *mongo.Database) repository.GuideRepository {
	return &mongoGuideRepository{
		collection: db.Collection(guideCollectionName),
	}
}

// Create inserts a new guide profile into the database.
func (r *mongoGuideRepository) Create(ctx context.Context, guide *domain.Guide) (primitive.ObjectID, error) {
	if guide.UserID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("guide requires a userId")
	}

	guide.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	guide.CreatedAt = now
	guide.UpdatedAt = now
	if guide.Status == "" {
		guide.Status = domain.GuideStatusPending
	}
	if guide.Availability == nil {
		guide.Availability = []domain.AvailabilityEntry{}
	}
	if guide.Reviews == nil {
		guide.Reviews = []domain.Review{}
	}

	result, err := r.collection.InsertOne(ctx, guide)
	if err != nil {
		// userId carries a unique index: one profile per user.
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted guide ID")
	}

	return insertedID, nil
}

// GetByID retrieves a guide by its ID.
func (r *mongoGuideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Guide, error) {
	var guide domain.Guide
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&guide)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &guide, nil
}

// GetByUserID retrieves the guide profile owned by the given user.
func (r *mongoGuideRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Guide, error) {
	var guide domain.Guide
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&guide)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &guide, nil
}

// UpdateProfile persists the editable profile fields. Availability, reviews
// and the derived rating are owned by their dedicated conditional updates and
// are deliberately not written here.
func (r *mongoGuideRepository) UpdateProfile(ctx context.Context, guide *domain.Guide) error {
	filter := bson.M{"_id": guide.ID}
	update := bson.M{
		"$set": bson.M{
			"specialties":    guide.Specialties,
			"destinations":   guide.Destinations,
			"languages":      guide.Languages,
			"description":    guide.Description,
			"experience":     guide.Experience,
			"certifications": guide.Certifications,
			"pricing":        guide.Pricing,
			"status":         guide.Status,
			"updatedAt":      time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetAvailability replaces the entry for entry.Date or inserts a new one.
// The insert is guarded on the date being absent so two concurrent calls for
// the same new date cannot produce two entries.
func (r *mongoGuideRepository) SetAvailability(ctx context.Context, guideID primitive.ObjectID, entry domain.AvailabilityEntry) error {
	entry.Date = domain.NormalizeDate(entry.Date)
	now := time.Now().UTC()

	replace := bson.M{"$set": bson.M{"availability.$": entry, "updatedAt": now}}
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": guideID, "availability.date": entry.Date}, replace)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	push := bson.M{"$push": bson.M{"availability": entry}, "$set": bson.M{"updatedAt": now}}
	result, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": guideID, "availability.date": bson.M{"$ne": entry.Date}}, push)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Lost the insert race: someone pushed this date between our two updates.
	// Replace once more; only a missing guide is left after that.
	result, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": guideID, "availability.date": entry.Date}, replace)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// BookSlot flips the matching slot to booked, conditionally. The filter
// requires the day to be available and the exact slot to still be unbooked at
// write time, so concurrent bookings of one slot linearize at the database:
// exactly one update matches, the rest come back with MatchedCount 0.
func (r *mongoGuideRepository) BookSlot(ctx context.Context, guideID primitive.ObjectID, date time.Time, startTime, endTime string) error {
	date = domain.NormalizeDate(date)

	filter := bson.M{
		"_id": guideID,
		"availability": bson.M{"$elemMatch": bson.M{
			"date":        date,
			"isAvailable": true,
			"timeSlots": bson.M{"$elemMatch": bson.M{
				"startTime": startTime,
				"endTime":   endTime,
				"isBooked":  false,
			}},
		}},
	}
	update := bson.M{"$set": bson.M{
		"availability.$[day].timeSlots.$[slot].isBooked": true,
		"updatedAt": time.Now().UTC(),
	}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"day.date": date, "day.isAvailable": true},
			bson.M{"slot.startTime": startTime, "slot.endTime": endTime, "slot.isBooked": false},
		},
	})

	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrPreconditionFailed
	}
	return nil
}

// ReleaseSlot flips the matching slot back to unbooked. A day or slot that is
// already gone (or already unbooked) is not an error, so repeated releases
// for the same booking are no-ops.
func (r *mongoGuideRepository) ReleaseSlot(ctx context.Context, guideID primitive.ObjectID, date time.Time, startTime, endTime string) error {
	date = domain.NormalizeDate(date)

	update := bson.M{"$set": bson.M{
		"availability.$[day].timeSlots.$[slot].isBooked": false,
		"updatedAt": time.Now().UTC(),
	}}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"day.date": date},
			bson.M{"slot.startTime": startTime, "slot.endTime": endTime},
		},
	})

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": guideID}, update, opts)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddReview pushes the review behind a guard on the reviewer not already
// appearing in the list. One review per (guide, user).
func (r *mongoGuideRepository) AddReview(ctx context.Context, guideID primitive.ObjectID, review domain.Review) error {
	filter := bson.M{
		"_id":            guideID,
		"reviews.userId": bson.M{"$ne": review.UserID},
	}
	update := bson.M{
		"$push": bson.M{"reviews": review},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrPreconditionFailed
	}
	return nil
}

// SetRating persists the derived rating fields.
func (r *mongoGuideRepository) SetRating(ctx context.Context, guideID primitive.ObjectID, rating float64, numberOfReviews int) error {
	filter := bson.M{"_id": guideID}
	update := bson.M{"$set": bson.M{
		"rating":          rating,
		"numberOfReviews": numberOfReviews,
		"updatedAt":       time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Search translates a GuideFilter into a Mongo query and returns one page
// plus the total count. Sort is rating desc with _id desc as tiebreak so
// pagination stays stable between requests.
func (r *mongoGuideRepository) Search(ctx context.Context, filter repository.GuideFilter) ([]domain.Guide, int64, error) {
	query := bson.M{}

	destMatch := bson.M{}
	if filter.City != "" {
		destMatch["city"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.City), Options: "i"}
	}
	if filter.Country != "" {
		destMatch["country"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Country), Options: "i"}
	}
	if len(destMatch) > 0 {
		query["destinations"] = bson.M{"$elemMatch": destMatch}
	}

	if len(filter.Specialties) > 0 {
		query["specialties"] = bson.M{"$in": caseInsensitivePatterns(filter.Specialties)}
	}
	if len(filter.Languages) > 0 {
		query["languages"] = bson.M{"$in": caseInsensitivePatterns(filter.Languages)}
	}
	if filter.MaxPrice != nil {
		query["pricing.baseRate"] = bson.M{"$lte": *filter.MaxPrice}
	}
	if filter.MinRating != nil {
		query["rating"] = bson.M{"$gte": *filter.MinRating}
	}

	if filter.AvailableFrom != nil || filter.AvailableTo != nil {
		window := bson.M{"isAvailable": true}
		dateRange := bson.M{}
		if filter.AvailableFrom != nil {
			dateRange["$gte"] = domain.NormalizeDate(*filter.AvailableFrom)
		}
		if filter.AvailableTo != nil {
			dateRange["$lte"] = domain.NormalizeDate(*filter.AvailableTo)
		}
		window["date"] = dateRange
		query["availability"] = bson.M{"$elemMatch": window}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, query, findOpts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var guides []domain.Guide
	if err = cursor.All(ctx, &guides); err != nil {
		return nil, 0, err
	}
	if err = cursor.Err(); err != nil {
		return nil, 0, err
	}

	return guides, total, nil
}

func caseInsensitivePatterns(values []string) []primitive.Regex {
	patterns := make([]primitive.Regex, len(values))
	for i, v := range values {
		patterns[i] = primitive.Regex{Pattern: regexp.QuoteMeta(v), Options: "i"}
	}
	return patterns
}

// EnsureGuideIndexes creates necessary indexes for the guides collection.
// Call this once during application startup.
func EnsureGuideIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "destinations.city", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "availability.date", Value: 1}},
			Options: options.Index(),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
