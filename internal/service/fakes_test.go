package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"voyago/guide-app/internal/domain"
	"voyago/guide-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory repository fakes. They reproduce the conditional-write semantics
// of the Mongo implementations (check and mutate under one lock) so the
// services' concurrency behavior can be exercised without a database.

// --- users ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	cp := *user
	r.users[user.ID] = &cp
	return user.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) SetProfileImageKey(_ context.Context, id primitive.ObjectID, objectKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.ProfileImageKey = objectKey
	return nil
}

func (r *fakeUserRepo) TouchLastLogin(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	u.LastLogin = &now
	return nil
}

func (r *fakeUserRepo) add(user *domain.User) primitive.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == primitive.NilObjectID {
		user.ID = primitive.NewObjectID()
	}
	cp := *user
	r.users[user.ID] = &cp
	return user.ID
}

// --- guides ---

type fakeGuideRepo struct {
	mu     sync.Mutex
	guides map[primitive.ObjectID]*domain.Guide
}

func newFakeGuideRepo() *fakeGuideRepo {
	return &fakeGuideRepo{guides: make(map[primitive.ObjectID]*domain.Guide)}
}

func copyGuide(g *domain.Guide) *domain.Guide {
	cp := *g
	cp.Specialties = append([]string(nil), g.Specialties...)
	cp.Destinations = append([]domain.Destination(nil), g.Destinations...)
	cp.Languages = append([]string(nil), g.Languages...)
	cp.Certifications = append([]domain.Certification(nil), g.Certifications...)
	cp.Reviews = append([]domain.Review(nil), g.Reviews...)
	cp.Availability = make([]domain.AvailabilityEntry, len(g.Availability))
	for i, e := range g.Availability {
		e.TimeSlots = append([]domain.TimeSlot(nil), e.TimeSlots...)
		cp.Availability[i] = e
	}
	return &cp
}

func (r *fakeGuideRepo) Create(_ context.Context, guide *domain.Guide) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.guides {
		if g.UserID == guide.UserID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	guide.ID = primitive.NewObjectID()
	if guide.Status == "" {
		guide.Status = domain.GuideStatusPending
	}
	r.guides[guide.ID] = copyGuide(guide)
	return guide.ID, nil
}

func (r *fakeGuideRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Guide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyGuide(g), nil
}

func (r *fakeGuideRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) (*domain.Guide, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.guides {
		if g.UserID == userID {
			return copyGuide(g), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeGuideRepo) UpdateProfile(_ context.Context, guide *domain.Guide) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[guide.ID]
	if !ok {
		return repository.ErrNotFound
	}
	g.Specialties = append([]string(nil), guide.Specialties...)
	g.Destinations = append([]domain.Destination(nil), guide.Destinations...)
	g.Languages = append([]string(nil), guide.Languages...)
	g.Description = guide.Description
	g.Experience = guide.Experience
	g.Certifications = append([]domain.Certification(nil), guide.Certifications...)
	g.Pricing = guide.Pricing
	g.Status = guide.Status
	return nil
}

func (r *fakeGuideRepo) SetAvailability(_ context.Context, guideID primitive.ObjectID, entry domain.AvailabilityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[guideID]
	if !ok {
		return repository.ErrNotFound
	}
	entry.Date = domain.NormalizeDate(entry.Date)
	entry.TimeSlots = append([]domain.TimeSlot(nil), entry.TimeSlots...)
	for i := range g.Availability {
		if g.Availability[i].Date.Equal(entry.Date) {
			g.Availability[i] = entry
			return nil
		}
	}
	g.Availability = append(g.Availability, entry)
	return nil
}

func (r *fakeGuideRepo) BookSlot(_ context.Context, guideID primitive.ObjectID, date time.Time, startTime, endTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[guideID]
	if !ok {
		return repository.ErrPreconditionFailed
	}
	date = domain.NormalizeDate(date)
	entry := g.FindAvailability(date)
	if entry == nil || !entry.IsAvailable {
		return repository.ErrPreconditionFailed
	}
	slot := entry.FindSlot(startTime, endTime)
	if slot == nil || slot.IsBooked {
		return repository.ErrPreconditionFailed
	}
	slot.IsBooked = true
	return nil
}

func (r *fakeGuideRepo) ReleaseSlot(_ context.Context, guideID primitive.ObjectID, date time.Time, startTime, endTime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[guideID]
	if !ok {
		return repository.ErrNotFound
	}
	date = domain.NormalizeDate(date)
	if entry := g.FindAvailability(date); entry != nil {
		if slot := entry.FindSlot(startTime, endTime); slot != nil {
			slot.IsBooked = false
		}
	}
	return nil
}

func (r *fakeGuideRepo) AddReview(_ context.Context, guideID primitive.ObjectID, review domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[guideID]
	if !ok {
		return repository.ErrPreconditionFailed
	}
	if g.HasReviewBy(review.UserID) {
		return repository.ErrPreconditionFailed
	}
	g.Reviews = append(g.Reviews, review)
	return nil
}

func (r *fakeGuideRepo) SetRating(_ context.Context, guideID primitive.ObjectID, rating float64, numberOfReviews int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[guideID]
	if !ok {
		return repository.ErrNotFound
	}
	g.Rating = rating
	g.NumberOfReviews = numberOfReviews
	return nil
}

func (r *fakeGuideRepo) Search(_ context.Context, filter repository.GuideFilter) ([]domain.Guide, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []domain.Guide
	for _, g := range r.guides {
		if filter.City != "" && !matchesCity(g, filter.City) {
			continue
		}
		if len(filter.Languages) > 0 && !anyOf(g.Languages, filter.Languages) {
			continue
		}
		if len(filter.Specialties) > 0 && !anyOf(g.Specialties, filter.Specialties) {
			continue
		}
		if filter.MaxPrice != nil && g.Pricing.BaseRate > *filter.MaxPrice {
			continue
		}
		if filter.MinRating != nil && g.Rating < *filter.MinRating {
			continue
		}
		matches = append(matches, *copyGuide(g))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Rating != matches[j].Rating {
			return matches[i].Rating > matches[j].Rating
		}
		return matches[i].ID.Hex() > matches[j].ID.Hex()
	})

	total := int64(len(matches))
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []domain.Guide{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func matchesCity(g *domain.Guide, city string) bool {
	for _, d := range g.Destinations {
		if strings.Contains(strings.ToLower(d.City), strings.ToLower(city)) {
			return true
		}
	}
	return false
}

func anyOf(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func (r *fakeGuideRepo) add(guide *domain.Guide) primitive.ObjectID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if guide.ID == primitive.NilObjectID {
		guide.ID = primitive.NewObjectID()
	}
	r.guides[guide.ID] = copyGuide(guide)
	return guide.ID
}

func (r *fakeGuideRepo) slot(guideID primitive.ObjectID, date time.Time, startTime, endTime string) *domain.TimeSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guides[guideID]
	if !ok {
		return nil
	}
	entry := g.FindAvailability(domain.NormalizeDate(date))
	if entry == nil {
		return nil
	}
	if s := entry.FindSlot(startTime, endTime); s != nil {
		cp := *s
		return &cp
	}
	return nil
}

// --- tours ---

type fakeTourRepo struct {
	mu         sync.Mutex
	tours      map[primitive.ObjectID]*domain.Tour
	failCreate bool // force the next Create to fail, for compensation tests
}

func newFakeTourRepo() *fakeTourRepo {
	return &fakeTourRepo{tours: make(map[primitive.ObjectID]*domain.Tour)}
}

func (r *fakeTourRepo) Create(_ context.Context, tour *domain.Tour) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return primitive.NilObjectID, repository.RepositoryError("insert failed")
	}
	tour.ID = primitive.NewObjectID()
	if tour.Status == "" {
		tour.Status = domain.TourStatusPending
	}
	if tour.PaymentStatus == "" {
		tour.PaymentStatus = domain.PaymentStatusPending
	}
	cp := *tour
	r.tours[tour.ID] = &cp
	return tour.ID, nil
}

func (r *fakeTourRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Tour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tours[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTourRepo) GetByClientID(_ context.Context, clientID primitive.ObjectID) ([]domain.Tour, error) {
	return r.filtered(func(t *domain.Tour) bool { return t.ClientID == clientID })
}

func (r *fakeTourRepo) GetByGuideID(_ context.Context, guideID primitive.ObjectID) ([]domain.Tour, error) {
	return r.filtered(func(t *domain.Tour) bool { return t.GuideID == guideID })
}

func (r *fakeTourRepo) filtered(keep func(*domain.Tour) bool) ([]domain.Tour, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var tours []domain.Tour
	for _, t := range r.tours {
		if keep(t) {
			tours = append(tours, *t)
		}
	}
	sort.Slice(tours, func(i, j int) bool {
		if !tours[i].Date.Equal(tours[j].Date) {
			return tours[i].Date.Before(tours[j].Date)
		}
		return tours[i].StartTime < tours[j].StartTime
	})
	return tours, nil
}

func (r *fakeTourRepo) TransitionStatus(_ context.Context, id primitive.ObjectID, from []domain.TourStatus, to domain.TourStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tours[id]
	if !ok {
		return repository.ErrPreconditionFailed
	}
	allowed := false
	for _, s := range from {
		if t.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return repository.ErrPreconditionFailed
	}
	t.Status = to
	if to == domain.TourStatusCancelled && reason != "" {
		t.CancellationReason = reason
	}
	return nil
}
