package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
)

type mockReviewRepo struct {
	reviews map[string]models.Review
}

func (m *mockReviewRepo) FindByID(ctx context.Context, id string) (*models.Review, error) {
	if r, ok := m.reviews[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReviewRepo) FindByTriple(ctx context.Context, studentID, tutorID, bookingID string) (*models.Review, error) {
	for _, r := range m.reviews {
		if r.StudentID == studentID && r.TutorID == tutorID && r.BookingID == bookingID {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockReviewRepo) List(ctx context.Context, filter models.ReviewFilter) ([]models.Review, int, error) {
	var list []models.Review
	for _, r := range m.reviews {
		if filter.TutorID != "" && r.TutorID != filter.TutorID {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		list = append(list, r)
	}
	return list, len(list), nil
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = "new-review"
	}
	if m.reviews == nil {
		m.reviews = make(map[string]models.Review)
	}
	m.reviews[review.ID] = *review
	return nil
}

func (m *mockReviewRepo) Update(ctx context.Context, review *models.Review) error {
	m.reviews[review.ID] = *review
	return nil
}

func (m *mockReviewRepo) RatingSummary(ctx context.Context, tutorID string) (int, float64, error) {
	var total int
	var sum float64
	for _, r := range m.reviews {
		if r.TutorID == tutorID {
			total++
			sum += float64(r.Rating)
		}
	}
	if total == 0 {
		return 0, 0, nil
	}
	return total, sum / float64(total), nil
}

type mockReviewBookingRepo struct {
	bookings map[string]models.Booking
}

func (m *mockReviewBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

type mockRatingWriter struct {
	tutorID string
	rating  float64
	total   int
	calls   int
}

func (m *mockRatingWriter) UpdateRatingSummary(ctx context.Context, id string, rating float64, totalReviews int) error {
	m.tutorID = id
	m.rating = rating
	m.total = totalReviews
	m.calls++
	return nil
}

func completedBooking() *mockReviewBookingRepo {
	return &mockReviewBookingRepo{bookings: map[string]models.Booking{
		"b1": {ID: "b1", TutorID: "t1", StudentID: "s1", Status: models.BookingCompleted},
		"b2": {ID: "b2", TutorID: "t1", StudentID: "s1", Status: models.BookingConfirmed},
	}}
}

func newReviewService(repo *mockReviewRepo, bookings *mockReviewBookingRepo, writer *mockRatingWriter) *ReviewService {
	return NewReviewService(repo, bookings, writer, nil, nil, nil, nil)
}

func TestReviewServiceSubmit(t *testing.T) {
	repo := &mockReviewRepo{}
	writer := &mockRatingWriter{}
	svc := newReviewService(repo, completedBooking(), writer)

	review, err := svc.Submit(context.Background(), "s1", "b1", models.SubmitReviewRequest{Rating: 5, Comment: "Great"})
	require.NoError(t, err)
	assert.Equal(t, "t1", review.TutorID)
	assert.Equal(t, 5, review.Rating)

	assert.Equal(t, 1, writer.calls)
	assert.Equal(t, "t1", writer.tutorID)
	assert.InDelta(t, 5.0, writer.rating, 0.001)
	assert.Equal(t, 1, writer.total)
}

func TestReviewServiceSubmitNotCompleted(t *testing.T) {
	svc := newReviewService(&mockReviewRepo{}, completedBooking(), &mockRatingWriter{})

	_, err := svc.Submit(context.Background(), "s1", "b2", models.SubmitReviewRequest{Rating: 4})
	require.Error(t, err)
	assertCode(t, err, appErrors.ErrNotEligible.Code)
}

func TestReviewServiceSubmitDuplicate(t *testing.T) {
	repo := &mockReviewRepo{reviews: map[string]models.Review{
		"r1": {ID: "r1", StudentID: "s1", TutorID: "t1", BookingID: "b1", Rating: 4},
	}}
	svc := newReviewService(repo, completedBooking(), &mockRatingWriter{})

	_, err := svc.Submit(context.Background(), "s1", "b1", models.SubmitReviewRequest{Rating: 5})
	require.Error(t, err)
	assertCode(t, err, appErrors.ErrNotEligible.Code)
}

func TestReviewServiceSubmitWrongStudent(t *testing.T) {
	svc := newReviewService(&mockReviewRepo{}, completedBooking(), &mockRatingWriter{})

	_, err := svc.Submit(context.Background(), "s2", "b1", models.SubmitReviewRequest{Rating: 5})
	require.Error(t, err)
	assertCode(t, err, appErrors.ErrNotEligible.Code)
}

func TestReviewServiceSubmitRatingBounds(t *testing.T) {
	svc := newReviewService(&mockReviewRepo{}, completedBooking(), &mockRatingWriter{})

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), "s1", "b1", models.SubmitReviewRequest{Rating: rating})
		require.Error(t, err, "rating %d", rating)
		assertCode(t, err, appErrors.ErrValidation.Code)
	}
}

func TestReviewServiceSubmitUnknownBooking(t *testing.T) {
	svc := newReviewService(&mockReviewRepo{}, completedBooking(), &mockRatingWriter{})

	_, err := svc.Submit(context.Background(), "s1", "missing", models.SubmitReviewRequest{Rating: 5})
	require.Error(t, err)
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestReviewServiceEdit(t *testing.T) {
	repo := &mockReviewRepo{reviews: map[string]models.Review{
		"r1": {ID: "r1", StudentID: "s1", TutorID: "t1", BookingID: "b1", Rating: 4, Comment: "Fine"},
	}}
	writer := &mockRatingWriter{}
	svc := newReviewService(repo, completedBooking(), writer)

	review, err := svc.Edit(context.Background(), "r1", "s1", models.SubmitReviewRequest{Rating: 2, Comment: "Revised"})
	require.NoError(t, err)
	assert.Equal(t, 2, review.Rating)
	assert.Equal(t, "Revised", review.Comment)
	assert.Equal(t, "b1", review.BookingID)

	assert.Equal(t, 1, writer.calls)
	assert.InDelta(t, 2.0, writer.rating, 0.001)
}

func TestReviewServiceEditWrongStudent(t *testing.T) {
	repo := &mockReviewRepo{reviews: map[string]models.Review{
		"r1": {ID: "r1", StudentID: "s1", TutorID: "t1", BookingID: "b1", Rating: 4},
	}}
	svc := newReviewService(repo, completedBooking(), &mockRatingWriter{})

	_, err := svc.Edit(context.Background(), "r1", "s2", models.SubmitReviewRequest{Rating: 1})
	require.Error(t, err)
	assertCode(t, err, appErrors.ErrForbidden.Code)
}

func TestReviewServiceCanReview(t *testing.T) {
	repo := &mockReviewRepo{}
	svc := newReviewService(repo, completedBooking(), &mockRatingWriter{})

	ok, reason, err := svc.CanReview(context.Background(), "s1", "b1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason, err = svc.CanReview(context.Background(), "s1", "b2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "not completed")
}

func TestReviewServiceRefreshTutorRatingAverages(t *testing.T) {
	repo := &mockReviewRepo{reviews: map[string]models.Review{
		"r1": {ID: "r1", StudentID: "s1", TutorID: "t1", BookingID: "b1", Rating: 5},
		"r2": {ID: "r2", StudentID: "s2", TutorID: "t1", BookingID: "b9", Rating: 4},
		"r3": {ID: "r3", StudentID: "s3", TutorID: "t2", BookingID: "b8", Rating: 1},
	}}
	writer := &mockRatingWriter{}
	svc := newReviewService(repo, completedBooking(), writer)

	require.NoError(t, svc.RefreshTutorRating(context.Background(), "t1"))
	assert.Equal(t, 2, writer.total)
	assert.InDelta(t, 4.5, writer.rating, 0.001)
}
