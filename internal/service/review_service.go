package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
	"github.com/tutorlink/tutorlink-api/pkg/jobs"
)

type reviewRepository interface {
	FindByID(ctx context.Context, id string) (*models.Review, error)
	FindByTriple(ctx context.Context, studentID, tutorID, bookingID string) (*models.Review, error)
	List(ctx context.Context, filter models.ReviewFilter) ([]models.Review, int, error)
	Create(ctx context.Context, review *models.Review) error
	Update(ctx context.Context, review *models.Review) error
	RatingSummary(ctx context.Context, tutorID string) (int, float64, error)
}

type reviewBookingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Booking, error)
}

type reviewTutorRepository interface {
	UpdateRatingSummary(ctx context.Context, id string, rating float64, totalReviews int) error
}

type reviewJobQueue interface {
	Enqueue(job jobs.Job) error
}

// JobTypeRefreshTutorRating identifies the background job that recomputes a
// tutor's denormalised rating summary.
const JobTypeRefreshTutorRating = "refresh_tutor_rating"

// ReviewService enforces review eligibility and keeps the tutor rating
// read model in sync.
type ReviewService struct {
	repo        reviewRepository
	bookings    reviewBookingRepository
	tutors      reviewTutorRepository
	invalidator bookingStatsInvalidator
	queue       reviewJobQueue
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs a ReviewService.
func NewReviewService(repo reviewRepository, bookings reviewBookingRepository, tutors reviewTutorRepository, invalidator bookingStatsInvalidator, queue reviewJobQueue, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{
		repo:        repo,
		bookings:    bookings,
		tutors:      tutors,
		invalidator: invalidator,
		queue:       queue,
		validator:   validate,
		logger:      logger,
	}
}

// Submit creates a review for a completed booking. Eligibility: the booking
// exists, belongs to the student, is completed, and carries no review yet.
// The unique index on (student_id, tutor_id, booking_id) backstops the
// pre-check, so a concurrent duplicate loses with the same error.
func (s *ReviewService) Submit(ctx context.Context, studentID, bookingID string, req models.SubmitReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load booking")
	}

	if booking.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, "booking belongs to another student")
	}
	if booking.Status != models.BookingCompleted {
		return nil, appErrors.Clone(appErrors.ErrNotEligible,
			fmt.Sprintf("only completed sessions can be reviewed, booking is %s", booking.Status))
	}

	if _, err := s.repo.FindByTriple(ctx, studentID, booking.TutorID, bookingID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, "session is already reviewed, edit the existing review instead")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.FromStorage(err, "failed to check existing review")
	}

	review := &models.Review{
		StudentID: studentID,
		TutorID:   booking.TutorID,
		BookingID: bookingID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, appErrors.Clone(appErrors.ErrNotEligible, "session is already reviewed, edit the existing review instead")
		}
		return nil, appErrors.FromStorage(err, "failed to create review")
	}

	s.logger.Info("review submitted",
		zap.String("review_id", review.ID),
		zap.String("tutor_id", review.TutorID),
		zap.Int("rating", review.Rating))

	s.scheduleRatingRefresh(ctx, review.TutorID)
	return review, nil
}

// Edit rewrites rating and comment of the student's own review. Concurrent
// edits are last-commit-wins.
func (s *ReviewService) Edit(ctx context.Context, reviewID, studentID string, req models.SubmitReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load review")
	}

	if review.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "review belongs to another student")
	}

	review.Rating = req.Rating
	review.Comment = req.Comment
	if err := s.repo.Update(ctx, review); err != nil {
		return nil, appErrors.FromStorage(err, "failed to update review")
	}

	s.scheduleRatingRefresh(ctx, review.TutorID)
	return review, nil
}

// CanReview reports whether the student may review the booking, with the
// blocking reason when not.
func (s *ReviewService) CanReview(ctx context.Context, studentID, bookingID string) (bool, string, error) {
	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, "booking not found", nil
		}
		return false, "", appErrors.FromStorage(err, "failed to load booking")
	}
	if booking.StudentID != studentID {
		return false, "booking belongs to another student", nil
	}
	if booking.Status != models.BookingCompleted {
		return false, fmt.Sprintf("booking is %s, not completed", booking.Status), nil
	}
	if _, err := s.repo.FindByTriple(ctx, studentID, booking.TutorID, bookingID); err == nil {
		return false, "session is already reviewed", nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, "", appErrors.FromStorage(err, "failed to check existing review")
	}
	return true, "", nil
}

// List returns reviews matching the filter.
func (s *ReviewService) List(ctx context.Context, filter models.ReviewFilter) ([]models.Review, int, error) {
	reviews, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.FromStorage(err, "failed to list reviews")
	}
	return reviews, total, nil
}

// RefreshTutorRating recomputes the tutor's review count and mean rating
// from the reviews table and overwrites the denormalised copy on the
// profile. Also the handler for the background refresh job.
func (s *ReviewService) RefreshTutorRating(ctx context.Context, tutorID string) error {
	total, avg, err := s.repo.RatingSummary(ctx, tutorID)
	if err != nil {
		return fmt.Errorf("refresh tutor rating: %w", err)
	}
	if err := s.tutors.UpdateRatingSummary(ctx, tutorID, avg, total); err != nil {
		return fmt.Errorf("refresh tutor rating: %w", err)
	}
	return nil
}

// HandleRatingRefreshJob adapts RefreshTutorRating to the job queue.
func (s *ReviewService) HandleRatingRefreshJob(ctx context.Context, job jobs.Job) error {
	tutorID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s job", job.Payload, job.Type)
	}
	return s.RefreshTutorRating(ctx, tutorID)
}

// scheduleRatingRefresh hands the recompute to the background queue, falling
// back to a synchronous refresh when no queue is wired.
func (s *ReviewService) scheduleRatingRefresh(ctx context.Context, tutorID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateTutor(ctx, tutorID)
	}

	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{
			ID:      uuid.NewString(),
			Type:    JobTypeRefreshTutorRating,
			Payload: tutorID,
		})
		if err == nil {
			return
		}
		s.logger.Warn("failed to enqueue rating refresh, running inline", zap.Error(err))
	}

	if err := s.RefreshTutorRating(ctx, tutorID); err != nil {
		s.logger.Warn("failed to refresh tutor rating", zap.String("tutor_id", tutorID), zap.Error(err))
	}
}
