package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
)

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ListForTutorDate(ctx context.Context, tutorID, date string) ([]models.Booking, error)
	Reserve(ctx context.Context, booking *models.Booking, detect func(existing []models.Booking) error) error
	Transition(ctx context.Context, id string, mutate func(*models.Booking) error) (*models.Booking, error)
}

type bookingTutorRepository interface {
	FindByID(ctx context.Context, id string) (*models.TutorProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error)
}

type bookingStatsInvalidator interface {
	InvalidateTutor(ctx context.Context, tutorID string)
	InvalidateStudent(ctx context.Context, studentID string)
}

// BookingSettings bounds what a single session request may look like.
type BookingSettings struct {
	MinDurationMinutes int
	MaxDurationMinutes int
}

// BookingService owns the booking lifecycle: slot validation, conflict
// detection, pricing and state transitions.
type BookingService struct {
	repo        bookingRepository
	tutors      bookingTutorRepository
	invalidator bookingStatsInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	settings    BookingSettings
	now         func() time.Time
}

// NewBookingService constructs a BookingService.
func NewBookingService(repo bookingRepository, tutors bookingTutorRepository, invalidator bookingStatsInvalidator, validate *validator.Validate, logger *zap.Logger, settings BookingSettings) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if settings.MinDurationMinutes <= 0 {
		settings.MinDurationMinutes = 1
	}
	if settings.MaxDurationMinutes <= 0 {
		settings.MaxDurationMinutes = 480
	}
	return &BookingService{
		repo:        repo,
		tutors:      tutors,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
		settings:    settings,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create validates a session request, prices it and atomically reserves the
// slot on the tutor's calendar. The conflict re-check runs inside the
// reservation transaction, so a slot can never be double-booked even under
// concurrent requests.
func (s *BookingService) Create(ctx context.Context, studentID string, req models.CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	date, err := models.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", req.Date))
	}
	today := s.now().Truncate(24 * time.Hour)
	if date.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot book a session in the past")
	}

	startMinute, err := models.MinuteOfDay(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start time %q, want HH:MM", req.StartTime))
	}
	endMinute, err := models.MinuteOfDay(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid end time %q, want HH:MM", req.EndTime))
	}
	if startMinute >= endMinute {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}

	duration := endMinute - startMinute
	if duration < s.settings.MinDurationMinutes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session must be at least %d minutes", s.settings.MinDurationMinutes))
	}
	if duration > s.settings.MaxDurationMinutes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session must be at most %d minutes", s.settings.MaxDurationMinutes))
	}

	tutor, err := s.tutors.FindByID(ctx, req.TutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load tutor")
	}
	if !tutor.Teaches(req.Subject) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("tutor does not teach %s", req.Subject))
	}

	quote := models.PriceSession(startMinute, endMinute, tutor.HourlyRate)
	if quote.RateMissing {
		s.logger.Warn("tutor has no hourly rate, booking priced at zero",
			zap.String("tutor_id", tutor.ID))
	}

	booking := &models.Booking{
		TutorID:         tutor.ID,
		StudentID:       studentID,
		Subject:         req.Subject,
		Date:            req.Date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: quote.DurationMinutes,
		Cost:            quote.Cost,
		Status:          models.BookingPending,
		Location:        req.Location,
		Notes:           req.Notes,
	}

	err = s.repo.Reserve(ctx, booking, func(existing []models.Booking) error {
		for i := range existing {
			if models.OverlapsBooking(startMinute, endMinute, &existing[i]) {
				return &models.BookingConflictError{
					Message: "tutor is already booked in this time slot",
					Conflict: models.BookingConflict{
						BookingID: existing[i].ID,
						TutorID:   existing[i].TutorID,
						Date:      existing[i].Date,
						StartTime: existing[i].StartTime,
						EndTime:   existing[i].EndTime,
						Status:    existing[i].Status,
					},
				}
			}
		}
		return nil
	})
	if err != nil {
		var conflict *models.BookingConflictError
		if errors.As(err, &conflict) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message)
		}
		return nil, appErrors.FromStorage(err, "failed to reserve booking")
	}

	s.logger.Info("booking reserved",
		zap.String("booking_id", booking.ID),
		zap.String("tutor_id", booking.TutorID),
		zap.String("student_id", booking.StudentID),
		zap.String("date", booking.Date))

	s.invalidate(ctx, booking)
	return booking, nil
}

// UpdateStatus transitions a booking, enforcing both the lifecycle table and
// the actor's authority over the booking. The row stays locked for the whole
// check-and-write, so concurrent transitions cannot both succeed.
func (s *BookingService) UpdateStatus(ctx context.Context, id string, target models.BookingStatus, actor *models.JWTClaims) (*models.Booking, error) {
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", target))
	}

	var tutorProfileID string
	if actor.Role == models.RoleTutor {
		profile, err := s.tutors.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "no tutor profile for this account")
			}
			return nil, appErrors.FromStorage(err, "failed to load tutor profile")
		}
		tutorProfileID = profile.ID
	}

	booking, err := s.repo.Transition(ctx, id, func(b *models.Booking) error {
		if err := s.authorizeTransition(b, target, actor, tutorProfileID); err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(target) {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot move booking from %s to %s", b.Status, target))
		}
		b.Status = target
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.FromStorage(err, "failed to update booking status")
	}

	s.logger.Info("booking status updated",
		zap.String("booking_id", booking.ID),
		zap.String("status", string(booking.Status)),
		zap.String("actor_id", actor.UserID))

	s.invalidate(ctx, booking)
	return booking, nil
}

// authorizeTransition applies role rules on top of the lifecycle table.
// Students may only cancel their own bookings; tutors confirm, complete or
// cancel sessions on their own calendar; admins may do anything. A transition
// the actor is not entitled to make is an invalid transition, same as a move
// the lifecycle table rejects.
func (s *BookingService) authorizeTransition(b *models.Booking, target models.BookingStatus, actor *models.JWTClaims, tutorProfileID string) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if b.StudentID != actor.UserID {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "booking belongs to another student")
		}
		if target != models.BookingCancelled {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("students may only cancel bookings, not move them from %s to %s", b.Status, target))
		}
		return nil
	case models.RoleTutor:
		if b.TutorID != tutorProfileID {
			return appErrors.Clone(appErrors.ErrInvalidTransition, "booking belongs to another tutor")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrInvalidTransition, "role cannot modify bookings")
	}
}

// Get loads a single booking, restricted to its participants and admins.
func (s *BookingService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load booking")
	}
	if err := s.authorizeRead(ctx, booking, actor); err != nil {
		return nil, err
	}
	return booking, nil
}

// List returns bookings scoped to what the actor may see. Students and
// tutors are pinned to their own bookings regardless of the filter.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter, actor *models.JWTClaims) ([]models.Booking, int, error) {
	switch actor.Role {
	case models.RoleStudent:
		filter.StudentID = actor.UserID
	case models.RoleTutor:
		profile, err := s.tutors.FindByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, 0, appErrors.Clone(appErrors.ErrForbidden, "no tutor profile for this account")
			}
			return nil, 0, appErrors.FromStorage(err, "failed to load tutor profile")
		}
		filter.TutorID = profile.ID
	}

	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.FromStorage(err, "failed to list bookings")
	}
	return bookings, total, nil
}

// TutorDaySchedule returns a tutor's blocked slots on a date so students can
// pick a free one. Cancelled bookings are already filtered out.
func (s *BookingService) TutorDaySchedule(ctx context.Context, tutorID, date string) ([]models.Booking, error) {
	if _, err := models.ParseDate(date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", date))
	}
	if _, err := s.tutors.FindByID(ctx, tutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load tutor")
	}
	bookings, err := s.repo.ListForTutorDate(ctx, tutorID, date)
	if err != nil {
		return nil, appErrors.FromStorage(err, "failed to load tutor schedule")
	}
	return bookings, nil
}

func (s *BookingService) authorizeRead(ctx context.Context, b *models.Booking, actor *models.JWTClaims) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleStudent:
		if b.StudentID != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another student")
		}
		return nil
	case models.RoleTutor:
		profile, err := s.tutors.FindByUserID(ctx, actor.UserID)
		if err != nil {
			return appErrors.Clone(appErrors.ErrForbidden, "no tutor profile for this account")
		}
		if b.TutorID != profile.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "booking belongs to another tutor")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "role cannot view bookings")
	}
}

func (s *BookingService) invalidate(ctx context.Context, b *models.Booking) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.InvalidateTutor(ctx, b.TutorID)
	s.invalidator.InvalidateStudent(ctx, b.StudentID)
}
