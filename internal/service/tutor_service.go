package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
)

type tutorRepository interface {
	List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, int, error)
	FindByID(ctx context.Context, id string) (*models.TutorProfile, error)
	FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error)
	Create(ctx context.Context, tutor *models.TutorProfile) error
	Update(ctx context.Context, tutor *models.TutorProfile) error
}

type tutorUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// TutorService manages the public tutor directory and profile ownership.
type TutorService struct {
	repo      tutorRepository
	users     tutorUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTutorService constructs a TutorService.
func NewTutorService(repo tutorRepository, users tutorUserRepository, validate *validator.Validate, logger *zap.Logger) *TutorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TutorService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns directory results for the given filter.
func (s *TutorService) List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, int, error) {
	tutors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.FromStorage(err, "failed to list tutors")
	}
	return tutors, total, nil
}

// Get loads a single public tutor profile.
func (s *TutorService) Get(ctx context.Context, id string) (*models.TutorProfile, error) {
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load tutor")
	}
	return tutor, nil
}

// GetByUser loads the profile owned by a tutor account.
func (s *TutorService) GetByUser(ctx context.Context, userID string) (*models.TutorProfile, error) {
	tutor, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor profile not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load tutor profile")
	}
	return tutor, nil
}

// Upsert creates the caller's profile on first save and updates it after.
// Only accounts with the tutor role may own a profile.
func (s *TutorService) Upsert(ctx context.Context, userID string, req models.UpsertTutorProfileRequest) (*models.TutorProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid tutor profile payload")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load user")
	}
	if user.Role != models.RoleTutor {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only tutor accounts can own a profile")
	}

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.FromStorage(err, "failed to load tutor profile")
	}

	if existing == nil {
		tutor := &models.TutorProfile{
			UserID:     userID,
			Subjects:   pq.StringArray(req.Subjects),
			HourlyRate: req.HourlyRate,
			Location:   req.Location,
			Bio:        req.Bio,
			Education:  req.Education,
			Experience: req.Experience,
		}
		if err := s.repo.Create(ctx, tutor); err != nil {
			return nil, appErrors.FromStorage(err, "failed to create tutor profile")
		}
		s.logger.Info("tutor profile created", zap.String("tutor_id", tutor.ID), zap.String("user_id", userID))
		return tutor, nil
	}

	existing.Subjects = pq.StringArray(req.Subjects)
	existing.HourlyRate = req.HourlyRate
	existing.Location = req.Location
	existing.Bio = req.Bio
	existing.Education = req.Education
	existing.Experience = req.Experience
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, appErrors.FromStorage(err, "failed to update tutor profile")
	}
	return existing, nil
}
