package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
)

type statsRepository interface {
	TutorStats(ctx context.Context, tutorID string) (*models.TutorStats, error)
	StudentStats(ctx context.Context, studentID, today string) (*models.StudentStats, error)
	AdminStats(ctx context.Context) (*models.AdminStats, error)
}

type statsTutorRepository interface {
	FindByID(ctx context.Context, id string) (*models.TutorProfile, error)
}

type statsUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// StatsService recomputes dashboard aggregates straight from the store and
// fronts them with a short-lived cache. Nothing is ever incremented in
// place, so a cached value can only ever be stale, never wrong.
type StatsService struct {
	repo     statsRepository
	tutors   statsTutorRepository
	users    statsUserRepository
	cache    *CacheService
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewStatsService constructs a StatsService.
func NewStatsService(repo statsRepository, tutors statsTutorRepository, users statsUserRepository, cache *CacheService, logger *zap.Logger, cacheTTL time.Duration) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StatsService{
		repo:     repo,
		tutors:   tutors,
		users:    users,
		cache:    cache,
		logger:   logger,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Tutor returns a tutor's aggregate stats and reports whether the payload
// came from cache.
func (s *StatsService) Tutor(ctx context.Context, tutorID string) (*models.TutorStats, bool, error) {
	if _, err := s.tutors.FindByID(ctx, tutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, false, appErrors.FromStorage(err, "failed to load tutor")
	}

	cacheKey := fmt.Sprintf("stats:tutor:%s", tutorID)
	if s.cache != nil {
		var cached models.TutorStats
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	stats, err := s.repo.TutorStats(ctx, tutorID)
	if err != nil {
		return nil, false, appErrors.FromStorage(err, "failed to compute tutor stats")
	}
	stats.Rating = roundRating(stats.Rating)
	stats.GeneratedAt = s.now()

	if stats.OrphanBookings > 0 {
		s.logger.Warn("tutor has bookings referencing deleted students",
			zap.String("tutor_id", tutorID),
			zap.Int("orphan_bookings", stats.OrphanBookings))
	}

	s.persist(ctx, cacheKey, stats)
	return stats, false, nil
}

// Student returns a student's aggregate stats and reports whether the
// payload came from cache.
func (s *StatsService) Student(ctx context.Context, studentID string) (*models.StudentStats, bool, error) {
	user, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.FromStorage(err, "failed to load student")
	}
	if user.Role != models.RoleStudent {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	cacheKey := fmt.Sprintf("stats:student:%s", studentID)
	if s.cache != nil {
		var cached models.StudentStats
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	today := s.now().Format("2006-01-02")
	stats, err := s.repo.StudentStats(ctx, studentID, today)
	if err != nil {
		return nil, false, appErrors.FromStorage(err, "failed to compute student stats")
	}
	stats.GeneratedAt = s.now()

	s.persist(ctx, cacheKey, stats)
	return stats, false, nil
}

// Admin returns platform-wide totals and reports whether the payload came
// from cache.
func (s *StatsService) Admin(ctx context.Context) (*models.AdminStats, bool, error) {
	const cacheKey = "stats:admin"
	if s.cache != nil {
		var cached models.AdminStats
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	stats, err := s.repo.AdminStats(ctx)
	if err != nil {
		return nil, false, appErrors.FromStorage(err, "failed to compute admin stats")
	}
	stats.GeneratedAt = s.now()

	s.persist(ctx, cacheKey, stats)
	return stats, false, nil
}

func (s *StatsService) persist(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// roundRating keeps the exposed mean at one decimal place.
func roundRating(rating float64) float64 {
	return math.Round(rating*10) / 10
}
