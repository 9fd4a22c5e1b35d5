package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
)

type catalogRepository interface {
	ListSubjects(ctx context.Context) ([]models.Subject, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
}

// CatalogService serves the subject and location reference lists.
type CatalogService struct {
	repo   catalogRepository
	logger *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo catalogRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, logger: logger}
}

// Subjects returns all teachable subjects.
func (s *CatalogService) Subjects(ctx context.Context) ([]models.Subject, error) {
	subjects, err := s.repo.ListSubjects(ctx)
	if err != nil {
		return nil, appErrors.FromStorage(err, "failed to list subjects")
	}
	return subjects, nil
}

// Locations returns all supported venues.
func (s *CatalogService) Locations(ctx context.Context) ([]models.Location, error) {
	locations, err := s.repo.ListLocations(ctx)
	if err != nil {
		return nil, appErrors.FromStorage(err, "failed to list locations")
	}
	return locations, nil
}
