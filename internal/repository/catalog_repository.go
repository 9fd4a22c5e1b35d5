package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tutorlink/tutorlink-api/internal/models"
)

// CatalogRepository reads the subject and location reference data.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListSubjects returns all teachable subjects.
func (r *CatalogRepository) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	const query = `SELECT id, name FROM subjects ORDER BY name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListLocations returns all supported session venues.
func (r *CatalogRepository) ListLocations(ctx context.Context) ([]models.Location, error) {
	const query = `SELECT id, name FROM locations ORDER BY name ASC`
	var locations []models.Location
	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	return locations, nil
}
