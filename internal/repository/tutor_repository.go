package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorlink/tutorlink-api/internal/models"
)

// TutorRepository provides persistence for tutor profiles.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository creates a new tutor repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

const tutorColumns = "id, user_id, subjects, hourly_rate, location, bio, education, experience, rating, total_reviews, created_at, updated_at"

// List returns tutor profiles matching the directory filter.
func (r *TutorRepository) List(ctx context.Context, filter models.TutorFilter) ([]models.TutorProfile, int, error) {
	base := "FROM tutor_profiles WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(subjects)", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Location != "" {
		conditions = append(conditions, fmt.Sprintf("location = $%d", len(args)+1))
		args = append(args, filter.Location)
	}
	if filter.MaxRate > 0 {
		conditions = append(conditions, fmt.Sprintf("hourly_rate <= $%d", len(args)+1))
		args = append(args, filter.MaxRate)
	}
	if filter.MinRating > 0 {
		conditions = append(conditions, fmt.Sprintf("rating >= $%d", len(args)+1))
		args = append(args, filter.MinRating)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(bio ILIKE $%d OR education ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"hourly_rate": true,
		"rating":      true,
		"created_at":  true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "rating"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", tutorColumns, base, sortBy, order, size, offset)
	var tutors []models.TutorProfile
	if err := r.db.SelectContext(ctx, &tutors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tutors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tutors: %w", err)
	}

	return tutors, total, nil
}

// FindByID loads a tutor profile by id.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.TutorProfile, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_profiles WHERE id = $1 LIMIT 1", tutorColumns)
	var tutor models.TutorProfile
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// FindByUserID loads the profile owned by a tutor user.
func (r *TutorRepository) FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error) {
	query := fmt.Sprintf("SELECT %s FROM tutor_profiles WHERE user_id = $1 LIMIT 1", tutorColumns)
	var tutor models.TutorProfile
	if err := r.db.GetContext(ctx, &tutor, query, userID); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// Create stores a new tutor profile.
func (r *TutorRepository) Create(ctx context.Context, tutor *models.TutorProfile) error {
	if tutor.ID == "" {
		tutor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tutor.CreatedAt.IsZero() {
		tutor.CreatedAt = now
	}
	tutor.UpdatedAt = now

	const query = `INSERT INTO tutor_profiles (id, user_id, subjects, hourly_rate, location, bio, education, experience, rating, total_reviews, created_at, updated_at) VALUES (:id, :user_id, :subjects, :hourly_rate, :location, :bio, :education, :experience, :rating, :total_reviews, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tutor); err != nil {
		return fmt.Errorf("create tutor profile: %w", err)
	}
	return nil
}

// Update modifies a tutor profile's editable fields.
func (r *TutorRepository) Update(ctx context.Context, tutor *models.TutorProfile) error {
	tutor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE tutor_profiles SET subjects = :subjects, hourly_rate = :hourly_rate, location = :location, bio = :bio, education = :education, experience = :experience, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, tutor); err != nil {
		return fmt.Errorf("update tutor profile: %w", err)
	}
	return nil
}

// UpdateRatingSummary overwrites the denormalised rating read model. The
// values are always full recomputations, so a stale write self-heals on the
// next refresh.
func (r *TutorRepository) UpdateRatingSummary(ctx context.Context, id string, rating float64, totalReviews int) error {
	const query = `UPDATE tutor_profiles SET rating = $2, total_reviews = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, rating, totalReviews, time.Now().UTC()); err != nil {
		return fmt.Errorf("update tutor rating summary: %w", err)
	}
	return nil
}
