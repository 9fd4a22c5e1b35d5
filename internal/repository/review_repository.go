package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tutorlink/tutorlink-api/internal/models"
)

// ReviewRepository provides persistence for session reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = "id, student_id, tutor_id, booking_id, rating, comment, created_at, updated_at"

// FindByID loads a review by id.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews WHERE id = $1 LIMIT 1", reviewColumns)
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		return nil, err
	}
	return &review, nil
}

// FindByTriple loads the review identified by (student, tutor, booking).
func (r *ReviewRepository) FindByTriple(ctx context.Context, studentID, tutorID, bookingID string) (*models.Review, error) {
	query := fmt.Sprintf("SELECT %s FROM reviews WHERE student_id = $1 AND tutor_id = $2 AND booking_id = $3 LIMIT 1", reviewColumns)
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, studentID, tutorID, bookingID); err != nil {
		return nil, err
	}
	return &review, nil
}

// List returns reviews for a tutor or student with pagination.
func (r *ReviewRepository) List(ctx context.Context, filter models.ReviewFilter) ([]models.Review, int, error) {
	base := "FROM reviews WHERE 1=1"
	var args []interface{}

	if filter.TutorID != "" {
		args = append(args, filter.TutorID)
		base += fmt.Sprintf(" AND tutor_id = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		base += fmt.Sprintf(" AND student_id = $%d", len(args))
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", reviewColumns, base, size, offset)
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	return reviews, total, nil
}

// Create stores a new review. The reviews table carries a unique index on
// (student_id, tutor_id, booking_id); a violation surfaces as a pq unique
// constraint error for the service to map.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	const query = `INSERT INTO reviews (id, student_id, tutor_id, booking_id, rating, comment, created_at, updated_at) VALUES (:id, :student_id, :tutor_id, :booking_id, :rating, :comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// Update rewrites rating and comment of an existing review. The identity
// triple is immutable; concurrent edits are last-commit-wins.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reviews SET rating = :rating, comment = :comment, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

// RatingSummary recomputes count and mean rating for a tutor from scratch.
func (r *ReviewRepository) RatingSummary(ctx context.Context, tutorID string) (int, float64, error) {
	const query = `SELECT COUNT(*) AS total, COALESCE(AVG(rating), 0) AS average FROM reviews WHERE tutor_id = $1`
	var row struct {
		Total   int     `db:"total"`
		Average float64 `db:"average"`
	}
	if err := r.db.GetContext(ctx, &row, query, tutorID); err != nil {
		return 0, 0, fmt.Errorf("tutor rating summary: %w", err)
	}
	return row.Total, row.Average, nil
}
