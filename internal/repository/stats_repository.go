package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tutorlink/tutorlink-api/internal/models"
)

// StatsRepository exposes read-optimised aggregate queries for dashboards.
// All figures are recomputed from the source tables on every call; nothing
// here is incrementally maintained.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository instantiates the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// TutorStats aggregates a tutor's bookings and review summary. Bookings whose
// student no longer exists are excluded from the counts and reported
// separately via OrphanBookings so callers can flag the inconsistency.
func (r *StatsRepository) TutorStats(ctx context.Context, tutorID string) (*models.TutorStats, error) {
	const query = `SELECT
        COUNT(*) AS total_sessions,
        COUNT(*) FILTER (WHERE b.status = 'completed') AS completed_sessions,
        COUNT(*) FILTER (WHERE b.status = 'pending') AS pending_sessions,
        COUNT(DISTINCT b.student_id) AS distinct_students,
        COALESCE(SUM(b.cost) FILTER (WHERE b.status = 'completed'), 0) AS earnings
        FROM bookings b
        JOIN users u ON u.id = b.student_id
        WHERE b.tutor_id = $1`

	var stats models.TutorStats
	if err := r.db.GetContext(ctx, &stats, query, tutorID); err != nil {
		return nil, fmt.Errorf("query tutor stats: %w", err)
	}
	stats.TutorID = tutorID

	const orphans = `SELECT COUNT(*) FROM bookings b LEFT JOIN users u ON u.id = b.student_id WHERE b.tutor_id = $1 AND u.id IS NULL`
	if err := r.db.GetContext(ctx, &stats.OrphanBookings, orphans, tutorID); err != nil {
		return nil, fmt.Errorf("query tutor orphan bookings: %w", err)
	}

	const reviews = `SELECT COUNT(*) AS total_reviews, COALESCE(AVG(rating), 0) AS rating FROM reviews WHERE tutor_id = $1`
	var summary struct {
		TotalReviews int     `db:"total_reviews"`
		Rating       float64 `db:"rating"`
	}
	if err := r.db.GetContext(ctx, &summary, reviews, tutorID); err != nil {
		return nil, fmt.Errorf("query tutor review summary: %w", err)
	}
	stats.TotalReviews = summary.TotalReviews
	stats.Rating = summary.Rating

	return &stats, nil
}

// StudentStats aggregates a student's bookings and reviews. The today
// parameter is an ISO date; upcoming sessions are confirmed bookings dated
// today or later.
func (r *StatsRepository) StudentStats(ctx context.Context, studentID, today string) (*models.StudentStats, error) {
	const query = `SELECT
        COUNT(*) AS total_sessions,
        COUNT(*) FILTER (WHERE status = 'completed') AS completed_sessions,
        COUNT(*) FILTER (WHERE status = 'confirmed' AND date >= $2) AS upcoming_sessions
        FROM bookings WHERE student_id = $1`

	var stats models.StudentStats
	if err := r.db.GetContext(ctx, &stats, query, studentID, today); err != nil {
		return nil, fmt.Errorf("query student stats: %w", err)
	}
	stats.StudentID = studentID

	const reviews = `SELECT COUNT(*) FROM reviews WHERE student_id = $1`
	if err := r.db.GetContext(ctx, &stats.TotalReviews, reviews, studentID); err != nil {
		return nil, fmt.Errorf("query student review count: %w", err)
	}

	return &stats, nil
}

// AdminStats aggregates platform-wide totals.
func (r *StatsRepository) AdminStats(ctx context.Context) (*models.AdminStats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM users WHERE active = TRUE) AS total_users,
        (SELECT COUNT(*) FROM users WHERE active = TRUE AND role = 'TUTOR') AS total_tutors,
        (SELECT COUNT(*) FROM users WHERE active = TRUE AND role = 'STUDENT') AS total_students,
        (SELECT COUNT(*) FROM bookings) AS total_bookings`

	var stats models.AdminStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("query admin stats: %w", err)
	}
	return &stats, nil
}

// TutorEarningsRows returns a tutor's completed sessions for export, oldest
// first.
func (r *StatsRepository) TutorEarningsRows(ctx context.Context, tutorID, dateFrom, dateTo string) ([]models.Booking, error) {
	base := "SELECT " + bookingColumns + " FROM bookings WHERE tutor_id = $1 AND status = 'completed'"
	args := []interface{}{tutorID}
	if dateFrom != "" {
		args = append(args, dateFrom)
		base += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if dateTo != "" {
		args = append(args, dateTo)
		base += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	base += " ORDER BY date ASC, start_time ASC"

	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, base, args...); err != nil {
		return nil, fmt.Errorf("query tutor earnings rows: %w", err)
	}
	return bookings, nil
}
