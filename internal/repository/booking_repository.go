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

// BookingRepository provides persistence for session bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = "id, tutor_id, student_id, subject, date, start_time, end_time, duration_minutes, cost, status, location, notes, created_at, updated_at"

// List returns bookings with optional filtering and pagination.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, filter.DateTo)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"date":       true,
		"start_time": true,
		"status":     true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "date"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", bookingColumns, base, sortBy, order, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

// FindByID loads a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1 LIMIT 1", bookingColumns)
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// ListForTutorDate returns a tutor's non-cancelled bookings on a date,
// ordered by start time. Used for availability views.
func (r *BookingRepository) ListForTutorDate(ctx context.Context, tutorID, date string) ([]models.Booking, error) {
	query := fmt.Sprintf("SELECT %s FROM bookings WHERE tutor_id = $1 AND date = $2 AND status <> 'cancelled' ORDER BY start_time ASC", bookingColumns)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, tutorID, date); err != nil {
		return nil, fmt.Errorf("list tutor date bookings: %w", err)
	}
	return bookings, nil
}

// Reserve atomically checks the tutor's calendar and inserts the booking.
// The transaction takes a per-tutor advisory lock before re-reading the
// day's bookings, so two concurrent requests for the same tutor serialize
// and the loser observes the winner's row. The detect callback receives the
// locked snapshot and returns the conflict error to abort with, if any.
func (r *BookingRepository) Reserve(ctx context.Context, booking *models.Booking, detect func(existing []models.Booking) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reserve booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, booking.TutorID); err != nil {
		return fmt.Errorf("lock tutor calendar: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM bookings WHERE tutor_id = $1 AND date = $2 AND status <> 'cancelled'", bookingColumns)
	var existing []models.Booking
	if err = tx.SelectContext(ctx, &existing, query, booking.TutorID, booking.Date); err != nil {
		return fmt.Errorf("load tutor date bookings: %w", err)
	}

	if err = detect(existing); err != nil {
		return err
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const insert = `INSERT INTO bookings (id, tutor_id, student_id, subject, date, start_time, end_time, duration_minutes, cost, status, location, notes, created_at, updated_at) VALUES (:id, :tutor_id, :student_id, :subject, :date, :start_time, :end_time, :duration_minutes, :cost, :status, :location, :notes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reserve booking: %w", err)
	}
	return nil
}

// Transition loads the booking under a row lock, applies the mutation and
// persists the resulting status. Concurrent transitions on the same booking
// serialize on the lock; the mutate callback sees the committed state of the
// winner and can reject the move.
func (r *BookingRepository) Transition(ctx context.Context, id string, mutate func(*models.Booking) error) (*models.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf("SELECT %s FROM bookings WHERE id = $1 FOR UPDATE", bookingColumns)
	var booking models.Booking
	if err = tx.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}

	if err = mutate(&booking); err != nil {
		return nil, err
	}

	booking.UpdatedAt = time.Now().UTC()
	const update = `UPDATE bookings SET status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, update, &booking); err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking transition: %w", err)
	}
	return &booking, nil
}
