package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tutorlink/tutorlink-api/internal/models"
)

// AttendanceRepository reads attendance records. The booking core never
// writes them.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByStudent returns a student's attendance records, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Attendance, error) {
	const query = `SELECT id, student_id, booking_id, present, created_at FROM attendance WHERE student_id = $1 ORDER BY created_at DESC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list attendance by student: %w", err)
	}
	return records, nil
}

// ListByBooking returns attendance entries recorded for a booking.
func (r *AttendanceRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.Attendance, error) {
	const query = `SELECT id, student_id, booking_id, present, created_at FROM attendance WHERE booking_id = $1 ORDER BY created_at DESC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, bookingID); err != nil {
		return nil, fmt.Errorf("list attendance by booking: %w", err)
	}
	return records, nil
}
