package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"

	"github.com/tutorlink/tutorlink-api/internal/models"
)

func newBookingMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tutor_id", "student_id", "subject", "date", "start_time", "end_time", "duration_minutes", "cost", "status", "location", "notes", "created_at", "updated_at"})
}

func TestBookingRepositoryList(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	rows := bookingRows().
		AddRow("b1", "t1", "s1", "Math", "2026-09-01", "14:00", "16:00", 120, 400000, "confirmed", "Online", "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+bookingColumns+" FROM bookings WHERE 1=1 AND tutor_id = $1 ORDER BY date DESC, start_time ASC LIMIT 20 OFFSET 0")).
		WithArgs("t1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE 1=1 AND tutor_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bookings, total, err := repo.List(context.Background(), models.BookingFilter{TutorID: "t1"})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryReserveInserts(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+bookingColumns+" FROM bookings WHERE tutor_id = $1 AND date = $2 AND status <> 'cancelled'")).
		WithArgs("t1", "2026-09-01").
		WillReturnRows(bookingRows())
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking := &models.Booking{
		TutorID:         "t1",
		StudentID:       "s1",
		Subject:         "Math",
		Date:            "2026-09-01",
		StartTime:       "14:00",
		EndTime:         "16:00",
		DurationMinutes: 120,
		Cost:            400000,
		Status:          models.BookingPending,
	}
	detectCalled := false
	err := repo.Reserve(context.Background(), booking, func(existing []models.Booking) error {
		detectCalled = true
		assert.Empty(t, existing)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, detectCalled)
	assert.NotEmpty(t, booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryReserveConflictRollsBack(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+bookingColumns+" FROM bookings WHERE tutor_id = $1 AND date = $2 AND status <> 'cancelled'")).
		WithArgs("t1", "2026-09-01").
		WillReturnRows(bookingRows().
			AddRow("b0", "t1", "s9", "Math", "2026-09-01", "14:00", "15:00", 60, 200000, "confirmed", "Online", "", time.Now(), time.Now()))
	mock.ExpectRollback()

	booking := &models.Booking{TutorID: "t1", Date: "2026-09-01", StartTime: "14:30", EndTime: "15:30"}
	err := repo.Reserve(context.Background(), booking, func(existing []models.Booking) error {
		require.Len(t, existing, 1)
		return appErrors.ErrConflict
	})
	require.ErrorIs(t, err, appErrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryTransitionUpdatesStatus(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+bookingColumns+" FROM bookings WHERE id = $1 FOR UPDATE")).
		WithArgs("b1").
		WillReturnRows(bookingRows().
			AddRow("b1", "t1", "s1", "Math", "2026-09-01", "14:00", "16:00", 120, 400000, "pending", "Online", "", time.Now(), time.Now()))
	mock.ExpectExec("UPDATE bookings SET status").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updated, err := repo.Transition(context.Background(), "b1", func(b *models.Booking) error {
		require.Equal(t, models.BookingPending, b.Status)
		b.Status = models.BookingConfirmed
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, updated.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryTransitionRejectionRollsBack(t *testing.T) {
	db, mock, cleanup := newBookingMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+bookingColumns+" FROM bookings WHERE id = $1 FOR UPDATE")).
		WithArgs("b1").
		WillReturnRows(bookingRows().
			AddRow("b1", "t1", "s1", "Math", "2026-09-01", "14:00", "16:00", 120, 400000, "completed", "Online", "", time.Now(), time.Now()))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), "b1", func(b *models.Booking) error {
		if !b.Status.CanTransitionTo(models.BookingCancelled) {
			return appErrors.ErrInvalidTransition
		}
		return nil
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}
