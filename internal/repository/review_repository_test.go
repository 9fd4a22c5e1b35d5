package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-api/internal/models"
)

func newReviewMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestReviewRepositoryFindByTriple(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "tutor_id", "booking_id", "rating", "comment", "created_at", "updated_at"}).
		AddRow("r1", "s1", "t1", "b1", 5, "Great session", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+reviewColumns+" FROM reviews WHERE student_id = $1 AND tutor_id = $2 AND booking_id = $3 LIMIT 1")).
		WithArgs("s1", "t1", "b1").
		WillReturnRows(rows)

	review, err := repo.FindByTriple(context.Background(), "s1", "t1", "b1")
	require.NoError(t, err)
	assert.Equal(t, "r1", review.ID)
	assert.Equal(t, 5, review.Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryFindByTripleNoRows(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+reviewColumns+" FROM reviews WHERE student_id = $1 AND tutor_id = $2 AND booking_id = $3 LIMIT 1")).
		WithArgs("s1", "t1", "b1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByTriple(context.Background(), "s1", "t1", "b1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	review := &models.Review{StudentID: "s1", TutorID: "t1", BookingID: "b1", Rating: 4, Comment: "Helpful"}
	err := repo.Create(context.Background(), review)
	require.NoError(t, err)
	assert.NotEmpty(t, review.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("UPDATE reviews SET rating").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.Review{ID: "r1", Rating: 3, Comment: "Revised"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryRatingSummary(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS total, COALESCE(AVG(rating), 0) AS average FROM reviews WHERE tutor_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "average"}).AddRow(3, 4.3333))

	total, avg, err := repo.RatingSummary(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.InDelta(t, 4.3333, avg, 0.0001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
