package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-api/internal/models"
)

func newTutorMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTutorRepositoryListBySubject(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "subjects", "hourly_rate", "location", "bio", "education", "experience", "rating", "total_reviews", "created_at", "updated_at"}).
		AddRow("t1", "u1", "{Math,Physics}", 200000, "Jakarta", "Bio", "BSc", "5 years", 4.5, 12, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+tutorColumns+" FROM tutor_profiles WHERE 1=1 AND $1 = ANY(subjects) ORDER BY rating DESC LIMIT 20 OFFSET 0")).
		WithArgs("Math").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tutor_profiles WHERE 1=1 AND $1 = ANY(subjects)")).
		WithArgs("Math").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	tutors, total, err := repo.List(context.Background(), models.TutorFilter{Subject: "Math"})
	require.NoError(t, err)
	assert.Len(t, tutors, 1)
	assert.Equal(t, 1, total)
	assert.True(t, tutors[0].Teaches("Math"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec("INSERT INTO tutor_profiles").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tutor := &models.TutorProfile{UserID: "u1", Subjects: pq.StringArray{"Math"}, HourlyRate: 200000, Location: "Jakarta"}
	err := repo.Create(context.Background(), tutor)
	require.NoError(t, err)
	assert.NotEmpty(t, tutor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTutorRepositoryUpdateRatingSummary(t *testing.T) {
	db, mock, cleanup := newTutorMock(t)
	defer cleanup()
	repo := NewTutorRepository(db)

	mock.ExpectExec("UPDATE tutor_profiles SET rating").
		WithArgs("t1", 4.7, 15, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateRatingSummary(context.Background(), "t1", 4.7, 15)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
