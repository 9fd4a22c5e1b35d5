package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
)

type mockBookingRepo struct {
	bookings map[string]models.Booking
	reserved *models.Booking
}

func (m *mockBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	var list []models.Booking
	for _, b := range m.bookings {
		if filter.TutorID != "" && b.TutorID != filter.TutorID {
			continue
		}
		if filter.StudentID != "" && b.StudentID != filter.StudentID {
			continue
		}
		list = append(list, b)
	}
	return list, len(list), nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) ListForTutorDate(ctx context.Context, tutorID, date string) ([]models.Booking, error) {
	var list []models.Booking
	for _, b := range m.bookings {
		if b.TutorID == tutorID && b.Date == date && b.Status != models.BookingCancelled {
			list = append(list, b)
		}
	}
	return list, nil
}

func (m *mockBookingRepo) Reserve(ctx context.Context, booking *models.Booking, detect func(existing []models.Booking) error) error {
	var existing []models.Booking
	for _, b := range m.bookings {
		if b.TutorID == booking.TutorID && b.Date == booking.Date && b.Status != models.BookingCancelled {
			existing = append(existing, b)
		}
	}
	if err := detect(existing); err != nil {
		return err
	}
	if booking.ID == "" {
		booking.ID = "new-booking"
	}
	if m.bookings == nil {
		m.bookings = make(map[string]models.Booking)
	}
	m.bookings[booking.ID] = *booking
	m.reserved = booking
	return nil
}

func (m *mockBookingRepo) Transition(ctx context.Context, id string, mutate func(*models.Booking) error) (*models.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if err := mutate(&b); err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Now().UTC()
	m.bookings[id] = b
	return &b, nil
}

type downBookingRepo struct {
	err error
}

func (d *downBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	return nil, 0, d.err
}

func (d *downBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	return nil, d.err
}

func (d *downBookingRepo) ListForTutorDate(ctx context.Context, tutorID, date string) ([]models.Booking, error) {
	return nil, d.err
}

func (d *downBookingRepo) Reserve(ctx context.Context, booking *models.Booking, detect func(existing []models.Booking) error) error {
	return d.err
}

func (d *downBookingRepo) Transition(ctx context.Context, id string, mutate func(*models.Booking) error) (*models.Booking, error) {
	return nil, d.err
}

type mockBookingTutorRepo struct {
	tutors map[string]*models.TutorProfile
}

func (m *mockBookingTutorRepo) FindByID(ctx context.Context, id string) (*models.TutorProfile, error) {
	if t, ok := m.tutors[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingTutorRepo) FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error) {
	for _, t := range m.tutors {
		if t.UserID == userID {
			return t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func newBookingService(repo *mockBookingRepo, tutors *mockBookingTutorRepo) *BookingService {
	return NewBookingService(repo, tutors, nil, nil, nil, BookingSettings{MinDurationMinutes: 30, MaxDurationMinutes: 480})
}

func mathTutor() *mockBookingTutorRepo {
	return &mockBookingTutorRepo{tutors: map[string]*models.TutorProfile{
		"t1": {ID: "t1", UserID: "u-tutor", Subjects: pq.StringArray{"Math"}, HourlyRate: 200000},
	}}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected typed error, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestBookingServiceCreateReservesAndPrices(t *testing.T) {
	repo := &mockBookingRepo{}
	svc := newBookingService(repo, mathTutor())

	booking, err := svc.Create(context.Background(), "s1", models.CreateBookingRequest{
		TutorID:   "t1",
		Subject:   "Math",
		Date:      futureDate(7),
		StartTime: "14:00",
		EndTime:   "16:00",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, booking.Status)
	assert.Equal(t, 120, booking.DurationMinutes)
	assert.InDelta(t, 400000, booking.Cost, 0.001)
	require.NotNil(t, repo.reserved)
}

func TestBookingServiceCreateRejectsOverlap(t *testing.T) {
	date := futureDate(7)
	repo := &mockBookingRepo{bookings: map[string]models.Booking{
		"b0": {ID: "b0", TutorID: "t1", StudentID: "s9", Date: date, StartTime: "14:00", EndTime: "15:00", Status: models.BookingConfirmed},
	}}
	svc := newBookingService(repo, mathTutor())

	_, err := svc.Create(context.Background(), "s1", models.CreateBookingRequest{
		TutorID:   "t1",
		Subject:   "Math",
		Date:      date,
		StartTime: "14:30",
		EndTime:   "15:30",
	})
	require.Error(t, err)
	assertCode(t, err, appErrors.ErrConflict.Code)

	var conflict *models.BookingConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "b0", conflict.Conflict.BookingID)
}

func TestBookingServiceCreateAllowsBackToBack(t *testing.T) {
	date := futureDate(7)
	repo := &mockBookingRepo{bookings: map[string]models.Booking{
		"b0": {ID: "b0", TutorID: "t1", StudentID: "s9", Date: date, StartTime: "14:00", EndTime: "15:00", Status: models.BookingConfirmed},
	}}
	svc := newBookingService(repo, mathTutor())

	booking, err := svc.Create(context.Background(), "s1", models.CreateBookingRequest{
		TutorID:   "t1",
		Subject:   "Math",
		Date:      date,
		StartTime: "15:00",
		EndTime:   "16:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "15:00", booking.StartTime)
}

func TestBookingServiceCreateIgnoresCancelledSlot(t *testing.T) {
	date := futureDate(7)
	repo := &mockBookingRepo{bookings: map[string]models.Booking{
		"b0": {ID: "b0", TutorID: "t1", StudentID: "s9", Date: date, StartTime: "14:00", EndTime: "15:00", Status: models.BookingCancelled},
	}}
	svc := newBookingService(repo, mathTutor())

	_, err := svc.Create(context.Background(), "s1", models.CreateBookingRequest{
		TutorID:   "t1",
		Subject:   "Math",
		Date:      date,
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	require.NoError(t, err)
}

func TestBookingServiceCreateValidation(t *testing.T) {
	cases := []struct {
		name string
		req  models.CreateBookingRequest
	}{
		{"past date", models.CreateBookingRequest{TutorID: "t1", Subject: "Math", Date: "2020-01-01", StartTime: "14:00", EndTime: "15:00"}},
		{"malformed date", models.CreateBookingRequest{TutorID: "t1", Subject: "Math", Date: "01-01-2030", StartTime: "14:00", EndTime: "15:00"}},
		{"malformed time", models.CreateBookingRequest{TutorID: "t1", Subject: "Math", Date: futureDate(7), StartTime: "9:30", EndTime: "10:30"}},
		{"start after end", models.CreateBookingRequest{TutorID: "t1", Subject: "Math", Date: futureDate(7), StartTime: "16:00", EndTime: "14:00"}},
		{"zero duration", models.CreateBookingRequest{TutorID: "t1", Subject: "Math", Date: futureDate(7), StartTime: "14:00", EndTime: "14:00"}},
		{"too short", models.CreateBookingRequest{TutorID: "t1", Subject: "Math", Date: futureDate(7), StartTime: "14:00", EndTime: "14:15"}},
		{"too long", models.CreateBookingRequest{TutorID: "t1", Subject: "Math", Date: futureDate(7), StartTime: "08:00", EndTime: "20:30"}},
		{"subject not taught", models.CreateBookingRequest{TutorID: "t1", Subject: "Chemistry", Date: futureDate(7), StartTime: "14:00", EndTime: "15:00"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newBookingService(&mockBookingRepo{}, mathTutor())
			_, err := svc.Create(context.Background(), "s1", tc.req)
			require.Error(t, err)
			assertCode(t, err, appErrors.ErrValidation.Code)
		})
	}
}

func TestBookingServiceDefaultsAllowShortSessions(t *testing.T) {
	repo := &mockBookingRepo{}
	svc := NewBookingService(repo, mathTutor(), nil, nil, nil, BookingSettings{})

	booking, err := svc.Create(context.Background(), "s1", models.CreateBookingRequest{
		TutorID:   "t1",
		Subject:   "Math",
		Date:      futureDate(7),
		StartTime: "14:00",
		EndTime:   "14:15",
	})
	require.NoError(t, err)
	assert.Equal(t, 15, booking.DurationMinutes)
	assert.InDelta(t, 50000, booking.Cost, 0.001)
}

func TestBookingServiceStorageOutageIsUnavailable(t *testing.T) {
	svc := NewBookingService(&downBookingRepo{err: context.DeadlineExceeded}, mathTutor(), nil, nil, nil, BookingSettings{})

	_, err := svc.Create(context.Background(), "s1", models.CreateBookingRequest{
		TutorID:   "t1",
		Subject:   "Math",
		Date:      futureDate(7),
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrUnavailable.Status, appErr.Status)
}

func TestBookingServiceCreateUnknownTutor(t *testing.T) {
	svc := newBookingService(&mockBookingRepo{}, mathTutor())
	_, err := svc.Create(context.Background(), "s1", models.CreateBookingRequest{
		TutorID:   "missing",
		Subject:   "Math",
		Date:      futureDate(7),
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	require.Error(t, err)
	assertCode(t, err, appErrors.ErrNotFound.Code)
}

func TestBookingServiceUpdateStatusLifecycle(t *testing.T) {
	admin := &models.JWTClaims{UserID: "u-admin", Role: models.RoleAdmin}

	t.Run("pending to confirmed", func(t *testing.T) {
		repo := &mockBookingRepo{bookings: map[string]models.Booking{
			"b1": {ID: "b1", TutorID: "t1", StudentID: "s1", Status: models.BookingPending},
		}}
		svc := newBookingService(repo, mathTutor())
		updated, err := svc.UpdateStatus(context.Background(), "b1", models.BookingConfirmed, admin)
		require.NoError(t, err)
		assert.Equal(t, models.BookingConfirmed, updated.Status)
	})

	t.Run("pending to completed rejected", func(t *testing.T) {
		repo := &mockBookingRepo{bookings: map[string]models.Booking{
			"b1": {ID: "b1", TutorID: "t1", StudentID: "s1", Status: models.BookingPending},
		}}
		svc := newBookingService(repo, mathTutor())
		_, err := svc.UpdateStatus(context.Background(), "b1", models.BookingCompleted, admin)
		require.Error(t, err)
		assertCode(t, err, appErrors.ErrInvalidTransition.Code)
	})

	t.Run("terminal states frozen", func(t *testing.T) {
		for _, status := range []models.BookingStatus{models.BookingCompleted, models.BookingCancelled} {
			repo := &mockBookingRepo{bookings: map[string]models.Booking{
				"b1": {ID: "b1", TutorID: "t1", StudentID: "s1", Status: status},
			}}
			svc := newBookingService(repo, mathTutor())
			_, err := svc.UpdateStatus(context.Background(), "b1", models.BookingConfirmed, admin)
			require.Error(t, err)
			assertCode(t, err, appErrors.ErrInvalidTransition.Code)
		}
	})

	t.Run("unknown booking", func(t *testing.T) {
		svc := newBookingService(&mockBookingRepo{}, mathTutor())
		_, err := svc.UpdateStatus(context.Background(), "missing", models.BookingConfirmed, admin)
		require.Error(t, err)
		assertCode(t, err, appErrors.ErrNotFound.Code)
	})
}

func TestBookingServiceUpdateStatusAuthorization(t *testing.T) {
	newRepo := func() *mockBookingRepo {
		return &mockBookingRepo{bookings: map[string]models.Booking{
			"b1": {ID: "b1", TutorID: "t1", StudentID: "s1", Status: models.BookingPending},
		}}
	}

	t.Run("student cancels own booking", func(t *testing.T) {
		svc := newBookingService(newRepo(), mathTutor())
		updated, err := svc.UpdateStatus(context.Background(), "b1", models.BookingCancelled, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
		require.NoError(t, err)
		assert.Equal(t, models.BookingCancelled, updated.Status)
	})

	t.Run("student cannot confirm", func(t *testing.T) {
		svc := newBookingService(newRepo(), mathTutor())
		_, err := svc.UpdateStatus(context.Background(), "b1", models.BookingConfirmed, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
		require.Error(t, err)
		assertCode(t, err, appErrors.ErrInvalidTransition.Code)
	})

	t.Run("wrong actor reported as invalid transition", func(t *testing.T) {
		svc := newBookingService(newRepo(), mathTutor())
		_, err := svc.UpdateStatus(context.Background(), "b1", models.BookingConfirmed, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
		require.Error(t, err)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
		assert.Equal(t, appErrors.ErrInvalidTransition.Status, appErr.Status)
	})

	t.Run("other student rejected", func(t *testing.T) {
		svc := newBookingService(newRepo(), mathTutor())
		_, err := svc.UpdateStatus(context.Background(), "b1", models.BookingCancelled, &models.JWTClaims{UserID: "s2", Role: models.RoleStudent})
		require.Error(t, err)
		assertCode(t, err, appErrors.ErrInvalidTransition.Code)
	})

	t.Run("owning tutor confirms", func(t *testing.T) {
		svc := newBookingService(newRepo(), mathTutor())
		updated, err := svc.UpdateStatus(context.Background(), "b1", models.BookingConfirmed, &models.JWTClaims{UserID: "u-tutor", Role: models.RoleTutor})
		require.NoError(t, err)
		assert.Equal(t, models.BookingConfirmed, updated.Status)
	})

	t.Run("tutor without profile rejected", func(t *testing.T) {
		svc := newBookingService(newRepo(), mathTutor())
		_, err := svc.UpdateStatus(context.Background(), "b1", models.BookingConfirmed, &models.JWTClaims{UserID: "u-other", Role: models.RoleTutor})
		require.Error(t, err)
		assertCode(t, err, appErrors.ErrInvalidTransition.Code)
	})
}

func TestBookingServiceCancelledSlotReusable(t *testing.T) {
	date := futureDate(7)
	repo := &mockBookingRepo{bookings: map[string]models.Booking{
		"b1": {ID: "b1", TutorID: "t1", StudentID: "s1", Date: date, StartTime: "14:00", EndTime: "15:00", Status: models.BookingConfirmed},
	}}
	svc := newBookingService(repo, mathTutor())

	_, err := svc.UpdateStatus(context.Background(), "b1", models.BookingCancelled, &models.JWTClaims{UserID: "u-admin", Role: models.RoleAdmin})
	require.NoError(t, err)

	booking, err := svc.Create(context.Background(), "s2", models.CreateBookingRequest{
		TutorID:   "t1",
		Subject:   "Math",
		Date:      date,
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, booking.Status)
}

func TestBookingServiceListScopesToActor(t *testing.T) {
	repo := &mockBookingRepo{bookings: map[string]models.Booking{
		"b1": {ID: "b1", TutorID: "t1", StudentID: "s1", Status: models.BookingPending},
		"b2": {ID: "b2", TutorID: "t2", StudentID: "s2", Status: models.BookingPending},
	}}
	svc := newBookingService(repo, mathTutor())

	own, total, err := svc.List(context.Background(), models.BookingFilter{StudentID: "s2"}, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, own, 1)
	assert.Equal(t, "s1", own[0].StudentID)
}
