package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-api/internal/middleware"
	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/service"
)

type fakeBookingRepo struct {
	bookings map[string]*models.Booking
	nextID   int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*models.Booking)}
}

func (f *fakeBookingRepo) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	if b, ok := f.bookings[id]; ok {
		dup := *b
		return &dup, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBookingRepo) ListForTutorDate(ctx context.Context, tutorID, date string) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if b.TutorID == tutorID && b.Date == date && b.Status != models.BookingCancelled {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) Reserve(ctx context.Context, booking *models.Booking, detect func(existing []models.Booking) error) error {
	existing, _ := f.ListForTutorDate(ctx, booking.TutorID, booking.Date)
	if err := detect(existing); err != nil {
		return err
	}
	f.nextID++
	booking.ID = fmt.Sprintf("b%d", f.nextID)
	dup := *booking
	f.bookings[booking.ID] = &dup
	return nil
}

func (f *fakeBookingRepo) Transition(ctx context.Context, id string, mutate func(*models.Booking) error) (*models.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if err := mutate(b); err != nil {
		return nil, err
	}
	dup := *b
	return &dup, nil
}

type fakeTutorDir struct {
	tutors map[string]*models.TutorProfile
}

func (f *fakeTutorDir) FindByID(ctx context.Context, id string) (*models.TutorProfile, error) {
	if t, ok := f.tutors[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTutorDir) FindByUserID(ctx context.Context, userID string) (*models.TutorProfile, error) {
	for _, t := range f.tutors {
		if t.UserID == userID {
			return t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func bookingTestHandler(repo *fakeBookingRepo) *BookingHandler {
	tutors := &fakeTutorDir{tutors: map[string]*models.TutorProfile{
		"t1": {ID: "t1", UserID: "u-tutor", Subjects: pq.StringArray{"Math"}, HourlyRate: 200000},
	}}
	svc := service.NewBookingService(repo, tutors, nil, nil, nil, service.BookingSettings{})
	return NewBookingHandler(svc, nil)
}

func bookingPayload(t *testing.T, start, end string) *bytes.Reader {
	t.Helper()
	date := time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
	body, err := json.Marshal(models.CreateBookingRequest{
		TutorID:   "t1",
		Subject:   "Math",
		Date:      date,
		StartTime: start,
		EndTime:   end,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

type bookingEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestBookingHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := bookingTestHandler(newFakeBookingRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/bookings", bookingPayload(t, "10:00", "12:00"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var envelope bookingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "pending", envelope.Data["status"])
	assert.InDelta(t, 400000, envelope.Data["cost"], 0.01)
}

func TestBookingHandlerCreateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeBookingRepo()
	handler := bookingTestHandler(repo)

	first := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(first)
	c.Request = httptest.NewRequest(http.MethodPost, "/bookings", bookingPayload(t, "10:00", "12:00"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)
	require.Equal(t, http.StatusCreated, first.Code)

	rec := httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/bookings", bookingPayload(t, "11:00", "13:00"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s2", Role: models.RoleStudent})
	handler.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope bookingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "CONFLICT", envelope.Error.Code)
}

func TestBookingHandlerCreateUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := bookingTestHandler(newFakeBookingRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/bookings", bookingPayload(t, "10:00", "12:00"))

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingHandlerUpdateStatusInvalidTransition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeBookingRepo()
	handler := bookingTestHandler(repo)

	created := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(created)
	c.Request = httptest.NewRequest(http.MethodPost, "/bookings", bookingPayload(t, "10:00", "12:00"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	handler.Create(c)
	require.Equal(t, http.StatusCreated, created.Code)

	body, _ := json.Marshal(models.UpdateBookingStatusRequest{Status: models.BookingCompleted})
	rec := httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/bookings/b1/status", bytes.NewReader(body))
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope bookingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_TRANSITION", envelope.Error.Code)
}

func TestBookingHandlerTutorScheduleBadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := bookingTestHandler(newFakeBookingRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/tutors/t1/schedule?date=14-03-2025", nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	handler.TutorSchedule(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
