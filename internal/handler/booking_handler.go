package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/service"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
	"github.com/tutorlink/tutorlink-api/pkg/response"
)

// BookingHandler exposes booking endpoints.
type BookingHandler struct {
	bookings *service.BookingService
	metrics  *service.MetricsService
}

// NewBookingHandler constructs BookingHandler.
func NewBookingHandler(bookings *service.BookingService, metrics *service.MetricsService) *BookingHandler {
	return &BookingHandler{bookings: bookings, metrics: metrics}
}

// Create godoc
// @Summary Request a tutoring session
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Slot already taken"
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		h.recordOutcome(err)
		response.Error(c, err)
		return
	}
	h.recordOutcome(nil)
	response.Created(c, booking)
}

// UpdateStatus godoc
// @Summary Transition a booking's lifecycle status
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Param payload body models.UpdateBookingStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Transition not allowed"
// @Router /bookings/{id}/status [patch]
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	booking, err := h.bookings.UpdateStatus(c.Request.Context(), c.Param("id"), models.BookingStatus(req.Status), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// List godoc
// @Summary List bookings visible to the caller
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param tutorId query string false "Filter by tutor (admin only)"
// @Param studentId query string false "Filter by student (admin only)"
// @Param dateFrom query string false "Start date YYYY-MM-DD"
// @Param dateTo query string false "End date YYYY-MM-DD"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.BookingFilter
	filter.Status = models.BookingStatus(strings.TrimSpace(c.Query("status")))
	filter.TutorID = c.Query("tutorId")
	filter.StudentID = c.Query("studentId")
	filter.DateFrom = c.Query("dateFrom")
	filter.DateTo = c.Query("dateTo")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	bookings, total, err := h.bookings.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, paginationFor(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get booking detail
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	booking, err := h.bookings.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// TutorSchedule godoc
// @Summary List a tutor's blocked slots on a date
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tutor ID"
// @Param date query string true "Date YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/schedule [get]
func (h *BookingHandler) TutorSchedule(c *gin.Context) {
	bookings, err := h.bookings.TutorDaySchedule(c.Request.Context(), c.Param("id"), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

func (h *BookingHandler) recordOutcome(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case err == nil:
		h.metrics.RecordBookingOutcome("created")
	case appErrors.FromError(err).Code == appErrors.ErrConflict.Code:
		h.metrics.RecordBookingOutcome("conflict")
	default:
		h.metrics.RecordBookingOutcome("rejected")
	}
}
