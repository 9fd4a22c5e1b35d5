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

// TutorHandler exposes the tutor directory and profile endpoints.
type TutorHandler struct {
	tutors *service.TutorService
}

// NewTutorHandler constructs TutorHandler.
func NewTutorHandler(tutors *service.TutorService) *TutorHandler {
	return &TutorHandler{tutors: tutors}
}

// List godoc
// @Summary Browse the tutor directory
// @Tags Tutors
// @Produce json
// @Param subject query string false "Filter by taught subject"
// @Param location query string false "Filter by location"
// @Param maxRate query number false "Maximum hourly rate"
// @Param minRating query number false "Minimum average rating"
// @Param search query string false "Search by name or bio"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tutors [get]
func (h *TutorHandler) List(c *gin.Context) {
	var filter models.TutorFilter
	filter.Subject = strings.TrimSpace(c.Query("subject"))
	filter.Location = strings.TrimSpace(c.Query("location"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	if rate, err := strconv.ParseFloat(c.Query("maxRate"), 64); err == nil {
		filter.MaxRate = rate
	}
	if rating, err := strconv.ParseFloat(c.Query("minRating"), 64); err == nil {
		filter.MinRating = rating
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	tutors, total, err := h.tutors.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutors, paginationFor(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get tutor profile detail
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id} [get]
func (h *TutorHandler) Get(c *gin.Context) {
	tutor, err := h.tutors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// Mine godoc
// @Summary Get the caller's own tutor profile
// @Tags Tutors
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /tutors/me [get]
func (h *TutorHandler) Mine(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	tutor, err := h.tutors.GetByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// Upsert godoc
// @Summary Create or update the caller's tutor profile
// @Tags Tutors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.UpsertTutorProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Router /tutors/me [put]
func (h *TutorHandler) Upsert(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpsertTutorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	tutor, err := h.tutors.Upsert(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}
