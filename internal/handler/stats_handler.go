package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/service"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
	"github.com/tutorlink/tutorlink-api/pkg/response"
)

// StatsHandler exposes aggregated statistics endpoints.
type StatsHandler struct {
	stats  *service.StatsService
	tutors *service.TutorService
}

// NewStatsHandler constructs StatsHandler.
func NewStatsHandler(stats *service.StatsService, tutors *service.TutorService) *StatsHandler {
	return &StatsHandler{stats: stats, tutors: tutors}
}

// Tutor godoc
// @Summary Get aggregated statistics for a tutor
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/stats [get]
func (h *StatsHandler) Tutor(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.authorizeTutorStats(c, claims); err != nil {
		response.Error(c, err)
		return
	}

	stats, cached, err := h.stats.Tutor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, map[string]interface{}{"cached": cached})
}

// Student godoc
// @Summary Get aggregated statistics for a student
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student user ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/stats [get]
func (h *StatsHandler) Student(c *gin.Context) {
	stats, cached, err := h.stats.Student(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, map[string]interface{}{"cached": cached})
}

// Admin godoc
// @Summary Get platform-wide statistics
// @Tags Stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *StatsHandler) Admin(c *gin.Context) {
	stats, cached, err := h.stats.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, map[string]interface{}{"cached": cached})
}

// authorizeTutorStats restricts tutor stats to admins and the owning tutor.
// The path id is a tutor profile id, so SELF matching on the user id does not
// apply here.
func (h *StatsHandler) authorizeTutorStats(c *gin.Context, claims *models.JWTClaims) error {
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTutor:
		profile, err := h.tutors.GetByUser(c.Request.Context(), claims.UserID)
		if err != nil {
			return appErrors.Clone(appErrors.ErrForbidden, "no tutor profile for this account")
		}
		if profile.ID != c.Param("id") {
			return appErrors.Clone(appErrors.ErrForbidden, "stats belong to another tutor")
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}
