package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutorlink-api/internal/models"
	"github.com/tutorlink/tutorlink-api/internal/service"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
	"github.com/tutorlink/tutorlink-api/pkg/response"
)

// ReportHandler streams tutor earnings reports.
type ReportHandler struct {
	exports *service.ExportService
	tutors  *service.TutorService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(exports *service.ExportService, tutors *service.TutorService) *ReportHandler {
	return &ReportHandler{exports: exports, tutors: tutors}
}

// TutorEarnings godoc
// @Summary Export a tutor's earnings report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Tutor ID"
// @Param format query string false "csv or pdf" default(csv)
// @Param dateFrom query string false "Start date YYYY-MM-DD"
// @Param dateTo query string false "End date YYYY-MM-DD"
// @Success 200 {file} file
// @Router /tutors/{id}/earnings/export [get]
func (h *ReportHandler) TutorEarnings(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	tutorID := c.Param("id")
	if err := h.authorize(c, claims, tutorID); err != nil {
		response.Error(c, err)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.TutorEarnings(c.Request.Context(), tutorID, format, c.Query("dateFrom"), c.Query("dateTo"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(200, result.ContentType, result.Payload)
}

// authorize restricts earnings exports to admins and the owning tutor.
func (h *ReportHandler) authorize(c *gin.Context, claims *models.JWTClaims, tutorID string) error {
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTutor:
		profile, err := h.tutors.GetByUser(c.Request.Context(), claims.UserID)
		if err != nil {
			return appErrors.Clone(appErrors.ErrForbidden, "no tutor profile for this account")
		}
		if profile.ID != tutorID {
			return appErrors.Clone(appErrors.ErrForbidden, "earnings belong to another tutor")
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}
