package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tutorlink/tutorlink-api/internal/service"
	"github.com/tutorlink/tutorlink-api/pkg/response"
)

// CatalogHandler exposes reference data used by the booking flow.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Subjects godoc
// @Summary List available subjects
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/subjects [get]
func (h *CatalogHandler) Subjects(c *gin.Context) {
	subjects, err := h.catalog.Subjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// Locations godoc
// @Summary List known locations
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalog/locations [get]
func (h *CatalogHandler) Locations(c *gin.Context) {
	locations, err := h.catalog.Locations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, locations, nil)
}
