package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andriyansah/school-api/internal/models"
	"github.com/andriyansah/school-api/internal/service"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
	"github.com/andriyansah/school-api/pkg/response"
)

// SchoolHandler exposes school endpoints.
type SchoolHandler struct {
	schools *service.SchoolService
}

// NewSchoolHandler constructs SchoolHandler.
func NewSchoolHandler(schools *service.SchoolService) *SchoolHandler {
	return &SchoolHandler{schools: schools}
}

// List godoc
// @Summary List schools
// @Tags Schools
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	var filter models.SchoolFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.Limit = limit
	}

	schools, total, err := h.schools.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Schools retrieved successfully", response.ListResult{
		Data:  schools,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// Get godoc
// @Summary Get school detail
// @Tags Schools
// @Produce json
// @Security BearerAuth
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [get]
func (h *SchoolHandler) Get(c *gin.Context) {
	school, err := h.schools.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "School retrieved successfully", school)
}

// Create godoc
// @Summary Create school
// @Tags Schools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateSchoolRequest true "School payload"
// @Success 201 {object} response.Envelope
// @Router /schools [post]
func (h *SchoolHandler) Create(c *gin.Context) {
	var req service.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	school, err := h.schools.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "School created successfully", school)
}

// Update godoc
// @Summary Update school
// @Tags Schools
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "School ID"
// @Param payload body service.UpdateSchoolRequest true "School payload"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [put]
func (h *SchoolHandler) Update(c *gin.Context) {
	var req service.UpdateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	school, err := h.schools.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "School updated successfully", school)
}

// Delete godoc
// @Summary Delete school
// @Tags Schools
// @Produce json
// @Security BearerAuth
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Router /schools/{id} [delete]
func (h *SchoolHandler) Delete(c *gin.Context) {
	if err := h.schools.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "School deleted successfully", nil)
}
