package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andriyansah/school-api/internal/models"
	"github.com/andriyansah/school-api/internal/service"
	appErrors "github.com/andriyansah/school-api/pkg/errors"
	"github.com/andriyansah/school-api/pkg/export"
	"github.com/andriyansah/school-api/pkg/response"
)

// ClassroomHandler exposes classroom endpoints.
type ClassroomHandler struct {
	classrooms *service.ClassroomService
	pdf        *export.PDFExporter
}

// NewClassroomHandler constructs ClassroomHandler.
func NewClassroomHandler(classrooms *service.ClassroomService, pdf *export.PDFExporter) *ClassroomHandler {
	return &ClassroomHandler{classrooms: classrooms, pdf: pdf}
}

// List godoc
// @Summary List classrooms
// @Tags Classrooms
// @Produce json
// @Security BearerAuth
// @Param school query string false "Filter by school"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *ClassroomHandler) List(c *gin.Context) {
	var filter models.ClassroomFilter
	filter.SchoolID = c.Query("school")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.Limit = limit
	}

	classrooms, total, err := h.classrooms.List(c.Request.Context(), filter, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Classrooms retrieved successfully", response.ListResult{
		Data:  classrooms,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// Get godoc
// @Summary Get classroom detail
// @Tags Classrooms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	classroom, err := h.classrooms.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Classroom retrieved successfully", classroom)
}

// Create godoc
// @Summary Create classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms [post]
func (h *ClassroomHandler) Create(c *gin.Context) {
	var req service.CreateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	classroom, err := h.classrooms.Create(c.Request.Context(), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Classroom created successfully", classroom)
}

// Update godoc
// @Summary Update classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Param payload body service.UpdateClassroomRequest true "Classroom payload"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [put]
func (h *ClassroomHandler) Update(c *gin.Context) {
	var req service.UpdateClassroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	classroom, err := h.classrooms.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Classroom updated successfully", classroom)
}

// Delete godoc
// @Summary Delete classroom
// @Tags Classrooms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [delete]
func (h *ClassroomHandler) Delete(c *gin.Context) {
	if err := h.classrooms.Delete(c.Request.Context(), c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Classroom deleted successfully", nil)
}

// Roster godoc
// @Summary Download a classroom roster as PDF
// @Tags Classrooms
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Success 200 {file} binary
// @Router /classrooms/{id}/roster [get]
func (h *ClassroomHandler) Roster(c *gin.Context) {
	dataset, err := h.classrooms.Roster(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	document, err := h.pdf.Render(*dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="roster.pdf"`)
	c.Data(http.StatusOK, "application/pdf", document)
}
