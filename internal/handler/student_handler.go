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

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students *service.StudentService
	metrics  *service.MetricsService
	csv      *export.CSVExporter
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService, metrics *service.MetricsService, csv *export.CSVExporter) *StudentHandler {
	return &StudentHandler{students: students, metrics: metrics, csv: csv}
}

func studentFilterFromQuery(c *gin.Context) models.StudentFilter {
	var filter models.StudentFilter
	filter.SchoolID = c.Query("school")
	filter.ClassroomID = c.Query("classroom")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.Limit = limit
	}
	return filter
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param school query string false "Filter by school"
// @Param classroom query string false "Filter by classroom"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := studentFilterFromQuery(c)
	students, total, err := h.students.List(c.Request.Context(), filter, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Students retrieved successfully", response.ListResult{
		Data:  students,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// Get godoc
// @Summary Get student detail with transfer history
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Student retrieved successfully", student)
}

// Enroll godoc
// @Summary Enroll a new student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EnrollStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Enroll(c *gin.Context) {
	var req service.EnrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Enroll(c.Request.Context(), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Student enrolled successfully", student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Student updated successfully", student)
}

// Transfer godoc
// @Summary Transfer a student between schools or classrooms
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.TransferStudentRequest true "Transfer payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/transfer [post]
func (h *StudentHandler) Transfer(c *gin.Context) {
	var req service.TransferStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.students.Transfer(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordTransfer()
	response.OK(c, "Student transferred successfully", student)
}

// Delete godoc
// @Summary Delete student
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Delete(c.Request.Context(), c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Student deleted successfully", nil)
}

// Export godoc
// @Summary Export students as CSV
// @Tags Students
// @Produce text/csv
// @Security BearerAuth
// @Param school query string false "Filter by school"
// @Param classroom query string false "Filter by classroom"
// @Success 200 {file} binary
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	filter := studentFilterFromQuery(c)
	dataset, err := h.students.Export(c.Request.Context(), filter, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	document, err := h.csv.Render(*dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="students.csv"`)
	c.Data(http.StatusOK, "text/csv", document)
}
