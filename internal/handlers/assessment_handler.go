package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

type AssessmentHandler struct {
	BaseHandler
	assessmentService services.AssessmentService
	attemptService    services.AttemptService
	exportService     services.ExportService
}

func NewAssessmentHandler(
	assessmentService services.AssessmentService,
	attemptService services.AttemptService,
	exportService services.ExportService,
	logger utils.Logger,
) *AssessmentHandler {
	return &AssessmentHandler{
		BaseHandler:       NewBaseHandler(logger),
		assessmentService: assessmentService,
		attemptService:    attemptService,
		exportService:     exportService,
	}
}

// CreateAssessment creates a new assessment
// @Summary Create assessment
// @Tags assessments
// @Accept json
// @Produce json
// @Param assessment body models.AssessmentRequest true "Assessment data"
// @Success 201 {object} models.Document
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /assessments [post]
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.AssessmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	assessment, err := h.assessmentService.Create(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Assessment created", "assessment_id", assessment.ID)
	c.JSON(http.StatusCreated, models.SingleDocument(assessmentResource(assessment)))
}

// GetAssessment returns the assessment with its questions and groups.
// @Summary Get assessment
// @Tags assessments
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 200 {object} models.Document
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	assessment, err := h.assessmentService.Get(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SingleDocument(assessmentResource(assessment)))
}

// UpdateAssessment replaces the assessment definition
// @Summary Update assessment
// @Tags assessments
// @Accept json
// @Produce json
// @Param id path uint true "Assessment ID"
// @Param assessment body models.AssessmentRequest true "Assessment data"
// @Success 200 {object} models.Document
// @Router /assessments/{id} [put]
func (h *AssessmentHandler) UpdateAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.AssessmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	assessment, err := h.assessmentService.Update(c.Request.Context(), id, &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SingleDocument(assessmentResource(assessment)))
}

// @Summary Delete assessment
// @Tags assessments
// @Param id path uint true "Assessment ID"
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id} [delete]
func (h *AssessmentHandler) DeleteAssessment(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	if err := h.assessmentService.Delete(c.Request.Context(), id, caller); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Assessment deleted", "assessment_id", id)
	c.Status(http.StatusNoContent)
}

// ListAssessments returns a page of assessments visible to the caller
// @Summary List assessments
// @Tags assessments
// @Produce json
// @Param page query int false "Page (1-based)"
// @Param perPage query int false "Items per page"
// @Param searchColumn query string false "name"
// @Param searchKeyword query string false "Search term"
// @Success 200 {object} models.Document
// @Router /assessments [get]
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	params := parseListParams(c)

	assessments, total, err := h.assessmentService.List(c.Request.Context(), params, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListDocument(assessments, total, params, assessmentResource))
}

func (h *AssessmentHandler) GetAssessmentStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	stats, err := h.assessmentService.Stats(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SingleDocument(models.NewResource("assessment-stats", id, stats)))
}

// StartAttempt creates a new attempt or resumes the caller's open one
// @Summary Start attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Assessment ID"
// @Success 201 {object} models.Document
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/attempts [post]
func (h *AssessmentHandler) StartAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	session, err := h.attemptService.Start(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Attempt started", "assessment_id", id, "attempt_id", session.Attempt.ID)
	c.JSON(http.StatusCreated, models.SingleDocument(sessionResource(session)))
}

// ExportResults streams every attempt of the assessment as an xlsx workbook
// @Summary Export results
// @Tags attempts
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Assessment ID"
// @Router /assessments/{id}/results/export [get]
func (h *AssessmentHandler) ExportResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	data, name, err := h.exportService.ExportResults(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
