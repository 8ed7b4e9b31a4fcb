package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	resultService  services.ResultService
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	resultService services.ResultService,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		resultService:  resultService,
	}
}

// SaveAnswer stores one answer of an in-progress attempt
// @Summary Save answer
// @Description Keeps the answer so it is restored on resume and graded if time runs out
// @Tags attempts
// @Accept json
// @Param id path uint true "Attempt ID"
// @Param question_id path uint true "Question ID"
// @Param answer body models.SaveAnswerRequest true "Answer"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/answers/{question_id} [put]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.SaveAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, questionID, req.Answer, caller); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitAttempt grades and closes an attempt
// @Summary Submit attempt
// @Description Submits every answer of the attempt in one call
// @Tags attempts
// @Accept json
// @Produce json
// @Param submission body models.SubmitAttemptRequest true "Answers"
// @Success 200 {object} models.Document
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.SubmitAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", req.AttemptID)

	result, err := h.attemptService.Submit(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SingleDocument(resultResource(result)))
}

// ListAttempts returns the caller's attempts, or every attempt of the caller's assessments for authors
// @Summary List attempts
// @Tags attempts
// @Produce json
// @Param filters[assessmentId] query int false "Assessment ID"
// @Param filters[status] query string false "in_progress, submitted or timed_out"
// @Success 200 {object} models.Document
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	params := parseListParams(c)

	attempts, total, err := h.attemptService.List(c.Request.Context(), params, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListDocument(attempts, total, params, attemptResource))
}

// GetResult
// @Summary Get attempt result
// @Tags results
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Document
// @Failure 403 {object} ErrorResponse
// @Router /attempts/{id}/result [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	result, err := h.resultService.Get(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SingleDocument(resultResource(result)))
}

// MarkAnswer sets the score and/or comment of one answer
// @Summary Mark answer
// @Tags results
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer_id path uint true "Answer ID"
// @Param mark body models.MarkAnswerRequest true "Marks and comment"
// @Success 200 {object} models.Document
// @Router /attempts/{id}/answers/{answer_id} [patch]
func (h *AttemptHandler) MarkAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	answerID := h.parseIDParam(c, "answer_id")
	if answerID == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.MarkAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	question, err := h.resultService.MarkAnswer(c.Request.Context(), attemptID, answerID, &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Answer marked", "attempt_id", attemptID, "answer_id", answerID)
	c.JSON(http.StatusOK, models.SingleDocument(models.NewResource("answers", question.AnswerID, question)))
}

// @Summary Publish result
// @Tags results
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Document
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/publish [post]
func (h *AttemptHandler) PublishResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	attempt, err := h.resultService.Publish(c.Request.Context(), id, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Result published", "attempt_id", id)
	c.JSON(http.StatusOK, models.SingleDocument(attemptResource(attempt)))
}
