package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.FromContext(c, h.logger).Debug(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	utils.FromContext(c, h.logger).Error(msg, append(args, "error", err, "path", c.Request.URL.Path)...)
}

// caller reads the identity the auth middleware stored. It writes a 401 and
// returns false when there is none.
func (h *BaseHandler) caller(c *gin.Context) (services.Caller, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return services.Caller{}, false
	}
	role, _ := c.Get("user_role")
	r, _ := role.(models.UserRole)
	return services.Caller{UserID: userID, Role: r}, true
}

// parseIDParam returns 0 after writing a 400 when the path parameter is not a positive id.
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: c.Param(param),
		})
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// parseListParams reads page, perPage, searchType, searchColumn, searchKeyword,
// filters[key]=value and a comma separated include.
func parseListParams(c *gin.Context) models.ListParams {
	params := models.ListParams{
		Page:          queryInt(c, "page", 1),
		PerPage:       queryInt(c, "perPage", models.DefaultPerPage),
		SearchType:    models.SearchType(c.Query("searchType")),
		SearchColumn:  c.Query("searchColumn"),
		SearchKeyword: strings.TrimSpace(c.Query("searchKeyword")),
	}

	if filters := c.QueryMap("filters"); len(filters) > 0 {
		params.Filters = make(map[string]string, len(filters))
		for k, v := range filters {
			if v = strings.TrimSpace(v); v != "" {
				params.Filters[k] = v
			}
		}
	}

	for _, inc := range strings.Split(c.Query("include"), ",") {
		if inc = strings.TrimSpace(inc); inc != "" {
			params.Include = append(params.Include, inc)
		}
	}

	params.Normalize()
	return params
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

type statusMessage struct {
	status  int
	message string
}

var sentinelStatus = map[error]statusMessage{
	services.ErrAssessmentNotFound:     {http.StatusNotFound, "Assessment not found"},
	services.ErrAssessmentNotPublished: {http.StatusForbidden, "Assessment is not published"},
	services.ErrAssessmentNotOpen:      {http.StatusForbidden, "Assessment is not open"},
	services.ErrAssessmentNotDeletable: {http.StatusConflict, "Assessment has attempts and cannot be deleted"},
	services.ErrQuestionNotFound:       {http.StatusNotFound, "Question not found"},
	services.ErrQuestionInUse:          {http.StatusConflict, "Question is used by an assessment"},
	services.ErrSubjectNotFound:        {http.StatusNotFound, "Subject not found"},
	services.ErrPassageNotFound:        {http.StatusNotFound, "Passage not found"},
	services.ErrGroupNotFound:          {http.StatusNotFound, "Group not found"},
	services.ErrMemberNotFound:         {http.StatusNotFound, "Group member not found"},
	services.ErrUserNotFound:           {http.StatusNotFound, "User not found"},
	services.ErrDuplicate:              {http.StatusConflict, "Record already exists"},
	services.ErrAttemptNotFound:        {http.StatusNotFound, "Attempt not found"},
	services.ErrAttemptLimitExceeded:   {http.StatusConflict, "Maximum attempts exceeded"},
	services.ErrAttemptNotActive:       {http.StatusConflict, "Attempt is not active"},
	services.ErrAttemptTimeExpired:     {http.StatusGone, "Attempt time has expired"},
	services.ErrAttemptNotSubmitted:    {http.StatusConflict, "Attempt has not been submitted"},
	services.ErrAnswerNotFound:         {http.StatusNotFound, "Answer not found"},
	services.ErrMarkingNotAllowed:      {http.StatusConflict, "Assessment does not require marking"},
	services.ErrUnmarkedAnswers:        {http.StatusConflict, "Text answers must be marked before publishing"},
	services.ErrResultNotAvailable:     {http.StatusForbidden, "Result is not available yet"},
}

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: services.ValidationErrors{*validationError},
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]any{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]any{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	for sentinel, sm := range sentinelStatus {
		if errors.Is(err, sentinel) {
			c.JSON(sm.status, ErrorResponse{Message: sm.message})
			return
		}
	}

	h.LogError(c, err, "Unexpected service error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
}
