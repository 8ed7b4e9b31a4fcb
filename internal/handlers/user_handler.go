package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userService services.UserService
}

func NewUserHandler(userService services.UserService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userService: userService,
	}
}

// ListUsers lists directory users
// @Summary List users
// @Description Paginated Casdoor users, searchable by name, email or displayName
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param perPage query int false "Page size (default: 10, max: 100)"
// @Param searchColumn query string false "name, email or displayName"
// @Param searchKeyword query string false "Search term"
// @Success 200 {object} models.Document
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	params := parseListParams(c)

	users, total, err := h.userService.List(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListDocument(users, total, params, userResource))
}

// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.Document
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid id"})
		return
	}

	user, err := h.userService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SingleDocument(userResource(user)))
}

// GetCurrentUser returns the user resolved by the auth middleware.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	user, err := GetUserFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	c.JSON(http.StatusOK, models.SingleDocument(userResource(user)))
}
