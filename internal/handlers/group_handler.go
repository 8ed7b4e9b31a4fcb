package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

type GroupHandler struct {
	BaseHandler
	groupService services.GroupService
}

func NewGroupHandler(groupService services.GroupService, logger utils.Logger) *GroupHandler {
	return &GroupHandler{
		BaseHandler:  NewBaseHandler(logger),
		groupService: groupService,
	}
}

// @Summary Create group
// @Tags groups
// @Accept json
// @Produce json
// @Param group body models.GroupRequest true "Group data"
// @Success 201 {object} models.Document
// @Router /groups [post]
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.GroupRequest
	if !h.bindJSON(c, &req) {
		return
	}

	group, err := h.groupService.Create(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Group created", "group_id", group.ID, "members", len(group.Members))
	c.JSON(http.StatusCreated, models.SingleDocument(groupResource(group)))
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	group, err := h.groupService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SingleDocument(groupResource(group)))
}

func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.GroupRequest
	if !h.bindJSON(c, &req) {
		return
	}

	group, err := h.groupService.Update(c.Request.Context(), id, &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SingleDocument(groupResource(group)))
}

func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	if err := h.groupService.Delete(c.Request.Context(), id, caller); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary List groups
// @Tags groups
// @Produce json
// @Param include query string false "members"
// @Success 200 {object} models.Document
// @Router /groups [get]
func (h *GroupHandler) ListGroups(c *gin.Context) {
	params := parseListParams(c)

	groups, total, err := h.groupService.List(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListDocument(groups, total, params, groupResource))
}

func (h *GroupHandler) AddMember(c *gin.Context) {
	h.changeMember(c, h.groupService.AddMember, http.StatusCreated)
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	h.changeMember(c, h.groupService.RemoveMember, http.StatusNoContent)
}

type memberChange func(ctx context.Context, groupID uint, userID string, caller services.Caller) error

func (h *GroupHandler) changeMember(c *gin.Context, change memberChange, status int) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid user_id"})
		return
	}
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	if err := change(c.Request.Context(), id, userID, caller); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Group membership changed", "group_id", id, "member_id", userID)
	c.Status(status)
}
