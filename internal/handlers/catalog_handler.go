package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

// CatalogHandler serves subjects, categories and passages.
type CatalogHandler struct {
	BaseHandler
	catalogService services.CatalogService
}

func NewCatalogHandler(catalogService services.CatalogService, logger utils.Logger) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler:    NewBaseHandler(logger),
		catalogService: catalogService,
	}
}

func (h *CatalogHandler) CreateSubject(c *gin.Context) {
	var req models.SubjectRequest
	if !h.bindJSON(c, &req) {
		return
	}

	subject, err := h.catalogService.CreateSubject(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SingleDocument(subjectResource(subject)))
}

func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	params := parseListParams(c)

	subjects, total, err := h.catalogService.ListSubjects(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListDocument(subjects, total, params, subjectResource))
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.CategoryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	category, err := h.catalogService.CreateCategory(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SingleDocument(categoryResource(category)))
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	params := parseListParams(c)

	categories, total, err := h.catalogService.ListCategories(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListDocument(categories, total, params, categoryResource))
}

func (h *CatalogHandler) CreatePassage(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req models.PassageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	passage, err := h.catalogService.CreatePassage(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SingleDocument(passageResource(passage)))
}

func (h *CatalogHandler) ListPassages(c *gin.Context) {
	params := parseListParams(c)

	passages, total, err := h.catalogService.ListPassages(c.Request.Context(), params)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ListDocument(passages, total, params, passageResource))
}
