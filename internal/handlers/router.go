package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-portal/internal/config"
	"github.com/SAP-F-2025/quiz-portal/internal/metrics"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/services"
	"github.com/SAP-F-2025/quiz-portal/internal/utils"
)

// HandlerDeps collects what the route tree needs. Auth is the middleware
// guarding /api/v1; RateLimiter and Metrics are optional.
type HandlerDeps struct {
	Services    services.ServiceManager
	Logger      utils.Logger
	Auth        gin.HandlerFunc
	OAuth       OAuthClient
	Casdoor     config.CasdoorConfig
	Metrics     *metrics.Metrics
	RateLimiter *RateLimiter
}

type HandlerManager struct {
	assessmentHandler *AssessmentHandler
	questionHandler   *QuestionHandler
	catalogHandler    *CatalogHandler
	groupHandler      *GroupHandler
	userHandler       *UserHandler
	attemptHandler    *AttemptHandler
	authHandler       *AuthHandler

	services    services.ServiceManager
	auth        gin.HandlerFunc
	metrics     *metrics.Metrics
	rateLimiter *RateLimiter
}

func NewHandlerManager(deps HandlerDeps) *HandlerManager {
	sm := deps.Services
	logger := deps.Logger

	return &HandlerManager{
		assessmentHandler: NewAssessmentHandler(sm.Assessment(), sm.Attempt(), sm.Export(), logger),
		questionHandler:   NewQuestionHandler(sm.Question(), logger),
		catalogHandler:    NewCatalogHandler(sm.Catalog(), logger),
		groupHandler:      NewGroupHandler(sm.Group(), logger),
		userHandler:       NewUserHandler(sm.User(), logger),
		attemptHandler:    NewAttemptHandler(sm.Attempt(), sm.Result(), logger),
		authHandler:       NewAuthHandler(deps.OAuth, deps.Casdoor, logger),
		services:          sm,
		auth:              deps.Auth,
		metrics:           deps.Metrics,
		rateLimiter:       deps.RateLimiter,
	}
}

// SetupRoutes registers /health, /metrics and the /api/v1 tree.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.health)
	if hm.metrics != nil {
		router.GET("/metrics", hm.metrics.Handler())
	}

	v1 := router.Group("/api/v1")
	if hm.rateLimiter != nil {
		v1.Use(hm.rateLimiter.Middleware())
	}

	auth := v1.Group("/auth")
	{
		auth.POST("/token", hm.authHandler.ExchangeToken)
		auth.POST("/refresh-token", hm.authHandler.RefreshToken)
		auth.GET("/urls", hm.authHandler.URLs)
	}

	api := v1.Group("")
	if hm.auth != nil {
		api.Use(hm.auth)
	}

	authors := RequireRole(models.RoleTeacher, models.RoleAdmin)

	assessments := api.Group("/assessments")
	{
		assessments.GET("", hm.assessmentHandler.ListAssessments)
		assessments.GET("/:id", hm.assessmentHandler.GetAssessment)
		assessments.POST("", authors, hm.assessmentHandler.CreateAssessment)
		assessments.PUT("/:id", authors, hm.assessmentHandler.UpdateAssessment)
		assessments.DELETE("/:id", authors, hm.assessmentHandler.DeleteAssessment)
		assessments.GET("/:id/stats", authors, hm.assessmentHandler.GetAssessmentStats)

		assessments.POST("/:id/attempts", hm.assessmentHandler.StartAttempt)
		assessments.GET("/:id/results/export", authors, hm.assessmentHandler.ExportResults)
	}

	questions := api.Group("/questions", authors)
	{
		questions.GET("", hm.questionHandler.ListQuestions)
		questions.POST("", hm.questionHandler.CreateQuestion)
		questions.GET("/:id", hm.questionHandler.GetQuestion)
		questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
		questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
	}

	api.GET("/subjects", hm.catalogHandler.ListSubjects)
	api.POST("/subjects", RequireRole(models.RoleAdmin), hm.catalogHandler.CreateSubject)
	api.GET("/categories", hm.catalogHandler.ListCategories)
	api.POST("/categories", authors, hm.catalogHandler.CreateCategory)
	api.GET("/passages", authors, hm.catalogHandler.ListPassages)
	api.POST("/passages", authors, hm.catalogHandler.CreatePassage)

	groups := api.Group("/groups")
	{
		groups.GET("", hm.groupHandler.ListGroups)
		groups.GET("/:id", hm.groupHandler.GetGroup)
		groups.POST("", authors, hm.groupHandler.CreateGroup)
		groups.PUT("/:id", authors, hm.groupHandler.UpdateGroup)
		groups.DELETE("/:id", authors, hm.groupHandler.DeleteGroup)
		groups.POST("/:id/members/:user_id", authors, hm.groupHandler.AddMember)
		groups.DELETE("/:id/members/:user_id", authors, hm.groupHandler.RemoveMember)
	}

	users := api.Group("/users")
	{
		users.GET("", authors, hm.userHandler.ListUsers)
		users.GET("/me", hm.userHandler.GetCurrentUser)
		users.GET("/:id", authors, hm.userHandler.GetUser)
	}

	attempts := api.Group("/attempts")
	{
		attempts.GET("", hm.attemptHandler.ListAttempts)
		attempts.POST("/submit", hm.attemptHandler.SubmitAttempt)
		attempts.GET("/:id/result", hm.attemptHandler.GetResult)
		attempts.PUT("/:id/answers/:question_id", hm.attemptHandler.SaveAnswer)
		attempts.PATCH("/:id/answers/:answer_id", authors, hm.attemptHandler.MarkAnswer)
		attempts.POST("/:id/publish", authors, hm.attemptHandler.PublishResult)
	}
}

func (hm *HandlerManager) health(c *gin.Context) {
	checks := hm.services.Health(c.Request.Context())
	status := http.StatusOK
	overall := "healthy"
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "quiz-portal",
		"checks":  checks,
	})
}
