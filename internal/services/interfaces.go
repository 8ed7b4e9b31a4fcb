package services

import (
	"context"
	"encoding/json"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
)

// Caller identifies the authenticated user behind a request.
type Caller struct {
	UserID string
	Role   models.UserRole
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// Owns reports whether the caller authored the resource or is an admin.
func (c Caller) Owns(createdBy string) bool {
	return c.IsAdmin() || (c.UserID != "" && c.UserID == createdBy)
}

type AssessmentService interface {
	Create(ctx context.Context, req *models.AssessmentRequest, caller Caller) (*models.Assessment, error)
	Update(ctx context.Context, id uint, req *models.AssessmentRequest, caller Caller) (*models.Assessment, error)
	Delete(ctx context.Context, id uint, caller Caller) error
	// Get returns the assessment with questions and groups; takers see no correctness flags.
	Get(ctx context.Context, id uint, caller Caller) (*models.Assessment, error)
	List(ctx context.Context, params models.ListParams, caller Caller) ([]*models.Assessment, int64, error)
	Stats(ctx context.Context, id uint, caller Caller) (*repositories.AssessmentStats, error)
}

type QuestionService interface {
	Create(ctx context.Context, req *models.QuestionRequest, caller Caller) (*models.Question, error)
	Update(ctx context.Context, id uint, req *models.QuestionRequest, caller Caller) (*models.Question, error)
	Delete(ctx context.Context, id uint, caller Caller) error
	Get(ctx context.Context, id uint) (*models.Question, error)
	List(ctx context.Context, params models.ListParams) ([]*models.Question, int64, error)
}

type CatalogService interface {
	CreateSubject(ctx context.Context, req *models.SubjectRequest) (*models.Subject, error)
	ListSubjects(ctx context.Context, params models.ListParams) ([]*models.Subject, int64, error)
	CreateCategory(ctx context.Context, req *models.CategoryRequest, caller Caller) (*models.Category, error)
	ListCategories(ctx context.Context, params models.ListParams) ([]*models.Category, int64, error)
	CreatePassage(ctx context.Context, req *models.PassageRequest, caller Caller) (*models.Passage, error)
	ListPassages(ctx context.Context, params models.ListParams) ([]*models.Passage, int64, error)
}

type GroupService interface {
	Create(ctx context.Context, req *models.GroupRequest, caller Caller) (*models.Group, error)
	Update(ctx context.Context, id uint, req *models.GroupRequest, caller Caller) (*models.Group, error)
	Delete(ctx context.Context, id uint, caller Caller) error
	Get(ctx context.Context, id uint) (*models.Group, error)
	List(ctx context.Context, params models.ListParams) ([]*models.Group, int64, error)
	AddMember(ctx context.Context, groupID uint, userID string, caller Caller) error
	RemoveMember(ctx context.Context, groupID uint, userID string, caller Caller) error
}

type UserService interface {
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, params models.ListParams) ([]*models.User, int64, error)
}

type AttemptService interface {
	// Start creates a new attempt or resumes the caller's in-progress one.
	Start(ctx context.Context, assessmentID uint, caller Caller) (*models.AttemptSession, error)
	// SaveAnswer keeps a draft answer so a resumed or timed out attempt still has it.
	SaveAnswer(ctx context.Context, attemptID, questionID uint, answer json.RawMessage, caller Caller) error
	Submit(ctx context.Context, req *models.SubmitAttemptRequest, caller Caller) (*models.AttemptResult, error)
	List(ctx context.Context, params models.ListParams, caller Caller) ([]*models.AssessmentAttempt, int64, error)
	// ExpireOverdue closes in-progress attempts past deadline and grace period and returns how many it closed.
	ExpireOverdue(ctx context.Context) (int, error)
}

type ResultService interface {
	Get(ctx context.Context, attemptID uint, caller Caller) (*models.AttemptResult, error)
	MarkAnswer(ctx context.Context, attemptID, answerID uint, req *models.MarkAnswerRequest, caller Caller) (*models.QuestionResult, error)
	Publish(ctx context.Context, attemptID uint, caller Caller) (*models.AssessmentAttempt, error)
}

type ExportService interface {
	// ExportResults renders every attempt of an assessment into an xlsx workbook.
	ExportResults(ctx context.Context, assessmentID uint, caller Caller) ([]byte, string, error)
}

type ServiceManager interface {
	Assessment() AssessmentService
	Question() QuestionService
	Catalog() CatalogService
	Group() GroupService
	User() UserService
	Attempt() AttemptService
	Result() ResultService
	Export() ExportService

	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Health(ctx context.Context) map[string]string
}
