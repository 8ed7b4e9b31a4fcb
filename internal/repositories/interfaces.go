package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

// AssessmentScope narrows assessment listings to what a caller may see.
type AssessmentScope struct {
	// CreatedBy restricts to one author.
	CreatedBy *string
	// AssignedTo restricts to published assessments assigned to one of the user's groups.
	AssignedTo *string
}

type AttemptFilter struct {
	UserID       *string
	AssessmentID *uint
	// AssessmentOwner restricts to attempts on assessments authored by this user.
	AssessmentOwner *string
	Status          *models.AttemptStatus
}

type AssessmentStats struct {
	AssessmentID    uint    `json:"assessmentId"`
	TotalAttempts   int64   `json:"totalAttempts"`
	FinishedCount   int64   `json:"finishedCount"`
	PublishedCount  int64   `json:"publishedCount"`
	AverageScore    float64 `json:"averageScore"`
	HighestScore    float64 `json:"highestScore"`
	LowestScore     float64 `json:"lowestScore"`
	PassCount       int64   `json:"passCount"`
	UnmarkedAnswers int64   `json:"unmarkedAnswers"`
}

// ===== REPOSITORIES =====

type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	// Update saves scalar fields and replaces question references and group assignments.
	Update(ctx context.Context, assessment *models.Assessment) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Assessment, error)
	// GetWithDetails loads ordered questions with options and passages, plus groups.
	GetWithDetails(ctx context.Context, id uint) (*models.Assessment, error)
	List(ctx context.Context, params models.ListParams, scope AssessmentScope) ([]*models.Assessment, int64, error)
	HasAttempts(ctx context.Context, id uint) (bool, error)
	IsUserAssigned(ctx context.Context, assessmentID uint, userID string) (bool, error)
	// LockForAttempt holds a row lock on the assessment until the surrounding transaction ends.
	LockForAttempt(ctx context.Context, id uint) error
}

type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	// Update saves scalar fields and replaces options.
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error)
	List(ctx context.Context, params models.ListParams) ([]*models.Question, int64, error)
	IsUsed(ctx context.Context, id uint) (bool, error)
}

type CatalogRepository interface {
	CreateSubject(ctx context.Context, subject *models.Subject) error
	GetSubject(ctx context.Context, id uint) (*models.Subject, error)
	ListSubjects(ctx context.Context, params models.ListParams) ([]*models.Subject, int64, error)

	CreateCategory(ctx context.Context, category *models.Category) error
	ListCategories(ctx context.Context, params models.ListParams) ([]*models.Category, int64, error)

	CreatePassage(ctx context.Context, passage *models.Passage) error
	GetPassage(ctx context.Context, id uint) (*models.Passage, error)
	ListPassages(ctx context.Context, params models.ListParams) ([]*models.Passage, int64, error)
}

type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Group, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Group, error)
	List(ctx context.Context, params models.ListParams) ([]*models.Group, int64, error)
	AddMember(ctx context.Context, groupID uint, userID string) error
	RemoveMember(ctx context.Context, groupID uint, userID string) error
	// ReplaceMembers sets the member list to exactly userIDs.
	ReplaceMembers(ctx context.Context, groupID uint, userIDs []string) error
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.AssessmentAttempt) error
	Update(ctx context.Context, attempt *models.AssessmentAttempt) error
	// GetByID loads answers with their questions and options, and the assessment.
	GetByID(ctx context.Context, id uint) (*models.AssessmentAttempt, error)
	FindInProgress(ctx context.Context, assessmentID uint, userID string) (*models.AssessmentAttempt, error)
	CountByUser(ctx context.Context, assessmentID uint, userID string) (int64, error)
	List(ctx context.Context, params models.ListParams, filter AttemptFilter) ([]*models.AssessmentAttempt, int64, error)
	ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.AssessmentAttempt, error)
	ListOverdue(ctx context.Context, before time.Time, limit int) ([]*models.AssessmentAttempt, error)

	SaveAnswers(ctx context.Context, answers []models.AttemptAnswer) error
	// SaveDraftAnswer upserts the answer text only; marks are left untouched.
	SaveDraftAnswer(ctx context.Context, answer *models.AttemptAnswer) error
	GetAnswer(ctx context.Context, attemptID, answerID uint) (*models.AttemptAnswer, error)
	UpdateAnswer(ctx context.Context, answer *models.AttemptAnswer) error

	Stats(ctx context.Context, assessmentID uint) (*AssessmentStats, error)
}
