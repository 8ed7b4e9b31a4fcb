package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-portal/internal/cache"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
)

var attemptSearch = SearchSpec{
	Columns: map[string]string{
		"userId": "assessment_attempts.user_id",
		"id":     "assessment_attempts.id",
	},
	DefaultColumn: "userId",
	Filters: map[string]string{
		"status":       "assessment_attempts.status",
		"assessmentId": "assessment_attempts.assessment_id",
		"isPublished":  "assessment_attempts.is_published",
		"userId":       "assessment_attempts.user_id",
	},
	Sorts: map[string]string{
		"startedAt":   "assessment_attempts.started_at",
		"submittedAt": "assessment_attempts.submitted_at",
		"score":       "assessment_attempts.score",
	},
	DefaultSort: "assessment_attempts.started_at",
}

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(),
		cacheManager: cacheManager,
	}
}

// ===== ATTEMPTS =====

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.AssessmentAttempt) error {
	if err := a.db.WithContext(ctx).Omit("Assessment", "Answers").Create(attempt).Error; err != nil {
		return mapError(err, "failed to create attempt")
	}
	cache.InvalidateResultCache(ctx, a.cacheManager, attempt.AssessmentID)
	return nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, attempt *models.AssessmentAttempt) error {
	err := a.db.WithContext(ctx).
		Model(attempt).
		Select("status", "deadline", "submitted_at", "score", "is_published", "published_at").
		Updates(attempt).Error
	if err != nil {
		return mapError(err, "failed to update attempt")
	}
	cache.InvalidateResultCache(ctx, a.cacheManager, attempt.AssessmentID)
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	err := a.db.WithContext(ctx).
		Preload("Assessment").
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Answers.Question.Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&attempt, id).Error
	if err != nil {
		return nil, mapError(err, "failed to get attempt")
	}
	return &attempt, nil
}

// FindInProgress loads the open attempt with its saved answers.
func (a *AttemptPostgreSQL) FindInProgress(ctx context.Context, assessmentID uint, userID string) (*models.AssessmentAttempt, error) {
	var attempt models.AssessmentAttempt
	err := a.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("assessment_id = ? AND user_id = ? AND status = ?", assessmentID, userID, models.AttemptInProgress).
		Order("started_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, mapError(err, "failed to find active attempt")
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByUser(ctx context.Context, assessmentID uint, userID string) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ? AND user_id = ?", assessmentID, userID).
		Count(&count).Error
	if err != nil {
		return 0, mapError(err, "failed to count attempts")
	}
	return count, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, params models.ListParams, filter repositories.AttemptFilter) ([]*models.AssessmentAttempt, int64, error) {
	query := a.db.WithContext(ctx).Model(&models.AssessmentAttempt{})
	if filter.UserID != nil {
		query = query.Where("assessment_attempts.user_id = ?", *filter.UserID)
	}
	if filter.AssessmentID != nil {
		query = query.Where("assessment_attempts.assessment_id = ?", *filter.AssessmentID)
	}
	if filter.Status != nil {
		query = query.Where("assessment_attempts.status = ?", *filter.Status)
	}
	if filter.AssessmentOwner != nil {
		query = query.Where("assessment_attempts.assessment_id IN (SELECT id FROM assessments WHERE created_by = ? AND deleted_at IS NULL)",
			*filter.AssessmentOwner)
	}
	if params.Includes("assessment") {
		query = query.Preload("Assessment")
	}

	var items []*models.AssessmentAttempt
	total, err := a.helpers.Paginate(query, params, attemptSearch, &items)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (a *AttemptPostgreSQL) ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.AssessmentAttempt, error) {
	var attempts []*models.AssessmentAttempt
	err := a.db.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("user_id ASC").Order("attempt_number ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, mapError(err, "failed to list attempts")
	}
	return attempts, nil
}

// ListOverdue returns in-progress attempts whose deadline passed before the given time.
func (a *AttemptPostgreSQL) ListOverdue(ctx context.Context, before time.Time, limit int) ([]*models.AssessmentAttempt, error) {
	var attempts []*models.AssessmentAttempt
	query := a.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ?", models.AttemptInProgress, before).
		Order("deadline ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&attempts).Error; err != nil {
		return nil, mapError(err, "failed to list overdue attempts")
	}
	return attempts, nil
}

// ===== ANSWERS =====

// SaveAnswers upserts on (attempt_id, question_id); resubmitting a question replaces its answer and marks.
func (a *AttemptPostgreSQL) SaveAnswers(ctx context.Context, answers []models.AttemptAnswer) error {
	if len(answers) == 0 {
		return nil
	}
	err := a.db.WithContext(ctx).
		Omit("Question").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "user_marks", "updated_at"}),
		}).
		Create(&answers).Error
	if err != nil {
		return mapError(err, "failed to save answers")
	}
	return nil
}

func (a *AttemptPostgreSQL) SaveDraftAnswer(ctx context.Context, answer *models.AttemptAnswer) error {
	err := a.db.WithContext(ctx).
		Omit("Question").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "updated_at"}),
		}).
		Create(answer).Error
	if err != nil {
		return mapError(err, "failed to save answer")
	}
	return nil
}

func (a *AttemptPostgreSQL) GetAnswer(ctx context.Context, attemptID, answerID uint) (*models.AttemptAnswer, error) {
	var answer models.AttemptAnswer
	err := a.db.WithContext(ctx).
		Preload("Question").
		Where("attempt_id = ?", attemptID).
		First(&answer, answerID).Error
	if err != nil {
		return nil, mapError(err, "failed to get answer")
	}
	return &answer, nil
}

func (a *AttemptPostgreSQL) UpdateAnswer(ctx context.Context, answer *models.AttemptAnswer) error {
	err := a.db.WithContext(ctx).
		Model(answer).
		Select("user_marks", "comment", "marked_by", "marked_at").
		Updates(answer).Error
	if err != nil {
		return mapError(err, "failed to update answer")
	}
	return nil
}

// ===== STATS =====

// Stats is cached per assessment until an attempt of it is created or updated.
// Answer writes always go with an attempt update, so they need no hook of their own.
func (a *AttemptPostgreSQL) Stats(ctx context.Context, assessmentID uint) (*repositories.AssessmentStats, error) {
	var stats repositories.AssessmentStats
	err := a.cacheManager.Result.CacheOrExecute(ctx, cache.StatsKey(assessmentID), &stats, cache.ResultCacheConfig.TTL, func() (any, error) {
		return a.loadStats(ctx, assessmentID)
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (a *AttemptPostgreSQL) loadStats(ctx context.Context, assessmentID uint) (*repositories.AssessmentStats, error) {
	stats := &repositories.AssessmentStats{AssessmentID: assessmentID}
	finished := []models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}

	if err := a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ?", assessmentID).
		Count(&stats.TotalAttempts).Error; err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	var agg struct {
		Finished  int64
		Published int64
		Average   float64
		Highest   float64
		Lowest    float64
	}
	if err := a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ? AND status IN ?", assessmentID, finished).
		Select(`COUNT(*) AS finished,
			COALESCE(SUM(CASE WHEN is_published THEN 1 ELSE 0 END), 0) AS published,
			COALESCE(AVG(score), 0) AS average,
			COALESCE(MAX(score), 0) AS highest,
			COALESCE(MIN(score), 0) AS lowest`).
		Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate scores: %w", err)
	}
	stats.FinishedCount = agg.Finished
	stats.PublishedCount = agg.Published
	stats.AverageScore = agg.Average
	stats.HighestScore = agg.Highest
	stats.LowestScore = agg.Lowest

	if err := a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Joins("JOIN assessments ON assessments.id = assessment_attempts.assessment_id").
		Where("assessment_attempts.assessment_id = ? AND assessment_attempts.status IN ?", assessmentID, finished).
		Where("assessments.pass_marks IS NOT NULL AND assessment_attempts.score >= assessments.pass_marks").
		Count(&stats.PassCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count passing attempts: %w", err)
	}

	if err := a.db.WithContext(ctx).
		Model(&models.AttemptAnswer{}).
		Joins("JOIN assessment_attempts ON assessment_attempts.id = attempt_answers.attempt_id").
		Joins("JOIN questions ON questions.id = attempt_answers.question_id").
		Where("assessment_attempts.assessment_id = ? AND assessment_attempts.status IN ?", assessmentID, finished).
		Where("questions.type = ? AND attempt_answers.user_marks IS NULL", models.Text).
		Count(&stats.UnmarkedAnswers).Error; err != nil {
		return nil, fmt.Errorf("failed to count unmarked answers: %w", err)
	}

	return stats, nil
}
