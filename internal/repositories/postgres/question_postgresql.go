package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-portal/internal/cache"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
)

var questionSearch = SearchSpec{
	Columns: map[string]string{
		"content": "questions.content",
		"type":    "questions.type",
		"id":      "questions.id",
	},
	DefaultColumn: "content",
	Filters: map[string]string{
		"type":       "questions.type",
		"categoryId": "questions.category_id",
		"passageId":  "questions.passage_id",
		"createdBy":  "questions.created_by",
	},
	Sorts: map[string]string{
		"createdAt": "questions.created_at",
		"type":      "questions.type",
	},
	DefaultSort: "questions.created_at",
}

type QuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(),
		cacheManager: cacheManager,
	}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	if err := q.db.WithContext(ctx).Omit("Category", "Passage").Create(question).Error; err != nil {
		return mapError(err, "failed to create question")
	}
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "list:*")
	return nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(question).
			Select("content", "type", "explanation", "category_id", "passage_id").
			Updates(question).Error; err != nil {
			return err
		}
		if err := tx.Where("question_id = ?", question.ID).Delete(&models.Option{}).Error; err != nil {
			return err
		}
		for i := range question.Options {
			question.Options[i].ID = 0
			question.Options[i].QuestionID = question.ID
		}
		if len(question.Options) > 0 {
			return tx.Create(&question.Options).Error
		}
		return nil
	})
	if err != nil {
		return mapError(err, "failed to update question")
	}

	cache.InvalidateQuestionCache(ctx, q.cacheManager, question.ID)
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	res := q.db.WithContext(ctx).Delete(&models.Question{}, id)
	if res.Error != nil {
		return mapError(res.Error, "failed to delete question")
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	cache.InvalidateQuestionCache(ctx, q.cacheManager, id)
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	err := q.cacheManager.Question.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &question, cache.QuestionCacheConfig.TTL, func() (any, error) {
		var dbQuestion models.Question
		err := q.db.WithContext(ctx).
			Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
			Preload("Category").
			Preload("Passage").
			First(&dbQuestion, id).Error
		if err != nil {
			return nil, mapError(err, "failed to get question")
		}
		return &dbQuestion, nil
	})
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}
	var questions []*models.Question
	err := q.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, mapError(err, "failed to get questions")
	}
	return questions, nil
}

type questionPage struct {
	Items []*models.Question `json:"items"`
	Total int64              `json:"total"`
}

func (q *QuestionPostgreSQL) List(ctx context.Context, params models.ListParams) ([]*models.Question, int64, error) {
	var page questionPage
	err := q.cacheManager.Question.CacheOrExecute(ctx, cache.ListKey("all", params), &page, cache.QuestionCacheConfig.TTL, func() (any, error) {
		query := q.db.WithContext(ctx).Model(&models.Question{})
		if params.Includes("options") {
			query = query.Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
		}
		if params.Includes("category") {
			query = query.Preload("Category")
		}
		if params.Includes("passage") {
			query = query.Preload("Passage")
		}

		var items []*models.Question
		total, err := q.helpers.Paginate(query, params, questionSearch, &items)
		if err != nil {
			return nil, err
		}
		return &questionPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

func (q *QuestionPostgreSQL) IsUsed(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := q.db.WithContext(ctx).
		Model(&models.AssessmentQuestion{}).
		Where("question_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, mapError(err, "failed to check question usage")
	}
	return count > 0, nil
}
