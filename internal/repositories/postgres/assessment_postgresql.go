package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-portal/internal/cache"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
)

var assessmentSearch = SearchSpec{
	Columns: map[string]string{
		"name":        "assessments.name",
		"description": "assessments.description",
		"id":          "assessments.id",
	},
	DefaultColumn: "name",
	Filters: map[string]string{
		"subjectId":    "assessments.subject_id",
		"isPublished":  "assessments.is_published",
		"createdBy":    "assessments.created_by",
		"requiredMark": "assessments.required_mark",
	},
	Sorts: map[string]string{
		"name":      "assessments.name",
		"createdAt": "assessments.created_at",
		"validFrom": "assessments.valid_from",
		"validTo":   "assessments.valid_to",
	},
	DefaultSort: "assessments.created_at",
}

type AssessmentPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAssessmentPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(),
		cacheManager: cacheManager,
	}
}

// Create inserts the assessment with its question references and group links.
func (a *AssessmentPostgreSQL) Create(ctx context.Context, assessment *models.Assessment) error {
	err := a.db.WithContext(ctx).
		Omit("Subject", "Groups.*", "Questions.Question").
		Create(assessment).Error
	if err != nil {
		return mapError(err, "failed to create assessment")
	}
	cache.SafeInvalidatePattern(ctx, a.cacheManager.Assessment, "list:*")
	return nil
}

func (a *AssessmentPostgreSQL) Update(ctx context.Context, assessment *models.Assessment) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(assessment).
			Select("name", "description", "subject_id", "duration", "total_marks", "pass_marks",
				"max_attempts", "valid_from", "valid_to", "is_published", "required_mark", "result_display_mode").
			Updates(assessment).Error; err != nil {
			return err
		}

		if err := tx.Where("assessment_id = ?", assessment.ID).Delete(&models.AssessmentQuestion{}).Error; err != nil {
			return err
		}
		for i := range assessment.Questions {
			assessment.Questions[i].ID = 0
			assessment.Questions[i].AssessmentID = assessment.ID
		}
		if len(assessment.Questions) > 0 {
			if err := tx.Omit("Question").Create(&assessment.Questions).Error; err != nil {
				return err
			}
		}

		return tx.Model(assessment).Omit("Groups.*").Association("Groups").Replace(assessment.Groups)
	})
	if err != nil {
		return mapError(err, "failed to update assessment")
	}

	cache.InvalidateAssessmentCache(ctx, a.cacheManager, assessment.ID)
	return nil
}

func (a *AssessmentPostgreSQL) Delete(ctx context.Context, id uint) error {
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assessment := &models.Assessment{ID: id}
		if err := tx.Model(assessment).Association("Groups").Clear(); err != nil {
			return err
		}
		if err := tx.Where("assessment_id = ?", id).Delete(&models.AssessmentQuestion{}).Error; err != nil {
			return err
		}
		res := tx.Delete(assessment)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return mapError(err, "failed to delete assessment")
	}

	cache.InvalidateAssessmentCache(ctx, a.cacheManager, id)
	return nil
}

func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	var assessment models.Assessment
	err := a.cacheManager.Assessment.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &assessment, cache.AssessmentCacheConfig.TTL, func() (any, error) {
		var dbAssessment models.Assessment
		if err := a.db.WithContext(ctx).First(&dbAssessment, id).Error; err != nil {
			return nil, mapError(err, "failed to get assessment")
		}
		return &dbAssessment, nil
	})
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (a *AssessmentPostgreSQL) GetWithDetails(ctx context.Context, id uint) (*models.Assessment, error) {
	var assessment models.Assessment
	err := a.cacheManager.Assessment.CacheOrExecute(ctx, fmt.Sprintf("details:%d", id), &assessment, cache.AssessmentCacheConfig.TTL, func() (any, error) {
		var dbAssessment models.Assessment
		err := a.db.WithContext(ctx).
			Preload("Subject").
			Preload("Groups").
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order(`"order" ASC`).Order("id ASC")
			}).
			Preload("Questions.Question.Options", func(db *gorm.DB) *gorm.DB {
				return db.Order("id ASC")
			}).
			Preload("Questions.Question.Passage").
			First(&dbAssessment, id).Error
		if err != nil {
			return nil, mapError(err, "failed to get assessment details")
		}
		return &dbAssessment, nil
	})
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}

type assessmentPage struct {
	Items []*models.Assessment `json:"items"`
	Total int64                `json:"total"`
}

func (a *AssessmentPostgreSQL) List(ctx context.Context, params models.ListParams, scope repositories.AssessmentScope) ([]*models.Assessment, int64, error) {
	cacheScope := "all"
	if scope.CreatedBy != nil {
		cacheScope = "creator:" + *scope.CreatedBy
	}
	if scope.AssignedTo != nil {
		cacheScope = "assigned:" + *scope.AssignedTo
	}

	var page assessmentPage
	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cache.ListKey(cacheScope, params), &page, cache.AssessmentCacheConfig.TTL, func() (any, error) {
		query := a.db.WithContext(ctx).Model(&models.Assessment{})
		if scope.CreatedBy != nil {
			query = query.Where("assessments.created_by = ?", *scope.CreatedBy)
		}
		if scope.AssignedTo != nil {
			query = query.Where("assessments.is_published = ?", true).
				Where(`assessments.id IN (
					SELECT ag.assessment_id FROM assessment_groups ag
					JOIN group_members gm ON gm.group_id = ag.group_id
					WHERE gm.user_id = ?)`, *scope.AssignedTo)
		}
		if params.Includes("subject") {
			query = query.Preload("Subject")
		}
		if params.Includes("groups") {
			query = query.Preload("Groups")
		}
		if params.Includes("questions") {
			query = query.Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order(`"order" ASC`)
			}).Preload("Questions.Question")
		}

		var items []*models.Assessment
		total, err := a.helpers.Paginate(query, params, assessmentSearch, &items)
		if err != nil {
			return nil, err
		}
		return &assessmentPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

func (a *AssessmentPostgreSQL) HasAttempts(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.AssessmentAttempt{}).
		Where("assessment_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, mapError(err, "failed to count attempts")
	}
	return count > 0, nil
}

func (a *AssessmentPostgreSQL) IsUserAssigned(ctx context.Context, assessmentID uint, userID string) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Table("assessment_groups ag").
		Joins("JOIN group_members gm ON gm.group_id = ag.group_id").
		Where("ag.assessment_id = ? AND gm.user_id = ?", assessmentID, userID).
		Count(&count).Error
	if err != nil {
		return false, mapError(err, "failed to check assignment")
	}
	return count > 0, nil
}

// LockForAttempt serialises attempt starts on one assessment. Outside a transaction the lock is released immediately.
func (a *AssessmentPostgreSQL) LockForAttempt(ctx context.Context, id uint) error {
	var assessment models.Assessment
	err := a.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&assessment, id).Error
	if err != nil {
		return mapError(err, "failed to lock assessment")
	}
	return nil
}
