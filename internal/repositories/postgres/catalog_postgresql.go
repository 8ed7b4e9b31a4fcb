package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-portal/internal/cache"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
)

var (
	subjectSearch = SearchSpec{
		Columns:       map[string]string{"name": "name", "code": "code"},
		DefaultColumn: "name",
		Sorts:         map[string]string{"name": "name", "code": "code", "createdAt": "created_at"},
		DefaultSort:   "name",
	}
	categorySearch = SearchSpec{
		Columns:       map[string]string{"name": "name"},
		DefaultColumn: "name",
		Filters:       map[string]string{"createdBy": "created_by"},
		Sorts:         map[string]string{"name": "name", "createdAt": "created_at"},
		DefaultSort:   "name",
	}
	passageSearch = SearchSpec{
		Columns:       map[string]string{"title": "title", "content": "content"},
		DefaultColumn: "title",
		Filters:       map[string]string{"createdBy": "created_by"},
		Sorts:         map[string]string{"title": "title", "createdAt": "created_at"},
		DefaultSort:   "created_at",
	}
)

// CatalogPostgreSQL stores the small lookup tables: subjects, categories and passages.
type CatalogPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewCatalogPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.CatalogRepository {
	return &CatalogPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(),
		cacheManager: cacheManager,
	}
}

func (c *CatalogPostgreSQL) CreateSubject(ctx context.Context, subject *models.Subject) error {
	if err := c.db.WithContext(ctx).Create(subject).Error; err != nil {
		return mapError(err, "failed to create subject")
	}
	cache.InvalidateCatalogCache(ctx, c.cacheManager, "subjects")
	return nil
}

func (c *CatalogPostgreSQL) GetSubject(ctx context.Context, id uint) (*models.Subject, error) {
	var subject models.Subject
	if err := c.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return nil, mapError(err, "failed to get subject")
	}
	return &subject, nil
}

type subjectPage struct {
	Items []*models.Subject `json:"items"`
	Total int64             `json:"total"`
}

func (c *CatalogPostgreSQL) ListSubjects(ctx context.Context, params models.ListParams) ([]*models.Subject, int64, error) {
	var page subjectPage
	err := c.cacheManager.Catalog.CacheOrExecute(ctx, "subjects:"+cache.ListKey("all", params), &page, cache.CatalogCacheConfig.TTL, func() (any, error) {
		var items []*models.Subject
		total, err := c.helpers.Paginate(c.db.WithContext(ctx).Model(&models.Subject{}), params, subjectSearch, &items)
		if err != nil {
			return nil, err
		}
		return &subjectPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

func (c *CatalogPostgreSQL) CreateCategory(ctx context.Context, category *models.Category) error {
	if err := c.db.WithContext(ctx).Create(category).Error; err != nil {
		return mapError(err, "failed to create category")
	}
	cache.InvalidateCatalogCache(ctx, c.cacheManager, "categories")
	return nil
}

type categoryPage struct {
	Items []*models.Category `json:"items"`
	Total int64              `json:"total"`
}

func (c *CatalogPostgreSQL) ListCategories(ctx context.Context, params models.ListParams) ([]*models.Category, int64, error) {
	var page categoryPage
	err := c.cacheManager.Catalog.CacheOrExecute(ctx, "categories:"+cache.ListKey("all", params), &page, cache.CatalogCacheConfig.TTL, func() (any, error) {
		var items []*models.Category
		total, err := c.helpers.Paginate(c.db.WithContext(ctx).Model(&models.Category{}), params, categorySearch, &items)
		if err != nil {
			return nil, err
		}
		return &categoryPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

func (c *CatalogPostgreSQL) CreatePassage(ctx context.Context, passage *models.Passage) error {
	if err := c.db.WithContext(ctx).Create(passage).Error; err != nil {
		return mapError(err, "failed to create passage")
	}
	cache.InvalidateCatalogCache(ctx, c.cacheManager, "passages")
	return nil
}

func (c *CatalogPostgreSQL) GetPassage(ctx context.Context, id uint) (*models.Passage, error) {
	var passage models.Passage
	err := c.cacheManager.Catalog.CacheOrExecute(ctx, fmt.Sprintf("passage:%d", id), &passage, cache.CatalogCacheConfig.TTL, func() (any, error) {
		var dbPassage models.Passage
		if err := c.db.WithContext(ctx).First(&dbPassage, id).Error; err != nil {
			return nil, mapError(err, "failed to get passage")
		}
		return &dbPassage, nil
	})
	if err != nil {
		return nil, err
	}
	return &passage, nil
}

type passagePage struct {
	Items []*models.Passage `json:"items"`
	Total int64             `json:"total"`
}

func (c *CatalogPostgreSQL) ListPassages(ctx context.Context, params models.ListParams) ([]*models.Passage, int64, error) {
	var page passagePage
	err := c.cacheManager.Catalog.CacheOrExecute(ctx, "passages:"+cache.ListKey("all", params), &page, cache.CatalogCacheConfig.TTL, func() (any, error) {
		var items []*models.Passage
		total, err := c.helpers.Paginate(c.db.WithContext(ctx).Model(&models.Passage{}), params, passageSearch, &items)
		if err != nil {
			return nil, err
		}
		return &passagePage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}
