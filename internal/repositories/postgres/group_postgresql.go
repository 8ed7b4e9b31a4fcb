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

var groupSearch = SearchSpec{
	Columns: map[string]string{
		"name":        "groups.name",
		"description": "groups.description",
		"id":          "groups.id",
	},
	DefaultColumn: "name",
	Filters: map[string]string{
		"createdBy": "groups.created_by",
	},
	Sorts: map[string]string{
		"name":      "groups.name",
		"createdAt": "groups.created_at",
	},
	DefaultSort: "groups.name",
}

type GroupPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewGroupPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.GroupRepository {
	return &GroupPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(),
		cacheManager: cacheManager,
	}
}

func (g *GroupPostgreSQL) Create(ctx context.Context, group *models.Group) error {
	if err := g.db.WithContext(ctx).Create(group).Error; err != nil {
		return mapError(err, "failed to create group")
	}
	cache.SafeInvalidatePattern(ctx, g.cacheManager.Group, "list:*")
	return nil
}

func (g *GroupPostgreSQL) Update(ctx context.Context, group *models.Group) error {
	err := g.db.WithContext(ctx).
		Model(group).
		Select("name", "description").
		Updates(group).Error
	if err != nil {
		return mapError(err, "failed to update group")
	}
	cache.InvalidateGroupCache(ctx, g.cacheManager, group.ID)
	return nil
}

func (g *GroupPostgreSQL) Delete(ctx context.Context, id uint) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM assessment_groups WHERE group_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Group{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return mapError(err, "failed to delete group")
	}

	cache.InvalidateGroupCache(ctx, g.cacheManager, id)
	// Assignment lists depend on membership.
	cache.SafeInvalidatePattern(ctx, g.cacheManager.Assessment, "list:*")
	return nil
}

func (g *GroupPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	err := g.cacheManager.Group.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), &group, cache.GroupCacheConfig.TTL, func() (any, error) {
		var dbGroup models.Group
		if err := g.db.WithContext(ctx).Preload("Members").First(&dbGroup, id).Error; err != nil {
			return nil, mapError(err, "failed to get group")
		}
		return &dbGroup, nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (g *GroupPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Group, error) {
	if len(ids) == 0 {
		return []*models.Group{}, nil
	}
	var groups []*models.Group
	if err := g.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, mapError(err, "failed to get groups")
	}
	return groups, nil
}

type groupPage struct {
	Items []*models.Group `json:"items"`
	Total int64           `json:"total"`
}

func (g *GroupPostgreSQL) List(ctx context.Context, params models.ListParams) ([]*models.Group, int64, error) {
	var page groupPage
	err := g.cacheManager.Group.CacheOrExecute(ctx, cache.ListKey("all", params), &page, cache.GroupCacheConfig.TTL, func() (any, error) {
		query := g.db.WithContext(ctx).Model(&models.Group{})
		if params.Includes("members") {
			query = query.Preload("Members")
		}
		if member := params.Filters["memberId"]; member != "" {
			query = query.Where("groups.id IN (SELECT group_id FROM group_members WHERE user_id = ?)", member)
		}

		var items []*models.Group
		total, err := g.helpers.Paginate(query, params, groupSearch, &items)
		if err != nil {
			return nil, err
		}
		return &groupPage{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

func (g *GroupPostgreSQL) AddMember(ctx context.Context, groupID uint, userID string) error {
	member := models.GroupMember{GroupID: groupID, UserID: userID}
	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
	if err != nil {
		return mapError(err, "failed to add group member")
	}
	g.invalidateMembership(ctx, groupID)
	return nil
}

func (g *GroupPostgreSQL) RemoveMember(ctx context.Context, groupID uint, userID string) error {
	res := g.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{})
	if res.Error != nil {
		return mapError(res.Error, "failed to remove group member")
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	g.invalidateMembership(ctx, groupID)
	return nil
}

func (g *GroupPostgreSQL) ReplaceMembers(ctx context.Context, groupID uint, userIDs []string) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		if len(userIDs) == 0 {
			return nil
		}
		members := make([]models.GroupMember, 0, len(userIDs))
		for _, id := range userIDs {
			members = append(members, models.GroupMember{GroupID: groupID, UserID: id})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
	if err != nil {
		return mapError(err, "failed to replace group members")
	}
	g.invalidateMembership(ctx, groupID)
	return nil
}

func (g *GroupPostgreSQL) invalidateMembership(ctx context.Context, groupID uint) {
	cache.InvalidateGroupCache(ctx, g.cacheManager, groupID)
	cache.SafeInvalidatePattern(ctx, g.cacheManager.Assessment, "list:*")
}
