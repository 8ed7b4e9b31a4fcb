package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates a pattern and only logs failures.
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete deletes keys and only logs failures.
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

func InvalidateAssessmentCache(ctx context.Context, cm *CacheManager, assessmentID uint) {
	SafeDelete(ctx, cm.Assessment, fmt.Sprintf("id:%d", assessmentID), fmt.Sprintf("details:%d", assessmentID))
	SafeInvalidatePattern(ctx, cm.Assessment, "list:*")
	SafeInvalidatePattern(ctx, cm.Result, fmt.Sprintf("assessment:%d:*", assessmentID))
}

// StatsKey is the result cache key of an assessment's score statistics.
func StatsKey(assessmentID uint) string {
	return fmt.Sprintf("assessment:%d:stats", assessmentID)
}

// InvalidateResultCache drops what was cached from an assessment's attempts.
func InvalidateResultCache(ctx context.Context, cm *CacheManager, assessmentID uint) {
	SafeDelete(ctx, cm.Result, StatsKey(assessmentID))
}

func InvalidateQuestionCache(ctx context.Context, cm *CacheManager, questionID uint) {
	SafeDelete(ctx, cm.Question, fmt.Sprintf("id:%d", questionID))
	SafeInvalidatePattern(ctx, cm.Question, "list:*")
	// Assessment details embed questions.
	SafeInvalidatePattern(ctx, cm.Assessment, "details:*")
}

func InvalidateGroupCache(ctx context.Context, cm *CacheManager, groupID uint) {
	SafeDelete(ctx, cm.Group, fmt.Sprintf("id:%d", groupID))
	SafeInvalidatePattern(ctx, cm.Group, "list:*")
	SafeInvalidatePattern(ctx, cm.Group, "member:*")
}

// InvalidateCatalogCache drops the cached lists of one catalog kind (subjects, categories, passages).
func InvalidateCatalogCache(ctx context.Context, cm *CacheManager, kind string) {
	SafeInvalidatePattern(ctx, cm.Catalog, kind+":*")
}
