package repositories

import (
	"context"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

// UserRepository reads accounts from the identity provider.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	// List supports searchColumn name, email or displayName.
	List(ctx context.Context, params models.ListParams) ([]*models.User, int64, error)
}
