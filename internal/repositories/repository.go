package repositories

import (
	"context"
	"errors"
)

// Repository aggregates every repository behind one handle.
type Repository interface {
	Assessment() AssessmentRepository
	Question() QuestionRepository
	Catalog() CatalogRepository
	Group() GroupRepository
	Attempt() AttemptRepository

	// User data lives in Casdoor; read-only here.
	User() UserRepository

	// WithTransaction runs fn with repositories bound to one database transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
