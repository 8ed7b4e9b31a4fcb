package services

import (
	"context"
	"log/slog"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

type catalogService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewCatalogService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) CatalogService {
	return &catalogService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *catalogService) CreateSubject(ctx context.Context, req *models.SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	subject := &models.Subject{Name: req.Name, Code: req.Code}
	if err := s.repo.Catalog().CreateSubject(ctx, subject); err != nil {
		return nil, mapRepoError(err, ErrSubjectNotFound)
	}
	s.logger.Info("Subject created", "subject_id", subject.ID, "code", subject.Code)
	return subject, nil
}

func (s *catalogService) ListSubjects(ctx context.Context, params models.ListParams) ([]*models.Subject, int64, error) {
	params.Normalize()
	return s.repo.Catalog().ListSubjects(ctx, params)
}

func (s *catalogService) CreateCategory(ctx context.Context, req *models.CategoryRequest, caller Caller) (*models.Category, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	category := &models.Category{Name: req.Name, CreatedBy: caller.UserID}
	if err := s.repo.Catalog().CreateCategory(ctx, category); err != nil {
		return nil, mapRepoError(err, ErrSubjectNotFound)
	}
	return category, nil
}

func (s *catalogService) ListCategories(ctx context.Context, params models.ListParams) ([]*models.Category, int64, error) {
	params.Normalize()
	return s.repo.Catalog().ListCategories(ctx, params)
}

func (s *catalogService) CreatePassage(ctx context.Context, req *models.PassageRequest, caller Caller) (*models.Passage, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	passage := &models.Passage{Title: req.Title, Content: req.Content, CreatedBy: caller.UserID}
	if err := s.repo.Catalog().CreatePassage(ctx, passage); err != nil {
		return nil, mapRepoError(err, ErrPassageNotFound)
	}
	return passage, nil
}

func (s *catalogService) ListPassages(ctx context.Context, params models.ListParams) ([]*models.Passage, int64, error) {
	params.Normalize()
	return s.repo.Catalog().ListPassages(ctx, params)
}
