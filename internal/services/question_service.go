package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *questionService) Create(ctx context.Context, req *models.QuestionRequest, caller Caller) (*models.Question, error) {
	if !caller.Role.CanAuthor() {
		return nil, NewPermissionError(caller.UserID, 0, "question", "create", "insufficient role permissions")
	}
	if errs := s.validator.ValidateQuestion(req); len(errs) > 0 {
		return nil, errs
	}
	if err := s.validatePassage(ctx, req.PassageID); err != nil {
		return nil, err
	}

	question := &models.Question{CreatedBy: caller.UserID}
	applyQuestionRequest(question, req)

	if err := s.repo.Question().Create(ctx, question); err != nil {
		s.logger.Error("Failed to create question", "error", err, "creator_id", caller.UserID)
		return nil, mapRepoError(err, ErrQuestionNotFound)
	}

	s.logger.Info("Question created", "question_id", question.ID, "type", question.Type)
	return question, nil
}

func (s *questionService) Update(ctx context.Context, id uint, req *models.QuestionRequest, caller Caller) (*models.Question, error) {
	existing, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrQuestionNotFound)
	}
	if !caller.Owns(existing.CreatedBy) {
		return nil, NewPermissionError(caller.UserID, id, "question", "update", "not the owner")
	}
	if errs := s.validator.ValidateQuestion(req); len(errs) > 0 {
		return nil, errs
	}
	if err := s.validatePassage(ctx, req.PassageID); err != nil {
		return nil, err
	}

	question := &models.Question{ID: id, CreatedBy: existing.CreatedBy}
	applyQuestionRequest(question, req)

	if err := s.repo.Question().Update(ctx, question); err != nil {
		return nil, mapRepoError(err, ErrQuestionNotFound)
	}
	return s.repo.Question().GetByID(ctx, id)
}

func (s *questionService) Delete(ctx context.Context, id uint, caller Caller) error {
	existing, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, ErrQuestionNotFound)
	}
	if !caller.Owns(existing.CreatedBy) {
		return NewPermissionError(caller.UserID, id, "question", "delete", "not the owner")
	}

	used, err := s.repo.Question().IsUsed(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check question usage: %w", err)
	}
	if used {
		return ErrQuestionInUse
	}

	return mapRepoError(s.repo.Question().Delete(ctx, id), ErrQuestionNotFound)
}

func (s *questionService) Get(ctx context.Context, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrQuestionNotFound)
	}
	return question, nil
}

func (s *questionService) List(ctx context.Context, params models.ListParams) ([]*models.Question, int64, error) {
	params.Normalize()
	if errs := s.validator.ValidateListParams(&params); len(errs) > 0 {
		return nil, 0, errs
	}
	return s.repo.Question().List(ctx, params)
}

func (s *questionService) validatePassage(ctx context.Context, passageID *uint) error {
	if passageID == nil {
		return nil
	}
	if _, err := s.repo.Catalog().GetPassage(ctx, *passageID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ValidationErrors{*NewValidationError("passageId", "passage not found", *passageID)}
		}
		return fmt.Errorf("failed to load passage: %w", err)
	}
	return nil
}

func applyQuestionRequest(q *models.Question, req *models.QuestionRequest) {
	q.Content = req.Content
	q.Type = req.Type
	q.Explanation = req.Explanation
	q.CategoryID = req.CategoryID
	q.PassageID = req.PassageID

	q.Options = make([]models.Option, 0, len(req.Options))
	for _, o := range req.Options {
		q.Options = append(q.Options, models.Option{
			Answer:     o.Answer,
			IsCorrect:  o.IsCorrect,
			BlankOrder: o.BlankOrder,
		})
	}
}
