package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

type assessmentService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAssessmentService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) AssessmentService {
	return &assessmentService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *assessmentService) Create(ctx context.Context, req *models.AssessmentRequest, caller Caller) (*models.Assessment, error) {
	s.logger.Info("Creating assessment", "creator_id", caller.UserID, "name", req.Name)

	if !caller.Role.CanAuthor() {
		return nil, NewPermissionError(caller.UserID, 0, "assessment", "create", "insufficient role permissions")
	}
	if errs := s.validator.ValidateAssessment(req); len(errs) > 0 {
		return nil, errs
	}
	if err := s.validateReferences(ctx, req); err != nil {
		return nil, err
	}

	assessment := &models.Assessment{CreatedBy: caller.UserID}
	applyAssessmentRequest(assessment, req)

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		return tx.Assessment().Create(ctx, assessment)
	})
	if err != nil {
		s.logger.Error("Failed to create assessment", "error", err, "creator_id", caller.UserID)
		return nil, mapRepoError(err, ErrAssessmentNotFound)
	}

	s.logger.Info("Assessment created", "assessment_id", assessment.ID)
	return s.repo.Assessment().GetWithDetails(ctx, assessment.ID)
}

func (s *assessmentService) Update(ctx context.Context, id uint, req *models.AssessmentRequest, caller Caller) (*models.Assessment, error) {
	s.logger.Info("Updating assessment", "assessment_id", id, "user_id", caller.UserID)

	existing, err := s.repo.Assessment().GetWithDetails(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrAssessmentNotFound)
	}
	if !caller.Owns(existing.CreatedBy) {
		return nil, NewPermissionError(caller.UserID, id, "assessment", "update", "not the owner")
	}
	if errs := s.validator.ValidateAssessment(req); len(errs) > 0 {
		return nil, errs
	}
	if err := s.validateReferences(ctx, req); err != nil {
		return nil, err
	}

	hasAttempts, err := s.repo.Assessment().HasAttempts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check attempts: %w", err)
	}
	if hasAttempts && questionSetChanged(existing.Questions, req.Questions) {
		return nil, NewBusinessRuleError("assessment_has_attempts",
			"questions and marks cannot change once the assessment has attempts",
			map[string]any{"assessmentId": id})
	}

	updated := &models.Assessment{ID: id, CreatedBy: existing.CreatedBy}
	applyAssessmentRequest(updated, req)

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		return tx.Assessment().Update(ctx, updated)
	})
	if err != nil {
		s.logger.Error("Failed to update assessment", "error", err, "assessment_id", id)
		return nil, mapRepoError(err, ErrAssessmentNotFound)
	}

	return s.repo.Assessment().GetWithDetails(ctx, id)
}

func (s *assessmentService) Delete(ctx context.Context, id uint, caller Caller) error {
	existing, err := s.repo.Assessment().GetByID(ctx, id)
	if err != nil {
		return mapRepoError(err, ErrAssessmentNotFound)
	}
	if !caller.Owns(existing.CreatedBy) {
		return NewPermissionError(caller.UserID, id, "assessment", "delete", "not the owner")
	}

	hasAttempts, err := s.repo.Assessment().HasAttempts(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if hasAttempts {
		return ErrAssessmentNotDeletable
	}

	if err := s.repo.Assessment().Delete(ctx, id); err != nil {
		return mapRepoError(err, ErrAssessmentNotFound)
	}
	s.logger.Info("Assessment deleted", "assessment_id", id, "user_id", caller.UserID)
	return nil
}

func (s *assessmentService) Get(ctx context.Context, id uint, caller Caller) (*models.Assessment, error) {
	assessment, err := s.repo.Assessment().GetWithDetails(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrAssessmentNotFound)
	}
	if caller.Owns(assessment.CreatedBy) {
		return assessment, nil
	}

	if !assessment.IsPublished {
		return nil, ErrAssessmentNotFound
	}
	assigned, err := s.repo.Assessment().IsUserAssigned(ctx, id, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check assignment: %w", err)
	}
	if !assigned {
		return nil, NewPermissionError(caller.UserID, id, "assessment", "view", "not assigned")
	}

	// Takers get questions through their attempt session only.
	assessment.Questions = nil
	return assessment, nil
}

func (s *assessmentService) List(ctx context.Context, params models.ListParams, caller Caller) ([]*models.Assessment, int64, error) {
	params.Normalize()
	if errs := s.validator.ValidateListParams(&params); len(errs) > 0 {
		return nil, 0, errs
	}

	var scope repositories.AssessmentScope
	switch caller.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		scope.CreatedBy = &caller.UserID
	default:
		scope.AssignedTo = &caller.UserID
	}

	return s.repo.Assessment().List(ctx, params, scope)
}

func (s *assessmentService) Stats(ctx context.Context, id uint, caller Caller) (*repositories.AssessmentStats, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, ErrAssessmentNotFound)
	}
	if !caller.Owns(assessment.CreatedBy) {
		return nil, NewPermissionError(caller.UserID, id, "assessment", "view stats", "not the owner")
	}
	return s.repo.Attempt().Stats(ctx, id)
}

// ===== HELPERS =====

// validateReferences checks that the subject, questions and groups exist.
func (s *assessmentService) validateReferences(ctx context.Context, req *models.AssessmentRequest) error {
	var errs ValidationErrors

	if _, err := s.repo.Catalog().GetSubject(ctx, req.SubjectID); err != nil {
		if !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to load subject: %w", err)
		}
		errs = append(errs, *NewValidationError("subjectId", "subject not found", req.SubjectID))
	}

	if len(req.Questions) > 0 {
		ids := make([]uint, len(req.Questions))
		for i, q := range req.Questions {
			ids[i] = q.QuestionID
		}
		found, err := s.repo.Question().GetByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}
		known := make(map[uint]bool, len(found))
		for _, q := range found {
			known[q.ID] = true
		}
		for i, q := range req.Questions {
			if !known[q.QuestionID] {
				errs = append(errs, *NewValidationError(fmt.Sprintf("questions[%d].questionId", i), "question not found", q.QuestionID))
			}
		}
	}

	if len(req.GroupIDs) > 0 {
		groups, err := s.repo.Group().GetByIDs(ctx, req.GroupIDs)
		if err != nil {
			return fmt.Errorf("failed to load groups: %w", err)
		}
		if len(groups) != len(uniqueIDs(req.GroupIDs)) {
			errs = append(errs, *NewValidationError("groupIds", "one or more groups not found", req.GroupIDs))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func applyAssessmentRequest(a *models.Assessment, req *models.AssessmentRequest) {
	a.Name = req.Name
	a.Description = req.Description
	a.SubjectID = req.SubjectID
	a.Duration = req.Duration
	a.TotalMarks = req.TotalMarks
	a.PassMarks = req.PassMarks
	a.MaxAttempts = req.MaxAttempts
	a.ValidFrom = req.ValidFrom
	a.ValidTo = req.ValidTo
	a.IsPublished = req.IsPublished
	a.RequiredMark = req.IsGraded()
	a.ResultDisplayMode = req.ResultDisplayMode
	if a.ResultDisplayMode == "" {
		a.ResultDisplayMode = models.ResultDisplayImmediate
	}

	a.Questions = make([]models.AssessmentQuestion, 0, len(req.Questions))
	for _, q := range req.Questions {
		a.Questions = append(a.Questions, models.AssessmentQuestion{
			QuestionID: q.QuestionID,
			Marks:      q.Marks,
			Order:      q.Order,
		})
	}

	a.Groups = make([]models.Group, 0, len(req.GroupIDs))
	for _, id := range uniqueIDs(req.GroupIDs) {
		a.Groups = append(a.Groups, models.Group{ID: id})
	}
}

func questionSetChanged(current []models.AssessmentQuestion, requested []models.AssessmentQuestionRequest) bool {
	if len(current) != len(requested) {
		return true
	}
	marks := make(map[uint]float64, len(current))
	for _, q := range current {
		marks[q.QuestionID] = q.Marks
	}
	for _, q := range requested {
		m, ok := marks[q.QuestionID]
		if !ok || m != q.Marks {
			return true
		}
	}
	return false
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// mapRepoError turns repository sentinels into service errors.
func mapRepoError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case repositories.IsNotFoundError(err):
		return notFound
	case errors.Is(err, repositories.ErrDuplicate):
		return ErrDuplicate
	default:
		return err
	}
}
