package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/quiz-portal/internal/events"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

// sweepBatchSize bounds how many overdue attempts one sweep closes.
const sweepBatchSize = 100

type attemptService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	gracePeriod    time.Duration
	now            func() time.Time
}

func NewAttemptService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator,
	eventPublisher events.EventPublisher, gracePeriod time.Duration) AttemptService {
	return &attemptService{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
		gracePeriod:    gracePeriod,
		now:            time.Now,
	}
}

// ===== START =====

func (s *attemptService) Start(ctx context.Context, assessmentID uint, caller Caller) (*models.AttemptSession, error) {
	s.logger.Info("Starting attempt", "assessment_id", assessmentID, "user_id", caller.UserID)

	assessment, err := s.repo.Assessment().GetWithDetails(ctx, assessmentID)
	if err != nil {
		return nil, mapRepoError(err, ErrAssessmentNotFound)
	}

	now := s.now()
	if !assessment.IsPublished {
		return nil, ErrAssessmentNotPublished
	}
	if !assessment.IsOpenAt(now) {
		return nil, ErrAssessmentNotOpen
	}
	if !caller.Owns(assessment.CreatedBy) {
		assigned, err := s.repo.Assessment().IsUserAssigned(ctx, assessmentID, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check assignment: %w", err)
		}
		if !assigned {
			return nil, NewPermissionError(caller.UserID, assessmentID, "assessment", "attempt", "not assigned")
		}
	}

	if err := s.closeStale(ctx, assessment, caller.UserID, now); err != nil {
		return nil, err
	}

	var attempt *models.AssessmentAttempt
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Assessment().LockForAttempt(ctx, assessmentID); err != nil {
			return fmt.Errorf("failed to lock assessment: %w", err)
		}
		active, err := tx.Attempt().FindInProgress(ctx, assessmentID, caller.UserID)
		if err == nil {
			attempt = active
			return nil
		}
		if !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to look up active attempt: %w", err)
		}

		used, err := tx.Attempt().CountByUser(ctx, assessmentID, caller.UserID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if !assessment.IsUnlimitedAttempts() && used >= int64(*assessment.MaxAttempts) {
			return ErrAttemptLimitExceeded
		}

		attempt = &models.AssessmentAttempt{
			AssessmentID:  assessmentID,
			UserID:        caller.UserID,
			AttemptNumber: int(used) + 1,
			Status:        models.AttemptInProgress,
			StartedAt:     now,
			Deadline:      attemptDeadline(assessment, now),
		}
		return tx.Attempt().Create(ctx, attempt)
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		// Another start for the same user inserted this attempt number first.
		s.logger.Warn("Concurrent attempt start, resuming", "assessment_id", assessmentID, "user_id", caller.UserID)
		attempt, err = s.repo.Attempt().FindInProgress(ctx, assessmentID, caller.UserID)
		if err != nil {
			return nil, mapRepoError(err, ErrAttemptNotFound)
		}
	} else if err != nil {
		return nil, err
	}

	s.logger.Info("Attempt ready", "attempt_id", attempt.ID, "attempt_number", attempt.AttemptNumber)
	return buildSession(attempt, assessment), nil
}

// closeStale times out the caller's in-progress attempt when it is past its deadline and grace period.
func (s *attemptService) closeStale(ctx context.Context, assessment *models.Assessment, userID string, now time.Time) error {
	active, err := s.repo.Attempt().FindInProgress(ctx, assessment.ID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to look up active attempt: %w", err)
	}
	if !s.pastGrace(active, now) {
		return nil
	}

	var stale *models.AssessmentAttempt
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		stale, err = tx.Attempt().GetByID(ctx, active.ID)
		if err != nil {
			return err
		}
		return s.finalize(ctx, tx, stale, assessment, storedAnswers(stale), models.AttemptTimedOut, now)
	})
	if err != nil {
		return fmt.Errorf("failed to close stale attempt: %w", err)
	}
	s.publishSubmitted(ctx, stale, assessment)
	return nil
}

// attemptDeadline is start plus duration, capped by the end of the validity window.
func attemptDeadline(assessment *models.Assessment, start time.Time) *time.Time {
	var deadline *time.Time
	if !assessment.IsUnlimitedDuration() {
		d := start.Add(time.Duration(*assessment.Duration) * time.Minute)
		deadline = &d
	}
	if assessment.ValidTo != nil && (deadline == nil || assessment.ValidTo.Before(*deadline)) {
		d := *assessment.ValidTo
		deadline = &d
	}
	return deadline
}

func buildSession(attempt *models.AssessmentAttempt, assessment *models.Assessment) *models.AttemptSession {
	saved := make(map[uint]json.RawMessage, len(attempt.Answers))
	for _, a := range attempt.Answers {
		saved[a.QuestionID] = json.RawMessage(a.Answer)
	}

	questions := make([]models.AttemptQuestion, 0, len(assessment.Questions))
	for _, aq := range assessment.Questions {
		if aq.Question == nil {
			continue
		}
		q := aq.Question
		view := models.AttemptQuestion{
			QuestionID: q.ID,
			Content:    q.Content,
			Type:       q.Type,
			Marks:      aq.Marks,
			Order:      aq.Order,
			Passage:    q.Passage,
			Answer:     saved[q.ID],
		}
		switch q.Type {
		case models.FillIn:
			view.BlankCount = len(q.Blanks())
		case models.Text:
		default:
			view.Options = optionViews(q.Options)
		}
		questions = append(questions, view)
	}

	session := &models.AttemptSession{
		Attempt:        *attempt,
		AssessmentName: assessment.Name,
		Duration:       assessment.Duration,
		TotalMarks:     assessment.TotalMarks,
		Questions:      questions,
	}
	session.Attempt.Answers = nil
	session.Attempt.Assessment = nil
	return session
}

// ===== SAVE ANSWER =====

func (s *attemptService) SaveAnswer(ctx context.Context, attemptID, questionID uint, answer json.RawMessage, caller Caller) error {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		return mapRepoError(err, ErrAttemptNotFound)
	}
	if attempt.UserID != caller.UserID {
		return NewPermissionError(caller.UserID, attempt.ID, "attempt", "answer", "not the attempt owner")
	}
	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptNotActive
	}
	if s.pastGrace(attempt, s.now()) {
		return ErrAttemptTimeExpired
	}

	assessment, err := s.repo.Assessment().GetWithDetails(ctx, attempt.AssessmentID)
	if err != nil {
		return mapRepoError(err, ErrAssessmentNotFound)
	}
	aq := findAssessmentQuestion(assessment, questionID)
	if aq == nil || aq.Question == nil {
		return ValidationErrors{*NewValidationError("questionId", "question is not part of this assessment", questionID)}
	}
	if err := ValidateAnswer(aq.Question, answer); err != nil {
		return ValidationErrors{*NewValidationError("answer", err.Error(), string(answer))}
	}
	if IsEmptyAnswer(answer) {
		answer = json.RawMessage("null")
	}

	draft := &models.AttemptAnswer{
		AttemptID:  attempt.ID,
		QuestionID: questionID,
		Answer:     datatypes.JSON(answer),
	}
	if err := s.repo.Attempt().SaveDraftAnswer(ctx, draft); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	s.logger.Debug("Answer saved", "attempt_id", attempt.ID, "question_id", questionID)
	return nil
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, req *models.SubmitAttemptRequest, caller Caller) (*models.AttemptResult, error) {
	s.logger.Info("Submitting attempt", "attempt_id", req.AttemptID, "user_id", caller.UserID, "answers", len(req.Answers))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var attempt *models.AssessmentAttempt
	var assessment *models.Assessment
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		attempt, err = tx.Attempt().GetByID(ctx, req.AttemptID)
		if err != nil {
			return mapRepoError(err, ErrAttemptNotFound)
		}
		if attempt.UserID != caller.UserID {
			return NewPermissionError(caller.UserID, attempt.ID, "attempt", "submit", "not the attempt owner")
		}
		if attempt.Status != models.AttemptInProgress {
			return ErrAttemptNotActive
		}

		now := s.now()
		if s.pastGrace(attempt, now) {
			return ErrAttemptTimeExpired
		}

		assessment, err = tx.Assessment().GetWithDetails(ctx, attempt.AssessmentID)
		if err != nil {
			return mapRepoError(err, ErrAssessmentNotFound)
		}
		answers := mergeAnswers(storedAnswers(attempt), req.Answers)
		return s.finalize(ctx, tx, attempt, assessment, answers, models.AttemptSubmitted, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubmitted(ctx, attempt, assessment)

	full, err := s.repo.Attempt().GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, mapRepoError(err, ErrAttemptNotFound)
	}
	return buildResult(full, assessment, caller), nil
}

// finalize validates and grades the answers, stores them and closes the attempt.
// Every assessment question gets a row; missing answers are stored as null.
func (s *attemptService) finalize(ctx context.Context, tx repositories.Repository, attempt *models.AssessmentAttempt,
	assessment *models.Assessment, submitted []models.SubmittedAnswer, status models.AttemptStatus, now time.Time) error {

	byQuestion := make(map[uint]json.RawMessage, len(submitted))
	var errs ValidationErrors
	for i, a := range submitted {
		byQuestion[a.QuestionID] = a.Answer
		if findAssessmentQuestion(assessment, a.QuestionID) == nil {
			errs = append(errs, *NewValidationError(fmt.Sprintf("answers[%d].questionId", i), "question is not part of this assessment", a.QuestionID))
		}
	}

	answers := make([]models.AttemptAnswer, 0, len(assessment.Questions))
	for _, aq := range assessment.Questions {
		if aq.Question == nil {
			continue
		}
		raw := byQuestion[aq.QuestionID]
		if err := ValidateAnswer(aq.Question, raw); err != nil {
			if status == models.AttemptSubmitted {
				errs = append(errs, *NewValidationError(fmt.Sprintf("answers[questionId=%d]", aq.QuestionID), err.Error(), string(raw)))
				continue
			}
			// Stored answers that no longer fit the question are scored as unanswered.
			raw = nil
		}
		if IsEmptyAnswer(raw) {
			raw = json.RawMessage("null")
		}

		answer := models.AttemptAnswer{
			AttemptID:  attempt.ID,
			QuestionID: aq.QuestionID,
			Answer:     datatypes.JSON(raw),
		}
		if assessment.RequiredMark {
			answer.UserMarks = GradeAnswer(aq.Question, aq.Marks, raw)
		}
		answers = append(answers, answer)
	}
	if len(errs) > 0 {
		return errs
	}

	if err := tx.Attempt().SaveAnswers(ctx, answers); err != nil {
		return fmt.Errorf("failed to save answers: %w", err)
	}

	attempt.Status = status
	attempt.SubmittedAt = &now
	attempt.Score = models.ScoreOf(answers)
	attempt.Answers = answers
	if err := tx.Attempt().Update(ctx, attempt); err != nil {
		return fmt.Errorf("failed to close attempt: %w", err)
	}
	return nil
}

func (s *attemptService) pastGrace(attempt *models.AssessmentAttempt, now time.Time) bool {
	return attempt.Deadline != nil && now.After(attempt.Deadline.Add(s.gracePeriod))
}

func storedAnswers(attempt *models.AssessmentAttempt) []models.SubmittedAnswer {
	out := make([]models.SubmittedAnswer, 0, len(attempt.Answers))
	for _, a := range attempt.Answers {
		out = append(out, models.SubmittedAnswer{QuestionID: a.QuestionID, Answer: json.RawMessage(a.Answer)})
	}
	return out
}

// mergeAnswers overlays submitted answers on saved drafts, keyed by question.
func mergeAnswers(saved, submitted []models.SubmittedAnswer) []models.SubmittedAnswer {
	seen := make(map[uint]bool, len(submitted))
	for _, a := range submitted {
		seen[a.QuestionID] = true
	}
	out := append([]models.SubmittedAnswer(nil), submitted...)
	for _, a := range saved {
		if !seen[a.QuestionID] {
			out = append(out, a)
		}
	}
	return out
}

func findAssessmentQuestion(assessment *models.Assessment, questionID uint) *models.AssessmentQuestion {
	for i := range assessment.Questions {
		if assessment.Questions[i].QuestionID == questionID {
			return &assessment.Questions[i]
		}
	}
	return nil
}

func (s *attemptService) publishSubmitted(ctx context.Context, attempt *models.AssessmentAttempt, assessment *models.Assessment) {
	pending := 0
	for _, a := range attempt.Answers {
		if a.UserMarks == nil && assessment.RequiredMark {
			pending++
		}
	}
	submittedAt := ""
	if attempt.SubmittedAt != nil {
		submittedAt = attempt.SubmittedAt.UTC().Format(time.RFC3339)
	}

	event := events.NewEvent(events.AttemptSubmitted, events.AttemptSubmittedData{
		AttemptID:    attempt.ID,
		AssessmentID: attempt.AssessmentID,
		UserID:       attempt.UserID,
		Status:       string(attempt.Status),
		Score:        attempt.Score,
		TotalMarks:   assessment.TotalMarks,
		PassMarks:    assessment.PassMarks,
		PendingText:  pending,
		SubmittedAt:  submittedAt,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish attempt event", "error", err, "attempt_id", attempt.ID)
	}
}

// ===== LIST =====

func (s *attemptService) List(ctx context.Context, params models.ListParams, caller Caller) ([]*models.AssessmentAttempt, int64, error) {
	params.Normalize()
	if errs := s.validator.ValidateListParams(&params); len(errs) > 0 {
		return nil, 0, errs
	}

	var filter repositories.AttemptFilter
	switch caller.Role {
	case models.RoleAdmin:
	case models.RoleTeacher:
		// Teachers see their own attempts when asking with mine=true, otherwise attempts on their assessments.
		if params.Filters["mine"] == "true" {
			filter.UserID = &caller.UserID
		} else {
			filter.AssessmentOwner = &caller.UserID
		}
	default:
		filter.UserID = &caller.UserID
	}
	delete(params.Filters, "mine")

	return s.repo.Attempt().List(ctx, params, filter)
}

// ===== SWEEPER =====

func (s *attemptService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.repo.Attempt().ListOverdue(ctx, now.Add(-s.gracePeriod), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue attempts: %w", err)
	}

	closed := 0
	for _, candidate := range overdue {
		var attempt *models.AssessmentAttempt
		var assessment *models.Assessment
		err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
			var err error
			attempt, err = tx.Attempt().GetByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if attempt.Status != models.AttemptInProgress {
				attempt = nil
				return nil
			}
			assessment, err = tx.Assessment().GetWithDetails(ctx, attempt.AssessmentID)
			if err != nil {
				return err
			}
			return s.finalize(ctx, tx, attempt, assessment, storedAnswers(attempt), models.AttemptTimedOut, now)
		})
		if err != nil {
			s.logger.Error("Failed to expire attempt", "error", err, "attempt_id", candidate.ID)
			continue
		}
		if attempt == nil {
			continue
		}
		closed++
		s.publishSubmitted(ctx, attempt, assessment)
	}

	if closed > 0 {
		s.logger.Info("Expired overdue attempts", "count", closed)
	}
	return closed, nil
}
