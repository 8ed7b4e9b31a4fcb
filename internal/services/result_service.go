package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/quiz-portal/internal/events"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

type resultService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	now            func() time.Time
}

func NewResultService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) ResultService {
	return &resultService{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
		now:            time.Now,
	}
}

func (s *resultService) Get(ctx context.Context, attemptID uint, caller Caller) (*models.AttemptResult, error) {
	attempt, assessment, err := s.load(ctx, s.repo, attemptID)
	if err != nil {
		return nil, err
	}

	isOwner := caller.Owns(assessment.CreatedBy)
	if !isOwner {
		if attempt.UserID != caller.UserID {
			return nil, NewPermissionError(caller.UserID, attemptID, "attempt", "view result", "not the taker or owner")
		}
		if !attempt.IsFinished() {
			return nil, ErrAttemptNotSubmitted
		}
		if assessment.ResultDisplayMode == models.ResultDisplayAfterPublish && !attempt.IsPublished {
			return nil, ErrResultNotAvailable
		}
	}

	return buildResult(attempt, assessment, caller), nil
}

func (s *resultService) MarkAnswer(ctx context.Context, attemptID, answerID uint, req *models.MarkAnswerRequest, caller Caller) (*models.QuestionResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var attempt *models.AssessmentAttempt
	var assessment *models.Assessment
	var answer *models.AttemptAnswer
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		attempt, assessment, err = s.loadForMarking(ctx, tx, attemptID, caller, "mark")
		if err != nil {
			return err
		}

		answer, err = tx.Attempt().GetAnswer(ctx, attemptID, answerID)
		if err != nil {
			return mapRepoError(err, ErrAnswerNotFound)
		}
		aq := findAssessmentQuestion(assessment, answer.QuestionID)
		if aq == nil {
			return ErrAnswerNotFound
		}

		if req.UserMarks != nil {
			clamped := validator.ClampMarks(*req.UserMarks, aq.Marks)
			answer.UserMarks = &clamped
		}
		if req.Comment != nil {
			answer.Comment = req.Comment
		}
		now := s.now()
		answer.MarkedBy = &caller.UserID
		answer.MarkedAt = &now

		if err := tx.Attempt().UpdateAnswer(ctx, answer); err != nil {
			return fmt.Errorf("failed to save marks: %w", err)
		}

		for i := range attempt.Answers {
			if attempt.Answers[i].ID == answer.ID {
				attempt.Answers[i].UserMarks = answer.UserMarks
				attempt.Answers[i].Comment = answer.Comment
			}
		}
		attempt.Score = models.ScoreOf(attempt.Answers)
		return tx.Attempt().Update(ctx, attempt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Answer marked", "attempt_id", attemptID, "answer_id", answerID, "marked_by", caller.UserID)
	s.publish(ctx, events.NewEvent(events.AnswerMarked, events.AnswerMarkedData{
		AttemptID: attemptID,
		AnswerID:  answerID,
		MarkedBy:  caller.UserID,
		UserMarks: answer.UserMarks,
		Score:     attempt.Score,
	}))

	result := buildResult(attempt, assessment, caller)
	for i := range result.Questions {
		if result.Questions[i].AnswerID == answerID {
			return &result.Questions[i], nil
		}
	}
	return nil, ErrAnswerNotFound
}

// Publish releases the result to the taker. Publishing again refreshes PublishedAt.
func (s *resultService) Publish(ctx context.Context, attemptID uint, caller Caller) (*models.AssessmentAttempt, error) {
	var attempt *models.AssessmentAttempt
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		attempt, _, err = s.loadForMarking(ctx, tx, attemptID, caller, "publish")
		if err != nil {
			return err
		}

		for _, a := range attempt.Answers {
			if a.Question != nil && a.Question.Type.RequiresManualMarking() && a.UserMarks == nil {
				return ErrUnmarkedAnswers
			}
		}

		now := s.now()
		attempt.IsPublished = true
		attempt.PublishedAt = &now
		return tx.Attempt().Update(ctx, attempt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Result published", "attempt_id", attemptID, "published_by", caller.UserID)
	s.publish(ctx, events.NewEvent(events.ResultPublished, events.ResultPublishedData{
		AttemptID:    attempt.ID,
		AssessmentID: attempt.AssessmentID,
		UserID:       attempt.UserID,
		Score:        attempt.Score,
		PublishedBy:  caller.UserID,
	}))

	attempt.Answers = nil
	attempt.Assessment = nil
	return attempt, nil
}

func (s *resultService) load(ctx context.Context, repo repositories.Repository, attemptID uint) (*models.AssessmentAttempt, *models.Assessment, error) {
	attempt, err := repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		return nil, nil, mapRepoError(err, ErrAttemptNotFound)
	}
	assessment, err := repo.Assessment().GetWithDetails(ctx, attempt.AssessmentID)
	if err != nil {
		return nil, nil, mapRepoError(err, ErrAssessmentNotFound)
	}
	return attempt, assessment, nil
}

// loadForMarking enforces that only the assessment owner marks finished, graded attempts.
func (s *resultService) loadForMarking(ctx context.Context, repo repositories.Repository, attemptID uint, caller Caller, action string) (*models.AssessmentAttempt, *models.Assessment, error) {
	attempt, assessment, err := s.load(ctx, repo, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if !caller.Owns(assessment.CreatedBy) || !caller.Role.CanAuthor() {
		return nil, nil, NewPermissionError(caller.UserID, attemptID, "attempt", action, "not the assessment owner")
	}
	if !assessment.RequiredMark {
		return nil, nil, ErrMarkingNotAllowed
	}
	if !attempt.IsFinished() {
		return nil, nil, ErrAttemptNotSubmitted
	}
	return attempt, assessment, nil
}

func (s *resultService) publish(ctx context.Context, event events.Event) {
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "error", err, "type", event.Type)
	}
}

// buildResult shapes an attempt for the caller. Owners see everything; takers see
// what the display mode allows; surveys never expose marks or correctness.
func buildResult(attempt *models.AssessmentAttempt, assessment *models.Assessment, caller Caller) *models.AttemptResult {
	isOwner := caller.Owns(assessment.CreatedBy)
	graded := assessment.RequiredMark
	showDetail := graded && (isOwner || assessment.ResultDisplayMode != models.ResultDisplayScoreOnly)

	result := &models.AttemptResult{
		AttemptID:         attempt.ID,
		UserID:            attempt.UserID,
		AssessmentID:      assessment.ID,
		AssessmentName:    assessment.Name,
		TotalMarks:        assessment.TotalMarks,
		PassMarks:         assessment.PassMarks,
		RequiredMark:      graded,
		ResultDisplayMode: assessment.ResultDisplayMode,
		Status:            attempt.Status,
		IsPublished:       attempt.IsPublished,
		SubmittedAt:       attempt.SubmittedAt,
		CanMark:           graded && isOwner && caller.Role.CanAuthor() && attempt.IsFinished(),
	}
	if graded {
		score := attempt.Score
		result.Score = &score
	}

	answers := make(map[uint]models.AttemptAnswer, len(attempt.Answers))
	for _, a := range attempt.Answers {
		answers[a.QuestionID] = a
	}

	result.Questions = make([]models.QuestionResult, 0, len(assessment.Questions))
	for _, aq := range assessment.Questions {
		q := aq.Question
		if q == nil {
			continue
		}
		answer, ok := answers[aq.QuestionID]
		if !ok {
			continue
		}

		qr := models.QuestionResult{
			AnswerID:   answer.ID,
			QuestionID: q.ID,
			Content:    q.Content,
			Type:       q.Type,
			UserAnswer: json.RawMessage(answer.Answer),
			Comment:    answer.Comment,
		}
		if q.Type.IsChoice() {
			qr.Options = optionViews(q.Options)
		}
		if showDetail {
			marks := aq.Marks
			qr.Marks = &marks
			qr.UserMarks = answer.UserMarks
			qr.CorrectAnswer = CorrectAnswerOf(q)
			qr.Explanation = q.Explanation
		}
		result.Questions = append(result.Questions, qr)
	}
	return result
}
