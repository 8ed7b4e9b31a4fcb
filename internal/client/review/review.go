// Package review shows a submitted attempt and lets the assessment owner
// mark free-text answers, comment on answers and publish the result.
// A Review is not safe for concurrent use.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/client/notice"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

var (
	ErrNotAllowed    = errors.New("marking is not allowed for this result")
	ErrNotEditing    = errors.New("no edit in progress for this answer")
	ErrNotMarkable   = errors.New("only text answers are marked by hand")
	ErrUnknownAnswer = errors.New("answer not found in this result")
	// ErrUnmarkedText blocks publishing while a text answer has no score.
	ErrUnmarkedText = errors.New("all text questions must be marked before publishing")
)

type Band string

const (
	Low    Band = "Low"
	Medium Band = "Medium"
	High   Band = "High"
)

type API interface {
	GetResult(ctx context.Context, attemptID uint) (*models.AttemptResult, error)
	MarkAnswer(ctx context.Context, attemptID, answerID uint, req *models.MarkAnswerRequest) (*models.QuestionResult, error)
	PublishResult(ctx context.Context, attemptID uint) (*models.AssessmentAttempt, error)
}

type edits struct {
	score          *float64
	editingScore   bool
	comment        string
	editingComment bool
}

type Review struct {
	api     API
	notices *notice.Store
	role    models.UserRole

	result    models.AttemptResult
	total     float64
	published bool
	edits     map[uint]*edits
}

// Load fetches the result of attemptID as seen by a viewer with role.
func Load(ctx context.Context, api API, attemptID uint, role models.UserRole, notices *notice.Store) (*Review, error) {
	result, err := api.GetResult(ctx, attemptID)
	if err != nil {
		notices.Error(client.Message(err, "Failed to load the result"))
		return nil, err
	}
	return New(api, *result, role, notices), nil
}

func New(api API, result models.AttemptResult, role models.UserRole, notices *notice.Store) *Review {
	r := &Review{
		api:       api,
		notices:   notices,
		role:      role,
		result:    result,
		published: result.IsPublished,
		edits:     map[uint]*edits{},
	}
	if result.Score != nil {
		r.total = *result.Score
	} else {
		for _, q := range result.Questions {
			if q.UserMarks != nil {
				r.total += *q.UserMarks
			}
		}
	}
	return r
}

// Survey reports an ungraded assessment: no correctness, marks or marking.
func (r *Review) Survey() bool {
	return !r.result.RequiredMark
}

// CanMark is true only for an authoring owner of a graded assessment.
func (r *Review) CanMark() bool {
	return r.result.CanMark && r.result.RequiredMark && r.role.CanAuthor()
}

func (r *Review) Result() models.AttemptResult {
	return r.result
}

// Questions returns the per-question breakdown. In survey mode correctness
// and marks are stripped.
func (r *Review) Questions() []models.QuestionResult {
	out := make([]models.QuestionResult, len(r.result.Questions))
	copy(out, r.result.Questions)
	if r.Survey() {
		for i := range out {
			out[i].CorrectAnswer = nil
			out[i].Marks = nil
			out[i].UserMarks = nil
		}
	}
	return out
}

func (r *Review) TotalScore() float64 {
	return r.total
}

func (r *Review) Published() bool {
	return r.published
}

// Band grades the total: below 50% Low, below 75% Medium, otherwise High.
func (r *Review) Band() Band {
	if r.result.TotalMarks <= 0 {
		return Low
	}
	pct := r.total / r.result.TotalMarks * 100
	switch {
	case pct < 50:
		return Low
	case pct < 75:
		return Medium
	default:
		return High
	}
}

type OptionMark struct {
	ID       uint
	Answer   string
	Selected bool
	Correct  bool
}

// Options pairs each option of a choice question with whether the taker
// picked it and whether it is correct.
func (r *Review) Options(answerID uint) ([]OptionMark, error) {
	i, err := r.index(answerID)
	if err != nil {
		return nil, err
	}
	q := r.result.Questions[i]
	selected := decodeIDs(q.UserAnswer)
	var correct map[uint]bool
	if !r.Survey() {
		correct = decodeIDs(q.CorrectAnswer)
	}
	out := make([]OptionMark, 0, len(q.Options))
	for _, o := range q.Options {
		out = append(out, OptionMark{ID: o.ID, Answer: o.Answer, Selected: selected[o.ID], Correct: correct[o.ID]})
	}
	return out, nil
}

func decodeIDs(raw json.RawMessage) map[uint]bool {
	ids := map[uint]bool{}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		list = []json.RawMessage{raw}
	}
	for _, item := range list {
		var s string
		if json.Unmarshal(item, &s) != nil {
			s = strings.TrimSpace(string(item))
		}
		if id, err := strconv.ParseUint(s, 10, 64); err == nil {
			ids[uint(id)] = true
		}
	}
	return ids
}

// ===== SCORE EDITING =====

func (r *Review) BeginScoreEdit(answerID uint) error {
	i, err := r.markable(answerID)
	if err != nil {
		return err
	}
	e := r.edit(answerID)
	e.editingScore = true
	e.score = r.result.Questions[i].UserMarks
	return nil
}

// SetDraftScore stores v clamped to [0, question marks] and returns the stored value.
func (r *Review) SetDraftScore(answerID uint, v float64) (float64, error) {
	e := r.edits[answerID]
	if e == nil || !e.editingScore {
		return 0, ErrNotEditing
	}
	i, err := r.index(answerID)
	if err != nil {
		return 0, err
	}
	var max float64
	if m := r.result.Questions[i].Marks; m != nil {
		max = *m
	}
	clamped := validator.ClampMarks(v, max)
	e.score = &clamped
	return clamped, nil
}

// SaveScore patches the draft score and moves the total by the difference
// from the previous score.
func (r *Review) SaveScore(ctx context.Context, answerID uint) error {
	e := r.edits[answerID]
	if e == nil || !e.editingScore {
		return ErrNotEditing
	}
	i, err := r.index(answerID)
	if err != nil {
		return err
	}
	if e.score == nil {
		r.CancelScoreEdit(answerID)
		return nil
	}

	draft := *e.score
	updated, err := r.api.MarkAnswer(ctx, r.result.AttemptID, answerID, &models.MarkAnswerRequest{UserMarks: &draft})
	if err != nil {
		r.notices.Error(client.Message(err, "Failed to save the score"))
		return fmt.Errorf("mark answer %d: %w", answerID, err)
	}

	saved := draft
	if updated != nil && updated.UserMarks != nil {
		saved = *updated.UserMarks
	}
	var previous float64
	if p := r.result.Questions[i].UserMarks; p != nil {
		previous = *p
	}
	r.total += saved - previous
	r.result.Questions[i].UserMarks = &saved
	e.editingScore = false
	e.score = nil
	return nil
}

func (r *Review) CancelScoreEdit(answerID uint) {
	if e := r.edits[answerID]; e != nil {
		e.editingScore = false
		e.score = nil
	}
}

func (r *Review) EditingScore(answerID uint) bool {
	e := r.edits[answerID]
	return e != nil && e.editingScore
}

// ===== COMMENT EDITING =====

func (r *Review) BeginCommentEdit(answerID uint) error {
	if !r.CanMark() {
		return ErrNotAllowed
	}
	i, err := r.index(answerID)
	if err != nil {
		return err
	}
	e := r.edit(answerID)
	e.editingComment = true
	e.comment = ""
	if c := r.result.Questions[i].Comment; c != nil {
		e.comment = *c
	}
	return nil
}

func (r *Review) SetDraftComment(answerID uint, text string) error {
	e := r.edits[answerID]
	if e == nil || !e.editingComment {
		return ErrNotEditing
	}
	e.comment = text
	return nil
}

func (r *Review) SaveComment(ctx context.Context, answerID uint) error {
	e := r.edits[answerID]
	if e == nil || !e.editingComment {
		return ErrNotEditing
	}
	i, err := r.index(answerID)
	if err != nil {
		return err
	}

	comment := e.comment
	updated, err := r.api.MarkAnswer(ctx, r.result.AttemptID, answerID, &models.MarkAnswerRequest{Comment: &comment})
	if err != nil {
		r.notices.Error(client.Message(err, "Failed to save the comment"))
		return fmt.Errorf("comment answer %d: %w", answerID, err)
	}
	if updated != nil && updated.Comment != nil {
		comment = *updated.Comment
	}
	r.result.Questions[i].Comment = &comment
	e.editingComment = false
	return nil
}

func (r *Review) CancelCommentEdit(answerID uint) {
	if e := r.edits[answerID]; e != nil {
		e.editingComment = false
	}
}

func (r *Review) EditingComment(answerID uint) bool {
	e := r.edits[answerID]
	return e != nil && e.editingComment
}

// ===== PUBLISH =====

// Unmarked lists the answer ids of text questions that still have no score.
func (r *Review) Unmarked() []uint {
	var ids []uint
	for _, q := range r.result.Questions {
		if q.Type.RequiresManualMarking() && q.UserMarks == nil {
			ids = append(ids, q.AnswerID)
		}
	}
	return ids
}

// Publish releases the result to the taker. It can be repeated after more marking.
func (r *Review) Publish(ctx context.Context) error {
	if !r.CanMark() {
		return ErrNotAllowed
	}
	if len(r.Unmarked()) > 0 {
		r.notices.Error(ErrUnmarkedText.Error())
		return ErrUnmarkedText
	}
	if _, err := r.api.PublishResult(ctx, r.result.AttemptID); err != nil {
		r.notices.Error(client.Message(err, "Failed to publish the result"))
		return fmt.Errorf("publish attempt %d: %w", r.result.AttemptID, err)
	}
	r.published = true
	r.result.IsPublished = true
	r.notices.Success("Result published")
	return nil
}

func (r *Review) index(answerID uint) (int, error) {
	for i, q := range r.result.Questions {
		if q.AnswerID == answerID {
			return i, nil
		}
	}
	return -1, ErrUnknownAnswer
}

func (r *Review) markable(answerID uint) (int, error) {
	if !r.CanMark() {
		return -1, ErrNotAllowed
	}
	i, err := r.index(answerID)
	if err != nil {
		return -1, err
	}
	if !r.result.Questions[i].Type.RequiresManualMarking() {
		return -1, ErrNotMarkable
	}
	return i, nil
}

func (r *Review) edit(answerID uint) *edits {
	e := r.edits[answerID]
	if e == nil {
		e = &edits{}
		r.edits[answerID] = e
	}
	return e
}
