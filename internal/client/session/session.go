// Package session runs one attempt at an assessment: answer capture per
// question type, navigation with draft saves, progress indicators, the
// countdown and submit.
// A Session is not safe for concurrent use.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/client/notice"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

const BlankSeparator = "|"

var (
	ErrDeclined      = errors.New("attempt not started")
	ErrWrongType     = errors.New("operation does not apply to this question type")
	ErrUnknownOption = errors.New("option does not belong to this question")
	ErrOutOfRange    = errors.New("question index out of range")
	ErrSubmitted     = errors.New("attempt already submitted")
)

type API interface {
	StartAttempt(ctx context.Context, assessmentID uint) (*models.AttemptSession, error)
	SaveAnswer(ctx context.Context, attemptID, questionID uint, answer json.RawMessage) error
	SubmitAttempt(ctx context.Context, req *models.SubmitAttemptRequest) (*models.AttemptResult, error)
}

// Entry describes how the taker arrived. Internal navigation starts the
// attempt straight away; anything else asks Confirm first.
type Entry struct {
	AssessmentID uint
	Internal     bool
	Confirm      func() bool
}

type answer struct {
	option string
	set    map[uint]struct{}
	text   string
}

type Indicator struct {
	Index      int
	QuestionID uint
	Visited    bool
	Answered   bool
	Current    bool
}

type Session struct {
	api     API
	notices *notice.Store

	data      *models.AttemptSession
	current   int
	visited   map[int]bool
	answers   map[uint]*answer
	// saved holds the draft key of what the server last stored per question.
	saved     map[uint]string
	submitted *models.AttemptResult
}

// Start creates the attempt (or resumes the open one). A server refusal is
// posted to notices and returned.
func Start(ctx context.Context, api API, entry Entry, notices *notice.Store) (*Session, error) {
	if !entry.Internal && (entry.Confirm == nil || !entry.Confirm()) {
		return nil, ErrDeclined
	}

	data, err := api.StartAttempt(ctx, entry.AssessmentID)
	if err != nil {
		notices.Error(client.Message(err, "Unable to start the assessment"))
		return nil, err
	}

	s := &Session{
		api:     api,
		notices: notices,
		data:    data,
		visited: map[int]bool{},
		answers: map[uint]*answer{},
		saved:   map[uint]string{},
	}
	slices.SortStableFunc(s.data.Questions, func(a, b models.AttemptQuestion) int { return a.Order - b.Order })
	for _, q := range s.data.Questions {
		if a := restore(q); a != nil {
			s.answers[q.QuestionID] = a
			s.saved[q.QuestionID] = draftKey(encode(q, a))
		}
	}
	if len(s.data.Questions) > 0 {
		s.visited[0] = true
	}
	return s, nil
}

// restore seeds an answer saved on the server when an attempt is resumed.
func restore(q models.AttemptQuestion) *answer {
	raw := strings.TrimSpace(string(q.Answer))
	if raw == "" || raw == "null" {
		return nil
	}
	switch q.Type {
	case models.MultipleAnswer:
		var ids []json.Number
		if err := json.Unmarshal(q.Answer, &ids); err != nil {
			var strs []string
			if json.Unmarshal(q.Answer, &strs) != nil {
				return nil
			}
			for _, s := range strs {
				ids = append(ids, json.Number(s))
			}
		}
		a := &answer{set: map[uint]struct{}{}}
		for _, n := range ids {
			if id, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
				a.set[uint(id)] = struct{}{}
			}
		}
		return a
	case models.MultipleChoice, models.TrueFalse:
		var s string
		if err := json.Unmarshal(q.Answer, &s); err == nil {
			return &answer{option: s}
		}
		var n json.Number
		if err := json.Unmarshal(q.Answer, &n); err == nil {
			return &answer{option: n.String()}
		}
	default:
		var s string
		if err := json.Unmarshal(q.Answer, &s); err == nil {
			return &answer{text: s}
		}
	}
	return nil
}

func (s *Session) AttemptID() uint {
	return s.data.Attempt.ID
}

func (s *Session) AssessmentName() string {
	return s.data.AssessmentName
}

func (s *Session) Len() int {
	return len(s.data.Questions)
}

func (s *Session) Index() int {
	return s.current
}

func (s *Session) Current() (models.AttemptQuestion, bool) {
	if s.current < 0 || s.current >= len(s.data.Questions) {
		return models.AttemptQuestion{}, false
	}
	return s.data.Questions[s.current], true
}

func (s *Session) SelectOption(optionID uint) error {
	q, a, err := s.answerFor(models.MultipleChoice, models.TrueFalse)
	if err != nil {
		return err
	}
	if !hasOption(q, optionID) {
		return ErrUnknownOption
	}
	a.option = strconv.FormatUint(uint64(optionID), 10)
	return nil
}

// ToggleOption adds optionID to a multiple-answer selection, or removes it when present.
func (s *Session) ToggleOption(optionID uint) error {
	q, a, err := s.answerFor(models.MultipleAnswer)
	if err != nil {
		return err
	}
	if !hasOption(q, optionID) {
		return ErrUnknownOption
	}
	if a.set == nil {
		a.set = map[uint]struct{}{}
	}
	if _, ok := a.set[optionID]; ok {
		delete(a.set, optionID)
	} else {
		a.set[optionID] = struct{}{}
	}
	return nil
}

func (s *Session) SetText(text string) error {
	_, a, err := s.answerFor(models.FillIn, models.Text)
	if err != nil {
		return err
	}
	a.text = text
	return nil
}

// SetBlanks stores one value per blank of a fill-in question.
func (s *Session) SetBlanks(values []string) error {
	_, a, err := s.answerFor(models.FillIn)
	if err != nil {
		return err
	}
	trimmed := make([]string, len(values))
	for i, v := range values {
		trimmed[i] = strings.TrimSpace(v)
	}
	a.text = strings.Join(trimmed, BlankSeparator)
	return nil
}

func (s *Session) answerFor(types ...models.QuestionType) (models.AttemptQuestion, *answer, error) {
	if s.submitted != nil {
		return models.AttemptQuestion{}, nil, ErrSubmitted
	}
	q, ok := s.Current()
	if !ok {
		return q, nil, ErrOutOfRange
	}
	if !slices.Contains(types, q.Type) {
		return q, nil, ErrWrongType
	}
	a := s.answers[q.QuestionID]
	if a == nil {
		a = &answer{}
		if q.Type == models.MultipleAnswer {
			a.set = map[uint]struct{}{}
		}
		s.answers[q.QuestionID] = a
	}
	return q, a, nil
}

func hasOption(q models.AttemptQuestion, id uint) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Next records an empty selection for an unanswered multiple-answer question
// and moves forward. It stops at the last question.
// Every move saves the question being left; see Save.
func (s *Session) Next(ctx context.Context) {
	if q, ok := s.Current(); ok && q.Type == models.MultipleAnswer {
		if _, seen := s.answers[q.QuestionID]; !seen {
			s.answers[q.QuestionID] = &answer{set: map[uint]struct{}{}}
		}
	}
	if s.current < len(s.data.Questions)-1 {
		s.move(ctx, s.current+1)
	}
}

func (s *Session) Previous(ctx context.Context) {
	if s.current > 0 {
		s.move(ctx, s.current-1)
	}
}

func (s *Session) Jump(ctx context.Context, i int) error {
	if i < 0 || i >= len(s.data.Questions) {
		return ErrOutOfRange
	}
	s.move(ctx, i)
	return nil
}

// move never fails: a draft that could not be saved stays local and is
// retried on the next save of that question.
func (s *Session) move(ctx context.Context, i int) {
	_ = s.Save(ctx)
	s.current = i
	s.visited[i] = true
}

// Save stores the current answer on the server when it differs from what was
// last stored there. Failures are posted to notices as a warning and returned.
func (s *Session) Save(ctx context.Context) error {
	if s.submitted != nil {
		return nil
	}
	q, ok := s.Current()
	if !ok {
		return nil
	}
	raw := encode(q, s.answers[q.QuestionID])
	key := draftKey(raw)
	if key == s.saved[q.QuestionID] {
		return nil
	}
	if err := s.api.SaveAnswer(ctx, s.AttemptID(), q.QuestionID, raw); err != nil {
		s.notices.Show(notice.Warning, client.Message(err, "Your answer could not be saved"), 0)
		return fmt.Errorf("save answer to question %d: %w", q.QuestionID, err)
	}
	s.saved[q.QuestionID] = key
	return nil
}

// draftKey folds every spelling of "no answer" to the empty string.
func draftKey(raw json.RawMessage) string {
	switch k := strings.TrimSpace(string(raw)); k {
	case "", "null", `""`, "[]":
		return ""
	default:
		return k
	}
}

func (s *Session) Indicators() []Indicator {
	out := make([]Indicator, 0, len(s.data.Questions))
	for i, q := range s.data.Questions {
		out = append(out, Indicator{
			Index:      i,
			QuestionID: q.QuestionID,
			Visited:    s.visited[i],
			Answered:   s.answered(q),
			Current:    i == s.current,
		})
	}
	return out
}

// answered is false for an empty multiple-answer selection even though the
// question has an entry.
func (s *Session) answered(q models.AttemptQuestion) bool {
	a := s.answers[q.QuestionID]
	if a == nil {
		return false
	}
	switch q.Type {
	case models.MultipleAnswer:
		return len(a.set) > 0
	case models.MultipleChoice, models.TrueFalse:
		return a.option != ""
	default:
		return strings.Trim(a.text, " "+BlankSeparator) != ""
	}
}

// Answers builds the submit payload: one entry per question, null when never answered.
func (s *Session) Answers() []models.SubmittedAnswer {
	out := make([]models.SubmittedAnswer, 0, len(s.data.Questions))
	for _, q := range s.data.Questions {
		out = append(out, models.SubmittedAnswer{QuestionID: q.QuestionID, Answer: encode(q, s.answers[q.QuestionID])})
	}
	return out
}

func encode(q models.AttemptQuestion, a *answer) json.RawMessage {
	if a == nil {
		return nil
	}
	var v any
	switch q.Type {
	case models.MultipleAnswer:
		ids := make([]uint, 0, len(a.set))
		for id := range a.set {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		v = ids
	case models.MultipleChoice, models.TrueFalse:
		v = a.option
	default:
		v = a.text
	}
	raw, _ := json.Marshal(v)
	return raw
}

// Submit posts every answer in one call. Failures go to the notice banner
// and are returned; the session stays open so the taker can retry.
func (s *Session) Submit(ctx context.Context) (*models.AttemptResult, error) {
	if s.submitted != nil {
		return nil, ErrSubmitted
	}
	result, err := s.api.SubmitAttempt(ctx, &models.SubmitAttemptRequest{
		AttemptID: s.AttemptID(),
		Answers:   s.Answers(),
	})
	if err != nil {
		s.notices.Error(client.Message(err, "Failed to submit the assessment"))
		return nil, fmt.Errorf("submit attempt %d: %w", s.AttemptID(), err)
	}
	s.submitted = result
	return result, nil
}

func (s *Session) Submitted() bool {
	return s.submitted != nil
}

// Deadline is the server deadline, or start plus duration for older attempts.
// It reports false for untimed assessments.
func (s *Session) Deadline() (time.Time, bool) {
	if d := s.data.Attempt.Deadline; d != nil {
		return *d, true
	}
	if s.data.Duration != nil && *s.data.Duration > 0 {
		return s.data.Attempt.StartedAt.Add(time.Duration(*s.data.Duration) * time.Minute), true
	}
	return time.Time{}, false
}

func (s *Session) Remaining(now time.Time) (time.Duration, bool) {
	deadline, ok := s.Deadline()
	if !ok {
		return 0, false
	}
	left := deadline.Sub(now)
	if left < 0 {
		left = 0
	}
	return left, true
}

func (s *Session) Expired(now time.Time) bool {
	left, timed := s.Remaining(now)
	return timed && left == 0
}
