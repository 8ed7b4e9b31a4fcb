package review

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-portal/internal/client/notice"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

func f(v float64) *float64 { return &v }

type fakeAPI struct {
	marks      []models.MarkAnswerRequest
	markErr    error
	publishErr error
	publishes  int
}

func (a *fakeAPI) GetResult(ctx context.Context, attemptID uint) (*models.AttemptResult, error) {
	r := gradedResult()
	return &r, nil
}

func (a *fakeAPI) MarkAnswer(ctx context.Context, attemptID, answerID uint, req *models.MarkAnswerRequest) (*models.QuestionResult, error) {
	if a.markErr != nil {
		return nil, a.markErr
	}
	a.marks = append(a.marks, *req)
	return &models.QuestionResult{AnswerID: answerID, UserMarks: req.UserMarks, Comment: req.Comment}, nil
}

func (a *fakeAPI) PublishResult(ctx context.Context, attemptID uint) (*models.AssessmentAttempt, error) {
	a.publishes++
	if a.publishErr != nil {
		return nil, a.publishErr
	}
	return &models.AssessmentAttempt{ID: attemptID, IsPublished: true}, nil
}

func gradedResult() models.AttemptResult {
	return models.AttemptResult{
		AttemptID:    3,
		TotalMarks:   20,
		RequiredMark: true,
		CanMark:      true,
		Score:        f(8),
		Questions: []models.QuestionResult{
			{
				AnswerID: 100, Type: models.MultipleChoice, Marks: f(8), UserMarks: f(8),
				Options:       []models.OptionView{{ID: 1, Answer: "4"}, {ID: 2, Answer: "5"}},
				UserAnswer:    json.RawMessage(`"1"`),
				CorrectAnswer: json.RawMessage(`"1"`),
			},
			{AnswerID: 101, Type: models.Text, Marks: f(12), UserAnswer: json.RawMessage(`"essay"`)},
		},
	}
}

func TestLoad(t *testing.T) {
	r, err := Load(context.Background(), &fakeAPI{}, 3, models.RoleTeacher, nil)
	require.NoError(t, err)
	assert.Equal(t, 8.0, r.TotalScore())
	assert.True(t, r.CanMark())
}

func TestCanMark(t *testing.T) {
	tests := []struct {
		name   string
		role   models.UserRole
		mutate func(*models.AttemptResult)
		want   bool
	}{
		{"owner teacher", models.RoleTeacher, nil, true},
		{"admin", models.RoleAdmin, nil, true},
		{"student", models.RoleStudent, nil, false},
		{"not owner", models.RoleTeacher, func(r *models.AttemptResult) { r.CanMark = false }, false},
		{"survey", models.RoleTeacher, func(r *models.AttemptResult) { r.RequiredMark = false }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := gradedResult()
			if tt.mutate != nil {
				tt.mutate(&res)
			}
			assert.Equal(t, tt.want, New(&fakeAPI{}, res, tt.role, nil).CanMark())
		})
	}
}

func TestScoreEdit_ClampAndDelta(t *testing.T) {
	api := &fakeAPI{}
	r := New(api, gradedResult(), models.RoleTeacher, nil)

	require.NoError(t, r.BeginScoreEdit(101))
	got, err := r.SetDraftScore(101, 50)
	require.NoError(t, err)
	assert.Equal(t, 12.0, got, "clamped to question marks")
	got, err = r.SetDraftScore(101, -1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	_, err = r.SetDraftScore(101, 7)
	require.NoError(t, err)
	require.NoError(t, r.SaveScore(context.Background(), 101))
	assert.Equal(t, 15.0, r.TotalScore())
	assert.False(t, r.EditingScore(101))

	// Saving the same score again changes nothing.
	require.NoError(t, r.BeginScoreEdit(101))
	require.NoError(t, r.SaveScore(context.Background(), 101))
	assert.Equal(t, 15.0, r.TotalScore())

	// 7 -> 10 moves the total by exactly 3.
	require.NoError(t, r.BeginScoreEdit(101))
	_, err = r.SetDraftScore(101, 10)
	require.NoError(t, err)
	require.NoError(t, r.SaveScore(context.Background(), 101))
	assert.Equal(t, 18.0, r.TotalScore())
	require.Len(t, api.marks, 3)
	assert.Nil(t, api.marks[0].Comment)
}

func TestScoreEdit_DeltaIgnoresOtherQuestions(t *testing.T) {
	res := gradedResult()
	// A stale server score that does not match the sum of marks.
	res.Score = f(1)
	r := New(&fakeAPI{}, res, models.RoleAdmin, nil)

	require.NoError(t, r.BeginScoreEdit(101))
	_, _ = r.SetDraftScore(101, 4)
	require.NoError(t, r.SaveScore(context.Background(), 101))
	assert.Equal(t, 5.0, r.TotalScore())
}

func TestScoreEdit_Guards(t *testing.T) {
	r := New(&fakeAPI{}, gradedResult(), models.RoleTeacher, nil)
	assert.ErrorIs(t, r.BeginScoreEdit(100), ErrNotMarkable)
	assert.ErrorIs(t, r.BeginScoreEdit(999), ErrUnknownAnswer)
	_, err := r.SetDraftScore(101, 3)
	assert.ErrorIs(t, err, ErrNotEditing)

	student := New(&fakeAPI{}, gradedResult(), models.RoleStudent, nil)
	assert.ErrorIs(t, student.BeginScoreEdit(101), ErrNotAllowed)
	assert.ErrorIs(t, student.BeginCommentEdit(101), ErrNotAllowed)
}

func TestScoreEdit_FailureKeepsEditAndNotifies(t *testing.T) {
	api := &fakeAPI{markErr: errors.New("boom")}
	notices := notice.New()
	r := New(api, gradedResult(), models.RoleTeacher, notices)

	require.NoError(t, r.BeginScoreEdit(101))
	_, _ = r.SetDraftScore(101, 5)
	assert.Error(t, r.SaveScore(context.Background(), 101))
	assert.True(t, r.EditingScore(101))
	assert.Equal(t, 8.0, r.TotalScore())

	msg, ok := notices.Current()
	require.True(t, ok)
	assert.Equal(t, "Failed to save the score", msg.Text)

	r.CancelScoreEdit(101)
	assert.False(t, r.EditingScore(101))
}

func TestCommentEdit(t *testing.T) {
	api := &fakeAPI{}
	r := New(api, gradedResult(), models.RoleTeacher, nil)

	require.NoError(t, r.BeginCommentEdit(100))
	require.NoError(t, r.BeginScoreEdit(101))
	require.NoError(t, r.SetDraftComment(100, "Well done"))
	require.NoError(t, r.SaveComment(context.Background(), 100))

	assert.True(t, r.EditingScore(101), "comment and score edits are independent")
	assert.False(t, r.EditingComment(100))
	require.NotNil(t, r.Questions()[0].Comment)
	assert.Equal(t, "Well done", *r.Questions()[0].Comment)
	require.Len(t, api.marks, 1)
	assert.Nil(t, api.marks[0].UserMarks)

	require.NoError(t, r.BeginCommentEdit(100))
	require.NoError(t, r.SetDraftComment(100, "changed"))
	r.CancelCommentEdit(100)
	assert.Equal(t, "Well done", *r.Questions()[0].Comment)
}

func TestPublish(t *testing.T) {
	api := &fakeAPI{}
	notices := notice.New()
	r := New(api, gradedResult(), models.RoleTeacher, notices)

	assert.ErrorIs(t, r.Publish(context.Background()), ErrUnmarkedText)
	assert.Zero(t, api.publishes)
	assert.Equal(t, []uint{101}, r.Unmarked())
	msg, _ := notices.Current()
	assert.Equal(t, ErrUnmarkedText.Error(), msg.Text)

	require.NoError(t, r.BeginScoreEdit(101))
	_, _ = r.SetDraftScore(101, 0)
	require.NoError(t, r.SaveScore(context.Background(), 101))

	require.NoError(t, r.Publish(context.Background()))
	assert.True(t, r.Published())
	msg, _ = notices.Current()
	assert.Equal(t, notice.Success, msg.Level)

	// Publish again after a change.
	require.NoError(t, r.Publish(context.Background()))
	assert.Equal(t, 2, api.publishes)
}

func TestPublish_FailureIsSurfaced(t *testing.T) {
	res := gradedResult()
	res.Questions[1].UserMarks = f(6)
	api := &fakeAPI{publishErr: errors.New("down")}
	notices := notice.New()
	r := New(api, res, models.RoleTeacher, notices)

	assert.Error(t, r.Publish(context.Background()))
	assert.False(t, r.Published())
	msg, _ := notices.Current()
	assert.Equal(t, notice.Error, msg.Level)
}

func TestBand(t *testing.T) {
	tests := []struct {
		score float64
		want  Band
	}{
		{0, Low},
		{9.99, Low},
		{10, Medium},
		{14.99, Medium},
		{15, High},
		{20, High},
	}
	for _, tt := range tests {
		res := gradedResult()
		res.Score = f(tt.score)
		assert.Equal(t, tt.want, New(&fakeAPI{}, res, models.RoleStudent, nil).Band(), "score %v", tt.score)
	}
}

func TestSurveyModeIsNeutral(t *testing.T) {
	res := gradedResult()
	res.RequiredMark = false
	r := New(&fakeAPI{}, res, models.RoleTeacher, nil)

	assert.True(t, r.Survey())
	for _, q := range r.Questions() {
		assert.Nil(t, q.CorrectAnswer)
		assert.Nil(t, q.Marks)
		assert.Nil(t, q.UserMarks)
	}
	opts, err := r.Options(100)
	require.NoError(t, err)
	assert.True(t, opts[0].Selected)
	assert.False(t, opts[0].Correct)
}

func TestOptions(t *testing.T) {
	r := New(&fakeAPI{}, gradedResult(), models.RoleStudent, nil)
	opts, err := r.Options(100)
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.Equal(t, OptionMark{ID: 1, Answer: "4", Selected: true, Correct: true}, opts[0])
	assert.Equal(t, OptionMark{ID: 2, Answer: "5"}, opts[1])
}
