package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/client/notice"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

var ctx = context.Background()

type fakeAPI struct {
	session   *models.AttemptSession
	startErr  error
	submitErr error
	saveErr   error
	starts    int
	saves     map[uint][]string
	submitted *models.SubmitAttemptRequest
}

func (f *fakeAPI) SaveAnswer(ctx context.Context, attemptID, questionID uint, answer json.RawMessage) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saves == nil {
		f.saves = map[uint][]string{}
	}
	f.saves[questionID] = append(f.saves[questionID], string(answer))
	return nil
}

func (f *fakeAPI) StartAttempt(ctx context.Context, assessmentID uint) (*models.AttemptSession, error) {
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.session, nil
}

func (f *fakeAPI) SubmitAttempt(ctx context.Context, req *models.SubmitAttemptRequest) (*models.AttemptResult, error) {
	f.submitted = req
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &models.AttemptResult{AttemptID: req.AttemptID, Status: models.AttemptSubmitted}, nil
}

func opts(ids ...uint) []models.OptionView {
	out := make([]models.OptionView, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.OptionView{ID: id})
	}
	return out
}

func newAPI() *fakeAPI {
	return &fakeAPI{session: &models.AttemptSession{
		Attempt:        models.AssessmentAttempt{ID: 77, StartedAt: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
		AssessmentName: "Algebra",
		Questions: []models.AttemptQuestion{
			{QuestionID: 10, Type: models.MultipleChoice, Order: 0, Options: opts(1, 2, 3)},
			{QuestionID: 11, Type: models.MultipleAnswer, Order: 1, Options: opts(2, 5, 6)},
			{QuestionID: 12, Type: models.FillIn, Order: 2, BlankCount: 2},
			{QuestionID: 13, Type: models.Text, Order: 3},
		},
	}}
}

func start(t *testing.T, api *fakeAPI) *Session {
	t.Helper()
	s, err := Start(context.Background(), api, Entry{AssessmentID: 5, Internal: true}, notice.New())
	require.NoError(t, err)
	return s
}

func TestStart_ConfirmationForDirectEntry(t *testing.T) {
	api := newAPI()

	_, err := Start(context.Background(), api, Entry{AssessmentID: 5, Confirm: func() bool { return false }}, nil)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Zero(t, api.starts)

	s, err := Start(context.Background(), api, Entry{AssessmentID: 5, Confirm: func() bool { return true }}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(77), s.AttemptID())
	assert.Equal(t, 1, api.starts)
}

func TestStart_RefusalIsPostedToNotices(t *testing.T) {
	api := newAPI()
	api.startErr = &client.APIError{Status: http.StatusConflict, Message: "Maximum attempts reached"}
	notices := notice.New()

	_, err := Start(context.Background(), api, Entry{AssessmentID: 5, Internal: true}, notices)
	require.Error(t, err)
	msg, ok := notices.Current()
	require.True(t, ok)
	assert.Equal(t, notice.Error, msg.Level)
	assert.Equal(t, "Maximum attempts reached", msg.Text)
}

func TestAnswerCaptureByType(t *testing.T) {
	s := start(t, newAPI())

	require.NoError(t, s.SelectOption(2))
	assert.ErrorIs(t, s.SelectOption(9), ErrUnknownOption)
	assert.ErrorIs(t, s.ToggleOption(2), ErrWrongType)
	assert.ErrorIs(t, s.SetText("x"), ErrWrongType)

	s.Next(ctx)
	require.NoError(t, s.ToggleOption(2))
	require.NoError(t, s.ToggleOption(5))

	s.Next(ctx)
	require.NoError(t, s.SetBlanks([]string{" x ", "y"}))

	s.Next(ctx)
	require.NoError(t, s.SetText("because"))

	answers := s.Answers()
	require.Len(t, answers, 4)
	assert.JSONEq(t, `"2"`, string(answers[0].Answer))
	assert.JSONEq(t, `[2,5]`, string(answers[1].Answer))
	assert.JSONEq(t, `"x|y"`, string(answers[2].Answer))
	assert.JSONEq(t, `"because"`, string(answers[3].Answer))
}

func TestMultipleAnswer_ToggleOffSerializesRemaining(t *testing.T) {
	s := start(t, newAPI())
	require.NoError(t, s.Jump(ctx, 1))
	require.NoError(t, s.ToggleOption(5))
	require.NoError(t, s.ToggleOption(2))
	require.NoError(t, s.ToggleOption(5))

	assert.JSONEq(t, `[2]`, string(s.Answers()[1].Answer))
}

func TestNext_MaterializesEmptySelectionButNotAnswered(t *testing.T) {
	s := start(t, newAPI())
	require.NoError(t, s.Jump(ctx, 1))
	s.Next(ctx)

	answers := s.Answers()
	assert.JSONEq(t, `[]`, string(answers[1].Answer))
	assert.Nil(t, answers[0].Answer, "never answered stays null")

	ind := s.Indicators()
	assert.True(t, ind[1].Visited)
	assert.False(t, ind[1].Answered)
	assert.True(t, ind[2].Current)
	assert.False(t, ind[3].Visited)
}

func TestNavigationClampsAtBoundaries(t *testing.T) {
	s := start(t, newAPI())

	s.Previous(ctx)
	assert.Equal(t, 0, s.Index())

	for i := 0; i < 10; i++ {
		s.Next(ctx)
	}
	assert.Equal(t, 3, s.Index())

	assert.ErrorIs(t, s.Jump(ctx, 4), ErrOutOfRange)
	assert.ErrorIs(t, s.Jump(ctx, -1), ErrOutOfRange)
	require.NoError(t, s.Jump(ctx, 0))
	assert.Equal(t, 0, s.Index())
}

func TestSubmit(t *testing.T) {
	api := newAPI()
	s := start(t, api)
	require.NoError(t, s.SelectOption(3))

	result, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.AttemptSubmitted, result.Status)
	require.NotNil(t, api.submitted)
	assert.Equal(t, uint(77), api.submitted.AttemptID)
	assert.Len(t, api.submitted.Answers, 4)

	assert.True(t, s.Submitted())
	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitted)
	assert.ErrorIs(t, s.SelectOption(1), ErrSubmitted)
}

func TestSubmit_ErrorGoesToNoticesAndKeepsSession(t *testing.T) {
	api := newAPI()
	notices := notice.New()
	s, err := Start(context.Background(), api, Entry{AssessmentID: 5, Internal: true}, notices)
	require.NoError(t, err)

	api.submitErr = errors.New("network down")
	_, err = s.Submit(context.Background())
	require.Error(t, err)

	msg, ok := notices.Current()
	require.True(t, ok)
	assert.Equal(t, "Failed to submit the assessment", msg.Text)
	assert.False(t, s.Submitted())

	api.submitErr = nil
	_, err = s.Submit(context.Background())
	assert.NoError(t, err)
}

func TestResumeRestoresSavedAnswers(t *testing.T) {
	api := newAPI()
	api.session.Questions[0].Answer = json.RawMessage(`"1"`)
	api.session.Questions[1].Answer = json.RawMessage(`[6,2]`)
	api.session.Questions[3].Answer = json.RawMessage(`"draft"`)
	s := start(t, api)

	ind := s.Indicators()
	assert.True(t, ind[0].Answered)
	assert.True(t, ind[1].Answered)
	assert.False(t, ind[2].Answered)
	assert.True(t, ind[3].Answered)
	assert.JSONEq(t, `[2,6]`, string(s.Answers()[1].Answer))
}

func TestNavigation_SavesChangedAnswers(t *testing.T) {
	api := newAPI()
	api.session.Questions[3].Answer = json.RawMessage(`"draft"`)
	s := start(t, api)

	require.NoError(t, s.SelectOption(2))
	s.Next(ctx)
	assert.Equal(t, []string{`"2"`}, api.saves[10])

	s.Previous(ctx)
	s.Next(ctx)
	assert.Len(t, api.saves[10], 1, "unchanged answer is not saved again")
	assert.Empty(t, api.saves[11], "an untouched selection is not saved")

	require.NoError(t, s.Jump(ctx, 3))
	s.Previous(ctx)
	assert.Empty(t, api.saves[13], "restored answer is already on the server")

	require.NoError(t, s.Jump(ctx, 3))
	require.NoError(t, s.SetText("final"))
	require.NoError(t, s.Jump(ctx, 0))
	assert.Equal(t, []string{`"final"`}, api.saves[13])
}

func TestSave_FailureWarnsAndRetries(t *testing.T) {
	api := newAPI()
	notices := notice.New()
	s, err := Start(ctx, api, Entry{AssessmentID: 5, Internal: true}, notices)
	require.NoError(t, err)

	api.saveErr = &client.APIError{Status: http.StatusGone, Message: "Attempt time has expired"}
	require.NoError(t, s.SelectOption(1))
	s.Next(ctx)

	assert.Equal(t, 1, s.Index(), "navigation continues")
	msg, ok := notices.Current()
	require.True(t, ok)
	assert.Equal(t, notice.Warning, msg.Level)
	assert.Equal(t, "Attempt time has expired", msg.Text)

	api.saveErr = nil
	s.Previous(ctx)
	require.NoError(t, s.Save(ctx))
	assert.Equal(t, []string{`"1"`}, api.saves[10])
}

func TestTimer(t *testing.T) {
	api := newAPI()
	duration := 30
	api.session.Duration = &duration
	s := start(t, api)
	begin := api.session.Attempt.StartedAt

	left, timed := s.Remaining(begin.Add(10 * time.Minute))
	assert.True(t, timed)
	assert.Equal(t, 20*time.Minute, left)
	assert.False(t, s.Expired(begin.Add(29*time.Minute)))
	assert.True(t, s.Expired(begin.Add(30*time.Minute)))

	deadline := begin.Add(5 * time.Minute)
	api.session.Attempt.Deadline = &deadline
	assert.True(t, s.Expired(begin.Add(6*time.Minute)), "server deadline wins")

	untimed := start(t, newAPI())
	_, timed = untimed.Remaining(time.Now())
	assert.False(t, timed)
	assert.False(t, untimed.Expired(time.Now()))
}
