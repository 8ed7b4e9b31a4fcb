package wizard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

type fakeAPI struct {
	assessment  *models.Assessment
	getErr      error
	subjectsErr error
	createErr   error
	created     *models.AssessmentRequest
	updatedID   uint
	inFlight    int32
	maxInFlight int32
}

func (f *fakeAPI) enter() func() {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		m := atomic.LoadInt32(&f.maxInFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxInFlight, m, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return func() { atomic.AddInt32(&f.inFlight, -1) }
}

func (f *fakeAPI) GetAssessment(ctx context.Context, id uint) (*models.Assessment, error) {
	defer f.enter()()
	return f.assessment, f.getErr
}

func (f *fakeAPI) ListSubjects(ctx context.Context, params client.ListParams) (*client.ListResponse[models.Subject], error) {
	defer f.enter()()
	if f.subjectsErr != nil {
		return nil, f.subjectsErr
	}
	return &client.ListResponse[models.Subject]{Items: []client.Record[models.Subject]{
		{ID: "1", Attrs: models.Subject{ID: 1, Name: "Maths"}},
		{ID: "2", Attrs: models.Subject{ID: 2, Name: "Physics"}},
	}}, nil
}

func (f *fakeAPI) CreateAssessment(ctx context.Context, req *models.AssessmentRequest) (*models.Assessment, error) {
	f.created = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.Assessment{ID: 50, Name: req.Name}, nil
}

func (f *fakeAPI) UpdateAssessment(ctx context.Context, id uint, req *models.AssessmentRequest) (*models.Assessment, error) {
	f.updatedID = id
	f.created = req
	return &models.Assessment{ID: id, Name: req.Name}, nil
}

func validDetails() Details {
	return Details{Name: "Algebra", SubjectID: 1, TotalMarks: 100, RequiredMark: true}
}

func stepErr(t *testing.T, err error, step Step) *StepError {
	t.Helper()
	var se *StepError
	require.True(t, errors.As(err, &se), "want StepError, got %v", err)
	assert.Equal(t, step, se.Step)
	return se
}

func TestCreateTestStep_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Details)
		field  string
	}{
		{"missing name", func(d *Details) { d.Name = "" }, "name"},
		{"missing subject", func(d *Details) { d.SubjectID = 0 }, "subjectId"},
		{"zero total", func(d *Details) { d.TotalMarks = 0 }, "totalMarks"},
		{"duration enabled but empty", func(d *Details) { d.HasDuration = true }, "duration"},
		{"duration too long", func(d *Details) { d.HasDuration = true; d.Duration = 2000 }, "duration"},
		{"attempts too many", func(d *Details) { d.LimitAttempts = true; d.MaxAttempts = 101 }, "maxAttempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(&fakeAPI{})
			d := validDetails()
			tt.mutate(&d)
			w.SetDetails(d)

			se := stepErr(t, w.Next(), CreateTest)
			verrs := validator.ToValidationErrors(se.Err)
			_, ok := verrs.Field(tt.field)
			assert.True(t, ok, "errors: %v", verrs)
			assert.Equal(t, CreateTest, w.Step())
		})
	}

	t.Run("pass marks above total", func(t *testing.T) {
		w := New(&fakeAPI{})
		d := validDetails()
		d.PassMarks = floatPtr(120)
		w.SetDetails(d)
		stepErr(t, w.Next(), CreateTest)
	})
}

func TestMarksSumBoundary(t *testing.T) {
	tests := []struct {
		name     string
		marks    []float64
		required bool
		ok       bool
	}{
		{"exact", []float64{60, 40}, true, true},
		{"gap of 0.01 blocks", []float64{60, 39.99}, true, false},
		{"gap of 0.009 passes", []float64{60, 39.991}, true, true},
		{"over", []float64{60, 41}, true, false},
		{"survey ignores marks", []float64{1, 1}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(&fakeAPI{})
			d := validDetails()
			d.RequiredMark = tt.required
			w.SetDetails(d)
			require.NoError(t, w.Next())

			for i, m := range tt.marks {
				id := uint(i + 1)
				w.Select(models.Question{ID: id})
				require.NoError(t, w.SetMarks(id, m))
			}
			require.NoError(t, w.Next())
			assert.Equal(t, QuestionSetting, w.Step())

			err := w.Next()
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, PublishTest, w.Step())
				return
			}
			se := stepErr(t, err, QuestionSetting)
			var mismatch *validator.MarksMismatchError
			require.True(t, errors.As(se, &mismatch))
			assert.Equal(t, 100.0, mismatch.Expected)
			assert.InDelta(t, 100.0, mismatch.Actual, 1.5)
			assert.Equal(t, QuestionSetting, w.Step())
		})
	}
}

func TestValidityWindow(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		to   time.Time
		ok   bool
	}{
		{"shorter than duration", from.Add(25 * time.Minute), false},
		{"equal to duration", from.Add(30 * time.Minute), true},
		{"before start", from.Add(-time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(&fakeAPI{})
			d := validDetails()
			d.HasDuration = true
			d.Duration = 30
			d.RequiredMark = false
			w.SetDetails(d)
			require.NoError(t, w.Next())
			require.NoError(t, w.Next())
			require.NoError(t, w.Next())

			to := tt.to
			w.SetSchedule(Schedule{ValidFrom: &from, ValidTo: &to})
			err := w.Next()
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, AssignTest, w.Step())
			} else {
				stepErr(t, err, PublishTest)
			}
		})
	}
}

func TestSelectionsSurvivePagingAndReorder(t *testing.T) {
	w := New(&fakeAPI{})
	for _, id := range []uint{7, 3, 9} {
		w.Select(models.Question{ID: id, Content: "q"})
	}
	// Re-selecting from another page keeps position and marks.
	require.NoError(t, w.SetMarks(3, 5))
	w.Select(models.Question{ID: 3, Content: "updated"})

	entries := w.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []uint{7, 3, 9}, ids(entries))
	assert.Equal(t, 5.0, entries[1].Marks)
	assert.Equal(t, "updated", entries[1].Question.Content)

	require.NoError(t, w.Move(9, 0))
	entries = w.Entries()
	assert.Equal(t, []uint{9, 7, 3}, ids(entries))
	for i, e := range entries {
		assert.Equal(t, i, e.Order)
	}

	require.NoError(t, w.ApplyMarks([]uint{9, 7}, 2.5))
	assert.Equal(t, 10.0, w.MarksSum())

	w.Deselect(7)
	assert.False(t, w.IsSelected(7))
	assert.Error(t, w.SetMarks(7, 1))
	assert.Error(t, w.Move(7, 1))
}

func ids(entries []Entry) []uint {
	out := make([]uint, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Question.ID)
	}
	return out
}

func TestBackAndLastStep(t *testing.T) {
	w := New(&fakeAPI{})
	w.Back()
	assert.Equal(t, CreateTest, w.Step())

	w.SetDetails(Details{Name: "Survey", SubjectID: 1, TotalMarks: 1})
	for i := 0; i < 4; i++ {
		require.NoError(t, w.Next())
	}
	assert.Equal(t, AssignTest, w.Step())
	assert.ErrorIs(t, w.Next(), ErrLastStep)
	w.Back()
	assert.Equal(t, PublishTest, w.Step())
}

func TestFinish_CreateRequiresConfirmation(t *testing.T) {
	api := &fakeAPI{}
	w := New(api)
	_, err := w.Finish(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotLastStep)

	d := validDetails()
	d.HasDuration = true
	d.Duration = 45
	w.SetDetails(d)
	require.NoError(t, w.Next())
	w.Select(models.Question{ID: 1})
	w.Select(models.Question{ID: 2})
	require.NoError(t, w.Next())
	require.NoError(t, w.ApplyMarks([]uint{1, 2}, 50))
	require.NoError(t, w.Next())
	require.NoError(t, w.Next())
	w.ToggleGroup(4)
	w.ToggleGroup(2)
	w.ToggleGroup(4)
	w.ToggleGroup(8)

	_, err = w.Finish(context.Background(), func(*models.AssessmentRequest) bool { return false })
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Nil(t, api.created)

	a, err := w.Finish(context.Background(), func(req *models.AssessmentRequest) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, uint(50), a.ID)

	req := api.created
	require.NotNil(t, req)
	assert.Equal(t, []uint{2, 8}, req.GroupIDs)
	require.Len(t, req.Questions, 2)
	assert.Equal(t, 50.0, req.Questions[1].Marks)
	assert.Equal(t, 1, req.Questions[1].Order)
	require.NotNil(t, req.Duration)
	assert.Equal(t, 45, *req.Duration)
	assert.Nil(t, req.MaxAttempts)
	assert.True(t, req.IsGraded())
}

func TestFinish_ErrorsAreSurfaced(t *testing.T) {
	api := &fakeAPI{createErr: &client.APIError{Status: 422, Message: "Subject not found"}}
	w := New(api)
	w.SetDetails(Details{Name: "Survey", SubjectID: 1, TotalMarks: 1})
	for i := 0; i < 4; i++ {
		require.NoError(t, w.Next())
	}

	_, err := w.Finish(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, 422))
}

func TestLoadForEdit(t *testing.T) {
	desc := "Chapter 3"
	from := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	api := &fakeAPI{assessment: &models.Assessment{
		ID: 12, Name: "Geometry", Description: &desc, SubjectID: 2, TotalMarks: 10,
		Duration: intPtr(20), MaxAttempts: intPtr(0), ValidFrom: &from, IsPublished: true,
		RequiredMark: true, ResultDisplayMode: models.ResultDisplayAfterPublish,
		Questions: []models.AssessmentQuestion{
			{QuestionID: 5, Marks: 4, Order: 1, Question: &models.Question{ID: 5, Content: "b"}},
			{QuestionID: 4, Marks: 6, Order: 0, Question: &models.Question{ID: 4, Content: "a"}},
		},
		Groups: []models.Group{{ID: 3}, {ID: 1}},
	}}
	w := New(api)

	require.NoError(t, w.LoadForEdit(context.Background(), 12))
	assert.Equal(t, int32(2), atomic.LoadInt32(&api.maxInFlight), "assessment and subjects load concurrently")

	assert.Equal(t, uint(12), w.Editing())
	d := w.Details()
	assert.True(t, d.HasDuration)
	assert.Equal(t, 20, d.Duration)
	assert.False(t, d.LimitAttempts)
	assert.Equal(t, "Chapter 3", d.Description)
	assert.Equal(t, models.ResultDisplayAfterPublish, d.ResultDisplayMode)
	assert.Equal(t, []uint{4, 5}, ids(w.Entries()))
	assert.Equal(t, []uint{1, 3}, w.Groups())
	assert.True(t, w.Schedule().IsPublished)
	assert.Len(t, w.Subjects(), 2)

	for i := 0; i < 4; i++ {
		require.NoError(t, w.Next())
	}
	_, err := w.Finish(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint(12), api.updatedID)
}

func TestLoadForEdit_ErrorLeavesWizardUntouched(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("not found"), assessment: nil}
	w := New(api)
	err := w.LoadForEdit(context.Background(), 99)
	require.Error(t, err)
	assert.Zero(t, w.Editing())
	assert.Empty(t, w.Subjects())

	api = &fakeAPI{assessment: &models.Assessment{ID: 1}, subjectsErr: errors.New("down")}
	w = New(api)
	assert.Error(t, w.LoadForEdit(context.Background(), 1))
	assert.Zero(t, w.Editing())
}
