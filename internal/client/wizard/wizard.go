// Package wizard is the five step assessment builder used for both creating
// and editing an assessment. A Wizard is not safe for concurrent use.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SAP-F-2025/quiz-portal/internal/client"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

type Step int

const (
	CreateTest Step = iota
	AddQuestion
	QuestionSetting
	PublishTest
	AssignTest
)

func (s Step) String() string {
	switch s {
	case CreateTest:
		return "Create test"
	case AddQuestion:
		return "Add questions"
	case QuestionSetting:
		return "Question settings"
	case PublishTest:
		return "Publish"
	case AssignTest:
		return "Assign groups"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

var (
	ErrLastStep     = errors.New("assign step finishes the wizard; call Finish")
	ErrNotConfirmed = errors.New("finish was not confirmed")
	ErrNotLastStep  = errors.New("finish is only available on the assign step")
)

// StepError is a validation failure that keeps the wizard on Step.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type API interface {
	GetAssessment(ctx context.Context, id uint) (*models.Assessment, error)
	ListSubjects(ctx context.Context, params client.ListParams) (*client.ListResponse[models.Subject], error)
	CreateAssessment(ctx context.Context, req *models.AssessmentRequest) (*models.Assessment, error)
	UpdateAssessment(ctx context.Context, id uint, req *models.AssessmentRequest) (*models.Assessment, error)
}

// Details is the first step form.
type Details struct {
	Name          string   `json:"name" validate:"required,min=1,max=200"`
	Description   string   `json:"description" validate:"max=2000"`
	SubjectID     uint     `json:"subjectId" validate:"required"`
	TotalMarks    float64  `json:"totalMarks" validate:"required,gt=0,lte=10000"`
	PassMarks     *float64 `json:"passMarks" validate:"omitempty,gte=0"`
	HasDuration   bool     `json:"-"`
	Duration      int      `json:"duration" validate:"required_if=HasDuration true,min=0,max=1440"`
	LimitAttempts bool     `json:"-"`
	MaxAttempts   int      `json:"maxAttempts" validate:"required_if=LimitAttempts true,min=0,max=100"`
	RequiredMark  bool     `json:"requiredMark"`

	ResultDisplayMode models.ResultDisplayMode `json:"resultDisplayMode" validate:"omitempty,oneof=immediate after_publish score_only"`
}

// Schedule is the publish step form.
type Schedule struct {
	ValidFrom   *time.Time
	ValidTo     *time.Time
	IsPublished bool
}

// Entry is a selected question with its marks and position.
type Entry struct {
	Question models.Question
	Marks    float64
	Order    int
}

type Wizard struct {
	api      API
	validate *validator.Validator

	step     Step
	editID   uint
	details  Details
	selected map[uint]*Entry
	schedule Schedule
	groups   map[uint]struct{}
	subjects []models.Subject
}

func New(api API) *Wizard {
	return &Wizard{
		api:      api,
		validate: validator.New(),
		details:  Details{RequiredMark: true, ResultDisplayMode: models.ResultDisplayImmediate},
		selected: map[uint]*Entry{},
		groups:   map[uint]struct{}{},
	}
}

func (w *Wizard) Step() Step {
	return w.step
}

// Editing returns the id of the assessment being edited, or 0 when creating.
func (w *Wizard) Editing() uint {
	return w.editID
}

func (w *Wizard) Subjects() []models.Subject {
	return w.subjects
}

// LoadSubjects fetches the subject choices for the first step.
func (w *Wizard) LoadSubjects(ctx context.Context) error {
	subjects, err := w.fetchSubjects(ctx)
	if err != nil {
		return err
	}
	w.subjects = subjects
	return nil
}

func (w *Wizard) fetchSubjects(ctx context.Context) ([]models.Subject, error) {
	resp, err := w.api.ListSubjects(ctx, client.ListParams{PerPage: models.MaxPerPage})
	if err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}
	out := make([]models.Subject, 0, len(resp.Items))
	for _, rec := range resp.Items {
		out = append(out, rec.Attrs)
	}
	return out, nil
}

// LoadForEdit fetches the assessment and the subject list concurrently and
// seeds every step from them. On error the wizard is left unchanged.
func (w *Wizard) LoadForEdit(ctx context.Context, id uint) error {
	var (
		assessment *models.Assessment
		subjects   []models.Subject
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := w.api.GetAssessment(gctx, id)
		if err != nil {
			return fmt.Errorf("load assessment %d: %w", id, err)
		}
		assessment = a
		return nil
	})
	g.Go(func() error {
		s, err := w.fetchSubjects(gctx)
		subjects = s
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	w.seed(assessment)
	w.subjects = subjects
	return nil
}

func (w *Wizard) seed(a *models.Assessment) {
	w.editID = a.ID
	w.step = CreateTest

	d := Details{
		Name:              a.Name,
		SubjectID:         a.SubjectID,
		TotalMarks:        a.TotalMarks,
		PassMarks:         a.PassMarks,
		RequiredMark:      a.RequiredMark,
		ResultDisplayMode: a.ResultDisplayMode,
	}
	if a.Description != nil {
		d.Description = *a.Description
	}
	if !a.IsUnlimitedDuration() {
		d.HasDuration = true
		d.Duration = *a.Duration
	}
	if !a.IsUnlimitedAttempts() {
		d.LimitAttempts = true
		d.MaxAttempts = *a.MaxAttempts
	}
	if !d.ResultDisplayMode.Valid() {
		d.ResultDisplayMode = models.ResultDisplayImmediate
	}
	w.details = d

	w.selected = map[uint]*Entry{}
	for _, aq := range a.Questions {
		q := models.Question{ID: aq.QuestionID}
		if aq.Question != nil {
			q = *aq.Question
		}
		w.selected[aq.QuestionID] = &Entry{Question: q, Marks: aq.Marks, Order: aq.Order}
	}

	w.schedule = Schedule{ValidFrom: a.ValidFrom, ValidTo: a.ValidTo, IsPublished: a.IsPublished}

	w.groups = map[uint]struct{}{}
	for _, id := range a.GroupIDs() {
		w.groups[id] = struct{}{}
	}
}

// ===== STEP 1 =====

func (w *Wizard) Details() Details {
	return w.details
}

func (w *Wizard) SetDetails(d Details) {
	if d.ResultDisplayMode == "" {
		d.ResultDisplayMode = models.ResultDisplayImmediate
	}
	w.details = d
}

func (w *Wizard) checkDetails() error {
	if err := w.validate.Validate(w.details); err != nil {
		return err
	}
	return validator.CheckPassMarks(w.details.PassMarks, w.details.TotalMarks)
}

// ===== STEP 2 =====

// Select adds q to the selection; it survives paging through the bank.
func (w *Wizard) Select(q models.Question) {
	if e, ok := w.selected[q.ID]; ok {
		e.Question = q
		return
	}
	w.selected[q.ID] = &Entry{Question: q, Order: w.nextOrder()}
}

func (w *Wizard) Deselect(id uint) {
	delete(w.selected, id)
}

func (w *Wizard) IsSelected(id uint) bool {
	_, ok := w.selected[id]
	return ok
}

func (w *Wizard) nextOrder() int {
	next := 0
	for _, e := range w.selected {
		if e.Order >= next {
			next = e.Order + 1
		}
	}
	return next
}

// Entries returns the selection ordered by position, then id.
func (w *Wizard) Entries() []Entry {
	out := make([]Entry, 0, len(w.selected))
	for _, e := range w.selected {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return int(a.Question.ID) - int(b.Question.ID)
	})
	return out
}

// ===== STEP 3 =====

func (w *Wizard) SetMarks(id uint, marks float64) error {
	e, ok := w.selected[id]
	if !ok {
		return fmt.Errorf("question %d is not selected", id)
	}
	e.Marks = marks
	return nil
}

// ApplyMarks sets the same marks on every listed question.
func (w *Wizard) ApplyMarks(ids []uint, marks float64) error {
	for _, id := range ids {
		if err := w.SetMarks(id, marks); err != nil {
			return err
		}
	}
	return nil
}

// Move places question id at position to and renumbers every order from 0.
func (w *Wizard) Move(id uint, to int) error {
	entries := w.Entries()
	from := slices.IndexFunc(entries, func(e Entry) bool { return e.Question.ID == id })
	if from < 0 {
		return fmt.Errorf("question %d is not selected", id)
	}
	to = max(0, min(to, len(entries)-1))

	moved := entries[from]
	entries = slices.Delete(entries, from, from+1)
	entries = slices.Insert(entries, to, moved)
	for i, e := range entries {
		w.selected[e.Question.ID].Order = i
	}
	return nil
}

func (w *Wizard) MarksSum() float64 {
	var sum float64
	for _, e := range w.selected {
		sum += e.Marks
	}
	return sum
}

func (w *Wizard) checkMarks() error {
	if !w.details.RequiredMark {
		return nil
	}
	marks := make([]float64, 0, len(w.selected))
	for _, e := range w.selected {
		if e.Marks < 0 {
			return fmt.Errorf("question %d: marks must not be negative", e.Question.ID)
		}
		marks = append(marks, e.Marks)
	}
	return validator.CheckMarksSum(w.details.TotalMarks, marks)
}

// ===== STEP 4 =====

func (w *Wizard) Schedule() Schedule {
	return w.schedule
}

func (w *Wizard) SetSchedule(s Schedule) {
	w.schedule = s
}

func (w *Wizard) checkSchedule() error {
	var duration *int
	if w.details.HasDuration {
		duration = &w.details.Duration
	}
	return validator.CheckValidityWindow(w.schedule.ValidFrom, w.schedule.ValidTo, duration)
}

// ===== STEP 5 =====

func (w *Wizard) ToggleGroup(id uint) {
	if _, ok := w.groups[id]; ok {
		delete(w.groups, id)
		return
	}
	w.groups[id] = struct{}{}
}

func (w *Wizard) Groups() []uint {
	ids := make([]uint, 0, len(w.groups))
	for id := range w.groups {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ===== NAVIGATION =====

// Next validates the current step and advances. A validation failure is a
// *StepError and the step does not change.
func (w *Wizard) Next() error {
	var err error
	switch w.step {
	case CreateTest:
		err = w.checkDetails()
	case AddQuestion:
	case QuestionSetting:
		err = w.checkMarks()
	case PublishTest:
		err = w.checkSchedule()
	case AssignTest:
		return ErrLastStep
	}
	if err != nil {
		return &StepError{Step: w.step, Err: err}
	}
	w.step++
	return nil
}

func (w *Wizard) Back() {
	if w.step > CreateTest {
		w.step--
	}
}

// Request assembles the payload for create or update.
func (w *Wizard) Request() *models.AssessmentRequest {
	d := w.details
	required := d.RequiredMark
	req := &models.AssessmentRequest{
		Name:              d.Name,
		SubjectID:         d.SubjectID,
		TotalMarks:        d.TotalMarks,
		PassMarks:         d.PassMarks,
		ValidFrom:         w.schedule.ValidFrom,
		ValidTo:           w.schedule.ValidTo,
		IsPublished:       w.schedule.IsPublished,
		RequiredMark:      &required,
		ResultDisplayMode: d.ResultDisplayMode,
		GroupIDs:          w.Groups(),
	}
	if d.Description != "" {
		req.Description = &d.Description
	}
	if d.HasDuration {
		req.Duration = &d.Duration
	}
	if d.LimitAttempts {
		req.MaxAttempts = &d.MaxAttempts
	}
	for _, e := range w.Entries() {
		req.Questions = append(req.Questions, models.AssessmentQuestionRequest{
			QuestionID: e.Question.ID,
			Marks:      e.Marks,
			Order:      e.Order,
		})
	}
	return req
}

// Finish asks confirm and then creates or updates the assessment. Every
// earlier step is validated again first. Errors are returned, never dropped.
func (w *Wizard) Finish(ctx context.Context, confirm func(*models.AssessmentRequest) bool) (*models.Assessment, error) {
	if w.step != AssignTest {
		return nil, ErrNotLastStep
	}
	checks := []struct {
		step  Step
		check func() error
	}{
		{CreateTest, w.checkDetails},
		{QuestionSetting, w.checkMarks},
		{PublishTest, w.checkSchedule},
	}
	for _, c := range checks {
		if err := c.check(); err != nil {
			return nil, &StepError{Step: c.step, Err: err}
		}
	}

	req := w.Request()
	if confirm != nil && !confirm(req) {
		return nil, ErrNotConfirmed
	}

	if w.editID != 0 {
		a, err := w.api.UpdateAssessment(ctx, w.editID, req)
		if err != nil {
			return nil, fmt.Errorf("update assessment %d: %w", w.editID, err)
		}
		return a, nil
	}
	a, err := w.api.CreateAssessment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}
	return a, nil
}
