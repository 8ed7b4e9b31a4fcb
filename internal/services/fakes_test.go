package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/quiz-portal/internal/events"
	"github.com/SAP-F-2025/quiz-portal/internal/models"
	"github.com/SAP-F-2025/quiz-portal/internal/repositories"
	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

// memoryRepository keeps everything in maps. Transactions run fn directly against it.
type memoryRepository struct {
	assessments map[uint]*models.Assessment
	questions   map[uint]*models.Question
	attempts    map[uint]*models.AssessmentAttempt
	answers     map[uint]*models.AttemptAnswer
	users       map[string]*models.User
	assigned    map[uint][]string
	nextID      uint

	// beforeCreate runs ahead of attempt inserts; a non-nil error aborts the insert.
	beforeCreate func(*models.AssessmentAttempt) error
	locks        int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		assessments: map[uint]*models.Assessment{},
		questions:   map[uint]*models.Question{},
		attempts:    map[uint]*models.AssessmentAttempt{},
		answers:     map[uint]*models.AttemptAnswer{},
		users:       map[string]*models.User{},
		assigned:    map[uint][]string{},
		nextID:      1000,
	}
}

func (m *memoryRepository) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memoryRepository) Assessment() repositories.AssessmentRepository { return memoryAssessments{m} }
func (m *memoryRepository) Question() repositories.QuestionRepository     { return memoryQuestions{m} }
func (m *memoryRepository) Catalog() repositories.CatalogRepository       { return nil }
func (m *memoryRepository) Group() repositories.GroupRepository           { return nil }
func (m *memoryRepository) Attempt() repositories.AttemptRepository       { return memoryAttempts{m} }
func (m *memoryRepository) User() repositories.UserRepository             { return memoryUsers{m} }

func (m *memoryRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(m)
}

func (m *memoryRepository) Ping(ctx context.Context) error { return nil }
func (m *memoryRepository) Close() error                   { return nil }

// ===== ASSESSMENTS =====

type memoryAssessments struct{ m *memoryRepository }

func (r memoryAssessments) Create(ctx context.Context, a *models.Assessment) error {
	a.ID = r.m.id()
	r.m.assessments[a.ID] = a
	return nil
}

func (r memoryAssessments) Update(ctx context.Context, a *models.Assessment) error {
	r.m.assessments[a.ID] = a
	return nil
}

func (r memoryAssessments) Delete(ctx context.Context, id uint) error {
	if _, ok := r.m.assessments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.m.assessments, id)
	return nil
}

func (r memoryAssessments) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	a, ok := r.m.assessments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memoryAssessments) GetWithDetails(ctx context.Context, id uint) (*models.Assessment, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	questions := make([]models.AssessmentQuestion, len(a.Questions))
	copy(questions, a.Questions)
	for i := range questions {
		questions[i].Question = r.m.questions[questions[i].QuestionID]
	}
	a.Questions = questions
	return a, nil
}

func (r memoryAssessments) List(ctx context.Context, params models.ListParams, scope repositories.AssessmentScope) ([]*models.Assessment, int64, error) {
	var out []*models.Assessment
	for _, a := range r.m.assessments {
		if scope.CreatedBy != nil && a.CreatedBy != *scope.CreatedBy {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (r memoryAssessments) HasAttempts(ctx context.Context, id uint) (bool, error) {
	for _, a := range r.m.attempts {
		if a.AssessmentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r memoryAssessments) IsUserAssigned(ctx context.Context, assessmentID uint, userID string) (bool, error) {
	for _, u := range r.m.assigned[assessmentID] {
		if u == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r memoryAssessments) LockForAttempt(ctx context.Context, id uint) error {
	if _, ok := r.m.assessments[id]; !ok {
		return repositories.ErrNotFound
	}
	r.m.locks++
	return nil
}

// ===== QUESTIONS =====

type memoryQuestions struct{ m *memoryRepository }

func (r memoryQuestions) Create(ctx context.Context, q *models.Question) error {
	q.ID = r.m.id()
	for i := range q.Options {
		q.Options[i].ID = r.m.id()
		q.Options[i].QuestionID = q.ID
	}
	r.m.questions[q.ID] = q
	return nil
}

func (r memoryQuestions) Update(ctx context.Context, q *models.Question) error {
	r.m.questions[q.ID] = q
	return nil
}

func (r memoryQuestions) Delete(ctx context.Context, id uint) error {
	delete(r.m.questions, id)
	return nil
}

func (r memoryQuestions) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	q, ok := r.m.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return q, nil
}

func (r memoryQuestions) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	var out []*models.Question
	for _, id := range ids {
		if q, ok := r.m.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r memoryQuestions) List(ctx context.Context, params models.ListParams) ([]*models.Question, int64, error) {
	return nil, 0, nil
}

func (r memoryQuestions) IsUsed(ctx context.Context, id uint) (bool, error) {
	for _, a := range r.m.assessments {
		for _, aq := range a.Questions {
			if aq.QuestionID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

// ===== ATTEMPTS =====

type memoryAttempts struct{ m *memoryRepository }

func (r memoryAttempts) Create(ctx context.Context, a *models.AssessmentAttempt) error {
	if hook := r.m.beforeCreate; hook != nil {
		r.m.beforeCreate = nil
		if err := hook(a); err != nil {
			return err
		}
	}
	a.ID = r.m.id()
	cp := *a
	r.m.attempts[a.ID] = &cp
	return nil
}

func (r memoryAttempts) Update(ctx context.Context, a *models.AssessmentAttempt) error {
	stored, ok := r.m.attempts[a.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.Status = a.Status
	stored.Deadline = a.Deadline
	stored.SubmittedAt = a.SubmittedAt
	stored.Score = a.Score
	stored.IsPublished = a.IsPublished
	stored.PublishedAt = a.PublishedAt
	return nil
}

func (r memoryAttempts) GetByID(ctx context.Context, id uint) (*models.AssessmentAttempt, error) {
	a, ok := r.m.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	cp.Answers = nil
	for _, ans := range r.m.answers {
		if ans.AttemptID == id {
			withQuestion := *ans
			withQuestion.Question = r.m.questions[ans.QuestionID]
			cp.Answers = append(cp.Answers, withQuestion)
		}
	}
	return &cp, nil
}

func (r memoryAttempts) FindInProgress(ctx context.Context, assessmentID uint, userID string) (*models.AssessmentAttempt, error) {
	for _, a := range r.m.attempts {
		if a.AssessmentID == assessmentID && a.UserID == userID && a.Status == models.AttemptInProgress {
			return r.GetByID(ctx, a.ID)
		}
	}
	return nil, repositories.ErrNotFound
}

func (r memoryAttempts) CountByUser(ctx context.Context, assessmentID uint, userID string) (int64, error) {
	var n int64
	for _, a := range r.m.attempts {
		if a.AssessmentID == assessmentID && a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r memoryAttempts) List(ctx context.Context, params models.ListParams, filter repositories.AttemptFilter) ([]*models.AssessmentAttempt, int64, error) {
	var out []*models.AssessmentAttempt
	for _, a := range r.m.attempts {
		if filter.UserID != nil && a.UserID != *filter.UserID {
			continue
		}
		if filter.AssessmentOwner != nil {
			owner, ok := r.m.assessments[a.AssessmentID]
			if !ok || owner.CreatedBy != *filter.AssessmentOwner {
				continue
			}
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (r memoryAttempts) ListByAssessment(ctx context.Context, assessmentID uint) ([]*models.AssessmentAttempt, error) {
	var out []*models.AssessmentAttempt
	for id := uint(0); id <= r.m.nextID; id++ {
		if a, ok := r.m.attempts[id]; ok && a.AssessmentID == assessmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memoryAttempts) ListOverdue(ctx context.Context, before time.Time, limit int) ([]*models.AssessmentAttempt, error) {
	var out []*models.AssessmentAttempt
	for _, a := range r.m.attempts {
		if a.Status == models.AttemptInProgress && a.Deadline != nil && a.Deadline.Before(before) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memoryAttempts) SaveAnswers(ctx context.Context, answers []models.AttemptAnswer) error {
	for _, a := range answers {
		var existing *models.AttemptAnswer
		for _, stored := range r.m.answers {
			if stored.AttemptID == a.AttemptID && stored.QuestionID == a.QuestionID {
				existing = stored
			}
		}
		if existing != nil {
			existing.Answer = a.Answer
			existing.UserMarks = a.UserMarks
			continue
		}
		cp := a
		cp.ID = r.m.id()
		cp.Question = nil
		r.m.answers[cp.ID] = &cp
	}
	return nil
}

func (r memoryAttempts) SaveDraftAnswer(ctx context.Context, a *models.AttemptAnswer) error {
	for _, stored := range r.m.answers {
		if stored.AttemptID == a.AttemptID && stored.QuestionID == a.QuestionID {
			stored.Answer = a.Answer
			return nil
		}
	}
	cp := *a
	cp.ID = r.m.id()
	cp.Question = nil
	r.m.answers[cp.ID] = &cp
	a.ID = cp.ID
	return nil
}

func (r memoryAttempts) GetAnswer(ctx context.Context, attemptID, answerID uint) (*models.AttemptAnswer, error) {
	a, ok := r.m.answers[answerID]
	if !ok || a.AttemptID != attemptID {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memoryAttempts) UpdateAnswer(ctx context.Context, answer *models.AttemptAnswer) error {
	stored, ok := r.m.answers[answer.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	stored.UserMarks = answer.UserMarks
	stored.Comment = answer.Comment
	stored.MarkedBy = answer.MarkedBy
	stored.MarkedAt = answer.MarkedAt
	return nil
}

func (r memoryAttempts) Stats(ctx context.Context, assessmentID uint) (*repositories.AssessmentStats, error) {
	stats := &repositories.AssessmentStats{AssessmentID: assessmentID}
	for _, a := range r.m.attempts {
		if a.AssessmentID != assessmentID {
			continue
		}
		stats.TotalAttempts++
		if a.IsFinished() {
			stats.FinishedCount++
		}
	}
	return stats, nil
}

// ===== USERS =====

type memoryUsers struct{ m *memoryRepository }

func (r memoryUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (r memoryUsers) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memoryUsers) List(ctx context.Context, params models.ListParams) ([]*models.User, int64, error) {
	return nil, 0, nil
}

// ===== FIXTURES =====

var (
	teacher = Caller{UserID: "teacher-1", Role: models.RoleTeacher}
	student = Caller{UserID: "student-1", Role: models.RoleStudent}
	other   = Caller{UserID: "student-2", Role: models.RoleStudent}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// fixture seeds one published assessment with a choice, a multiple answer,
// a two-blank fill-in and a text question worth 2, 3, 2 and 3 marks.
type fixture struct {
	repo       *memoryRepository
	publisher  *events.MockEventPublisher
	assessment *models.Assessment
	choice     *models.Question
	multi      *models.Question
	fillIn     *models.Question
	text       *models.Question
	clock      time.Time
}

func newFixture() *fixture {
	repo := newMemoryRepository()
	ctx := context.Background()

	choice := &models.Question{Content: "2+2", Type: models.MultipleChoice, CreatedBy: teacher.UserID, Options: []models.Option{
		{Answer: "3"}, {Answer: "4", IsCorrect: true},
	}}
	multi := &models.Question{Content: "Primes", Type: models.MultipleAnswer, CreatedBy: teacher.UserID, Options: []models.Option{
		{Answer: "2", IsCorrect: true}, {Answer: "4"}, {Answer: "5", IsCorrect: true},
	}}
	fillIn := &models.Question{Content: "Capital of France is __ and of Italy is __", Type: models.FillIn, CreatedBy: teacher.UserID, Options: []models.Option{
		{Answer: "Paris", IsCorrect: true, BlankOrder: intPtr(0)},
		{Answer: "Rome", IsCorrect: true, BlankOrder: intPtr(1)},
		{Answer: "Roma", IsCorrect: true, BlankOrder: intPtr(1)},
	}}
	text := &models.Question{Content: "Explain gravity", Type: models.Text, CreatedBy: teacher.UserID}
	for _, q := range []*models.Question{choice, multi, fillIn, text} {
		_ = repo.Question().Create(ctx, q)
	}

	assessment := &models.Assessment{
		Name:              "Midterm",
		SubjectID:         1,
		Duration:          intPtr(30),
		TotalMarks:        10,
		PassMarks:         floatPtr(5),
		MaxAttempts:       intPtr(2),
		IsPublished:       true,
		RequiredMark:      true,
		ResultDisplayMode: models.ResultDisplayImmediate,
		CreatedBy:         teacher.UserID,
		Questions: []models.AssessmentQuestion{
			{QuestionID: choice.ID, Marks: 2, Order: 1},
			{QuestionID: multi.ID, Marks: 3, Order: 2},
			{QuestionID: fillIn.ID, Marks: 2, Order: 3},
			{QuestionID: text.ID, Marks: 3, Order: 4},
		},
	}
	_ = repo.Assessment().Create(ctx, assessment)
	repo.assigned[assessment.ID] = []string{student.UserID}
	repo.users[student.UserID] = &models.User{ID: student.UserID, Name: "alice", FullName: "Alice Nguyen", Email: "alice@example.com", Role: models.RoleStudent}

	return &fixture{
		repo:       repo,
		publisher:  events.NewMockEventPublisher(testLogger()),
		assessment: assessment,
		choice:     choice,
		multi:      multi,
		fillIn:     fillIn,
		text:       text,
		clock:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) attemptService() *attemptService {
	s := NewAttemptService(f.repo, testLogger(), validator.New(), f.publisher, 2*time.Minute).(*attemptService)
	s.now = func() time.Time { return f.clock }
	return s
}

func (f *fixture) resultService() *resultService {
	s := NewResultService(f.repo, testLogger(), validator.New(), f.publisher).(*resultService)
	s.now = func() time.Time { return f.clock }
	return s
}
