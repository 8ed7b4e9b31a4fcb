package validator

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func validAssessment() *models.AssessmentRequest {
	return &models.AssessmentRequest{
		Name:              "Algebra midterm",
		SubjectID:         1,
		TotalMarks:        10,
		ResultDisplayMode: models.ResultDisplayImmediate,
		Questions: []models.AssessmentQuestionRequest{
			{QuestionID: 1, Marks: 4, Order: 0},
			{QuestionID: 2, Marks: 6, Order: 1},
		},
	}
}

func TestValidateAssessment(t *testing.T) {
	v := New()
	from := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	to := from.Add(30 * time.Minute)

	tests := []struct {
		name      string
		mutate    func(r *models.AssessmentRequest)
		wantField string
	}{
		{name: "valid", mutate: func(r *models.AssessmentRequest) {}},
		{name: "missing name", mutate: func(r *models.AssessmentRequest) { r.Name = "" }, wantField: "name"},
		{name: "marks mismatch", mutate: func(r *models.AssessmentRequest) { r.Questions[1].Marks = 5 }, wantField: "questions"},
		{name: "survey ignores marks", mutate: func(r *models.AssessmentRequest) {
			graded := false
			r.RequiredMark = &graded
			r.Questions[1].Marks = 0
		}},
		{name: "pass marks above total", mutate: func(r *models.AssessmentRequest) { r.PassMarks = floatPtr(11) }, wantField: "passMarks"},
		{name: "window shorter than duration", mutate: func(r *models.AssessmentRequest) {
			r.ValidFrom, r.ValidTo, r.Duration = &from, &to, intPtr(45)
		}, wantField: "validTo"},
		{name: "duplicate question", mutate: func(r *models.AssessmentRequest) { r.Questions[1].QuestionID = 1 }, wantField: "questions[1].questionId"},
		{name: "bad display mode", mutate: func(r *models.AssessmentRequest) { r.ResultDisplayMode = "never" }, wantField: "resultDisplayMode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validAssessment()
			tt.mutate(req)
			errs := v.ValidateAssessment(req)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			if _, ok := errs.Field(tt.wantField); !ok {
				t.Fatalf("expected error on %q, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	v := New()
	opt := func(answer string, correct bool) models.OptionRequest {
		return models.OptionRequest{Answer: answer, IsCorrect: correct}
	}

	tests := []struct {
		name    string
		req     models.QuestionRequest
		wantErr bool
	}{
		{
			name: "multiple choice ok",
			req:  models.QuestionRequest{Content: "2+2?", Type: models.MultipleChoice, Options: []models.OptionRequest{opt("3", false), opt("4", true)}},
		},
		{
			name:    "multiple choice two correct",
			req:     models.QuestionRequest{Content: "2+2?", Type: models.MultipleChoice, Options: []models.OptionRequest{opt("4", true), opt("four", true)}},
			wantErr: true,
		},
		{
			name: "multiple answer ok",
			req:  models.QuestionRequest{Content: "primes", Type: models.MultipleAnswer, Options: []models.OptionRequest{opt("2", true), opt("4", false), opt("5", true)}},
		},
		{
			name:    "true false three options",
			req:     models.QuestionRequest{Content: "sky blue", Type: models.TrueFalse, Options: []models.OptionRequest{opt("T", true), opt("F", false), opt("?", false)}},
			wantErr: true,
		},
		{
			name: "text without options",
			req:  models.QuestionRequest{Content: "Explain", Type: models.Text},
		},
		{
			name:    "fill in without answers",
			req:     models.QuestionRequest{Content: "___ is red", Type: models.FillIn},
			wantErr: true,
		},
		{
			name:    "unknown type",
			req:     models.QuestionRequest{Content: "x", Type: "essay"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateQuestion(&tt.req)
			if (len(errs) > 0) != tt.wantErr {
				t.Fatalf("ValidateQuestion() = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestValidateListParams(t *testing.T) {
	v := New()
	if errs := v.ValidateListParams(&models.ListParams{SearchColumn: "name", SearchType: models.SearchEquals}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if errs := v.ValidateListParams(&models.ListParams{SearchColumn: "name; drop table"}); len(errs) == 0 {
		t.Fatal("expected search column error")
	}
	if errs := v.ValidateListParams(&models.ListParams{SearchType: "regex"}); len(errs) == 0 {
		t.Fatal("expected search type error")
	}
}
