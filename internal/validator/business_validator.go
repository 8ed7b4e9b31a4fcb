package validator

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/quiz-portal/internal/models"
)

var searchColumnPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.]*$`)

func (v *Validator) registerBusinessRules() {
	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return models.QuestionType(fl.Field().String()).Valid()
	})

	v.validate.RegisterValidation("result_display_mode", func(fl validator.FieldLevel) bool {
		return models.ResultDisplayMode(fl.Field().String()).Valid()
	})

	// Column names are matched against a whitelist later; this only rejects obvious junk.
	v.validate.RegisterValidation("search_column", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || searchColumnPattern.MatchString(s)
	})
}

// ValidateAssessment runs struct validation plus the authoring rules shared
// with the wizard: pass marks bound, marks sum and validity window.
func (v *Validator) ValidateAssessment(req *models.AssessmentRequest) ValidationErrors {
	var errs ValidationErrors
	if err := v.Validate(req); err != nil {
		errs = append(errs, ToValidationErrors(err)...)
	}

	if err := CheckPassMarks(req.PassMarks, req.TotalMarks); err != nil {
		errs = append(errs, ValidationError{Field: "passMarks", Message: "must be between 0 and totalMarks", Value: req.PassMarks, Rule: "pass_marks"})
	}

	if req.IsGraded() && len(req.Questions) > 0 {
		marks := make([]float64, 0, len(req.Questions))
		for _, q := range req.Questions {
			marks = append(marks, q.Marks)
		}
		if err := CheckMarksSum(req.TotalMarks, marks); err != nil {
			var mm *MarksMismatchError
			errors.As(err, &mm)
			errs = append(errs, ValidationError{Field: "questions", Message: err.Error(), Value: mm.Actual, Rule: "marks_sum"})
		}
	}

	if err := CheckValidityWindow(req.ValidFrom, req.ValidTo, req.Duration); err != nil {
		var we *WindowError
		errors.As(err, &we)
		errs = append(errs, ValidationError{Field: we.Field, Message: we.Message, Value: req.ValidTo, Rule: "validity_window"})
	}

	seen := make(map[uint]bool, len(req.Questions))
	for i, q := range req.Questions {
		if seen[q.QuestionID] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("questions[%d].questionId", i),
				Message: "question is listed more than once",
				Value:   q.QuestionID,
				Rule:    "unique",
			})
		}
		seen[q.QuestionID] = true
	}

	return errs
}

// ValidateQuestion checks the option set matches the question type.
func (v *Validator) ValidateQuestion(req *models.QuestionRequest) ValidationErrors {
	var errs ValidationErrors
	if err := v.Validate(req); err != nil {
		errs = append(errs, ToValidationErrors(err)...)
		return errs
	}

	correct := 0
	for _, o := range req.Options {
		if o.IsCorrect {
			correct++
		}
	}

	fail := func(msg string) {
		errs = append(errs, ValidationError{Field: "options", Message: msg, Value: len(req.Options), Rule: "question_options"})
	}

	switch req.Type {
	case models.MultipleChoice:
		if len(req.Options) < 2 {
			fail("multiple choice questions need at least 2 options")
		}
		if correct != 1 {
			fail("multiple choice questions need exactly 1 correct option")
		}
	case models.TrueFalse:
		if len(req.Options) != 2 {
			fail("true/false questions need exactly 2 options")
		}
		if correct != 1 {
			fail("true/false questions need exactly 1 correct option")
		}
	case models.MultipleAnswer:
		if len(req.Options) < 2 {
			fail("multiple answer questions need at least 2 options")
		}
		if correct < 1 {
			fail("multiple answer questions need at least 1 correct option")
		}
	case models.FillIn:
		if correct < 1 {
			fail("fill-in questions need at least 1 accepted answer")
		}
	case models.Text:
		if len(req.Options) > 0 {
			fail("text questions do not take options")
		}
	}

	return errs
}

// ValidateListParams rejects malformed search input before it reaches the repositories.
func (v *Validator) ValidateListParams(p *models.ListParams) ValidationErrors {
	var errs ValidationErrors
	if err := v.Var(p.SearchColumn, "search_column"); err != nil {
		errs = append(errs, ValidationError{Field: "searchColumn", Message: "contains unsupported characters", Value: p.SearchColumn, Rule: "search_column"})
	}
	if p.SearchType != "" && !p.SearchType.Valid() {
		errs = append(errs, ValidationError{Field: "searchType", Message: "must be one of: contains equals starts_with", Value: p.SearchType, Rule: "oneof"})
	}
	return errs
}
