package models

import (
	"encoding/json"
	"time"
)

// ===== AUTHORING =====

type AssessmentRequest struct {
	Name              string                      `json:"name" validate:"required,min=1,max=200"`
	Description       *string                     `json:"description" validate:"omitempty,max=2000"`
	SubjectID         uint                        `json:"subjectId" validate:"required"`
	Duration          *int                        `json:"duration" validate:"omitempty,min=0,max=1440"`
	TotalMarks        float64                     `json:"totalMarks" validate:"required,gt=0,lte=10000"`
	PassMarks         *float64                    `json:"passMarks" validate:"omitempty,gte=0"`
	MaxAttempts       *int                        `json:"maxAttempts" validate:"omitempty,min=0,max=100"`
	ValidFrom         *time.Time                  `json:"validFrom"`
	ValidTo           *time.Time                  `json:"validTo"`
	IsPublished       bool                        `json:"isPublished"`
	RequiredMark      *bool                       `json:"requiredMark"`
	ResultDisplayMode ResultDisplayMode           `json:"resultDisplayMode" validate:"omitempty,oneof=immediate after_publish score_only"`
	Questions         []AssessmentQuestionRequest `json:"questions" validate:"dive"`
	GroupIDs          []uint                      `json:"groupIds"`
}

// IsGraded reports whether marks apply; an absent requiredMark means graded.
func (r *AssessmentRequest) IsGraded() bool {
	return r.RequiredMark == nil || *r.RequiredMark
}

type AssessmentQuestionRequest struct {
	QuestionID uint    `json:"questionId" validate:"required"`
	Marks      float64 `json:"marks" validate:"gte=0"`
	Order      int     `json:"order" validate:"gte=0"`
}

type QuestionRequest struct {
	Content     string          `json:"content" validate:"required,min=1"`
	Type        QuestionType    `json:"type" validate:"required,oneof=multiple_choice multiple_answer true_false fill_in text"`
	Explanation *string         `json:"explanation"`
	CategoryID  *uint           `json:"categoryId"`
	PassageID   *uint           `json:"passageId"`
	Options     []OptionRequest `json:"options" validate:"dive"`
}

type OptionRequest struct {
	Answer     string `json:"answer" validate:"required"`
	IsCorrect  bool   `json:"isCorrect"`
	BlankOrder *int   `json:"blankOrder" validate:"omitempty,min=0"`
}

type SubjectRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
	Code string `json:"code" validate:"required,min=1,max=32"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type PassageRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"required"`
}

type GroupRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	MemberIDs   []string `json:"memberIds"`
}

// ===== TAKING =====

type SubmitAttemptRequest struct {
	AttemptID uint              `json:"attemptId" validate:"required"`
	Answers   []SubmittedAnswer `json:"answers" validate:"dive"`
}

// SubmittedAnswer carries a JSON string (option id or text) or a JSON array of option ids.
type SubmittedAnswer struct {
	QuestionID uint            `json:"questionId" validate:"required"`
	Answer     json.RawMessage `json:"answer"`
}

// SaveAnswerRequest stores one answer of an in-progress attempt before submission.
type SaveAnswerRequest struct {
	Answer json.RawMessage `json:"answer"`
}

// AttemptQuestion is a question as shown to a taker; correctness is never included.
type AttemptQuestion struct {
	QuestionID uint            `json:"questionId"`
	Content    string          `json:"content"`
	Type       QuestionType    `json:"type"`
	Marks      float64         `json:"marks"`
	Order      int             `json:"order"`
	Options    []OptionView    `json:"options"`
	BlankCount int             `json:"blankCount,omitempty"`
	Passage    *Passage        `json:"passage,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
}

type OptionView struct {
	ID         uint   `json:"id"`
	Answer     string `json:"answer"`
	BlankOrder *int   `json:"blankOrder,omitempty"`
}

type AttemptSession struct {
	Attempt        AssessmentAttempt `json:"attempt"`
	AssessmentName string            `json:"assessmentName"`
	Duration       *int              `json:"duration"`
	TotalMarks     float64           `json:"totalMarks"`
	Questions      []AttemptQuestion `json:"questions"`
}

// ===== REVIEW =====

type MarkAnswerRequest struct {
	UserMarks *float64 `json:"userMarks" validate:"omitempty,gte=0"`
	Comment   *string  `json:"comment" validate:"omitempty,max=5000"`
}

type AttemptResult struct {
	AttemptID         uint              `json:"attemptId"`
	UserID            string            `json:"userId"`
	AssessmentID      uint              `json:"assessmentId"`
	AssessmentName    string            `json:"assessmentName"`
	TotalMarks        float64           `json:"totalMarks"`
	PassMarks         *float64          `json:"passMarks"`
	RequiredMark      bool              `json:"requiredMark"`
	ResultDisplayMode ResultDisplayMode `json:"resultDisplayMode"`
	Status            AttemptStatus     `json:"status"`
	Score             *float64          `json:"score"`
	IsPublished       bool              `json:"isPublished"`
	SubmittedAt       *time.Time        `json:"submittedAt"`
	CanMark           bool              `json:"canMark"`
	Questions         []QuestionResult  `json:"questions"`
}

type QuestionResult struct {
	AnswerID      uint            `json:"answerId"`
	QuestionID    uint            `json:"questionId"`
	Content       string          `json:"content"`
	Type          QuestionType    `json:"type"`
	Options       []OptionView    `json:"options"`
	UserAnswer    json.RawMessage `json:"userAnswer"`
	CorrectAnswer json.RawMessage `json:"correctAnswer,omitempty"`
	Marks         *float64        `json:"marks,omitempty"`
	UserMarks     *float64        `json:"userMarks"`
	Comment       *string         `json:"comment"`
	Explanation   *string         `json:"explanation,omitempty"`
}

// ===== LISTING =====

type SearchType string

const (
	SearchContains   SearchType = "contains"
	SearchEquals     SearchType = "equals"
	SearchStartsWith SearchType = "starts_with"
)

func (s SearchType) Valid() bool {
	switch s {
	case SearchContains, SearchEquals, SearchStartsWith:
		return true
	}
	return false
}

// ListParams are the query parameters shared by every list endpoint. Page is 1-based on the wire.
type ListParams struct {
	Page          int               `json:"page"`
	PerPage       int               `json:"perPage"`
	SearchType    SearchType        `json:"searchType,omitempty"`
	SearchColumn  string            `json:"searchColumn,omitempty"`
	SearchKeyword string            `json:"searchKeyword,omitempty"`
	Filters       map[string]string `json:"filters,omitempty"`
	Include       []string          `json:"include,omitempty"`
}

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Normalize clamps paging values into range.
func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage <= 0 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	if !p.SearchType.Valid() {
		p.SearchType = SearchContains
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func (p *ListParams) Includes(rel string) bool {
	for _, inc := range p.Include {
		if inc == rel {
			return true
		}
	}
	return false
}
