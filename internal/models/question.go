package models

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	MultipleAnswer QuestionType = "multiple_answer"
	TrueFalse      QuestionType = "true_false"
	FillIn         QuestionType = "fill_in"
	Text           QuestionType = "text"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, MultipleAnswer, TrueFalse, FillIn, Text:
		return true
	}
	return false
}

// IsChoice reports whether answers reference option ids.
func (t QuestionType) IsChoice() bool {
	switch t {
	case MultipleChoice, MultipleAnswer, TrueFalse:
		return true
	}
	return false
}

// RequiresManualMarking reports whether the answer is scored by a person.
func (t QuestionType) RequiresManualMarking() bool {
	return t == Text
}

type Question struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Content     string       `json:"content" gorm:"type:text;not null"`
	Type        QuestionType `json:"type" gorm:"size:32;not null;index"`
	Explanation *string      `json:"explanation" gorm:"type:text"`
	CategoryID  *uint        `json:"categoryId" gorm:"index"`
	PassageID   *uint        `json:"passageId" gorm:"index"`

	CreatedBy string         `json:"createdBy" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Options  []Option  `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Passage  *Passage  `json:"passage,omitempty" gorm:"foreignKey:PassageID"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectOptionIDs returns the ids of all correct options in ascending order.
func (q *Question) CorrectOptionIDs() []uint {
	var ids []uint
	for _, o := range q.Options {
		if o.IsCorrect {
			ids = append(ids, o.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Blanks groups the accepted answers of a fill-in question by blank order.
// Options without a blank order belong to blank 0.
func (q *Question) Blanks() [][]string {
	byOrder := map[int][]string{}
	for _, o := range q.Options {
		if !o.IsCorrect {
			continue
		}
		order := 0
		if o.BlankOrder != nil {
			order = *o.BlankOrder
		}
		byOrder[order] = append(byOrder[order], o.Answer)
	}
	orders := make([]int, 0, len(byOrder))
	for k := range byOrder {
		orders = append(orders, k)
	}
	sort.Ints(orders)

	blanks := make([][]string, 0, len(orders))
	for _, k := range orders {
		blanks = append(blanks, byOrder[k])
	}
	return blanks
}

type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"questionId" gorm:"not null;index"`
	Answer     string `json:"answer" gorm:"type:text;not null"`
	IsCorrect  bool   `json:"isCorrect" gorm:"default:false"`
	BlankOrder *int   `json:"blankOrder"`
}

func (Option) TableName() string {
	return "question_options"
}

type Category struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:100;uniqueIndex"`
	CreatedBy string    `json:"createdBy" gorm:"size:255"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Category) TableName() string {
	return "question_categories"
}

type Passage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"not null;size:200"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedBy string    `json:"createdBy" gorm:"size:255"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Passage) TableName() string {
	return "passages"
}

type Subject struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:100"`
	Code      string    `json:"code" gorm:"not null;size:32;uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Subject) TableName() string {
	return "subjects"
}
