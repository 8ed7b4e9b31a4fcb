package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptTimedOut   AttemptStatus = "timed_out"
)

type AssessmentAttempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	AssessmentID  uint          `json:"assessmentId" gorm:"not null;index;uniqueIndex:idx_attempt_user_number"`
	UserID        string        `json:"userId" gorm:"not null;index;size:255;uniqueIndex:idx_attempt_user_number"`
	AttemptNumber int           `json:"attemptNumber" gorm:"not null;uniqueIndex:idx_attempt_user_number"`
	Status        AttemptStatus `json:"status" gorm:"size:32;default:in_progress;index"`

	StartedAt   time.Time  `json:"startedAt"`
	Deadline    *time.Time `json:"deadline" gorm:"index"`
	SubmittedAt *time.Time `json:"submittedAt"`

	Score       float64    `json:"score"`
	IsPublished bool       `json:"isPublished" gorm:"default:false"`
	PublishedAt *time.Time `json:"publishedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Assessment *Assessment     `json:"assessment,omitempty" gorm:"foreignKey:AssessmentID"`
	Answers    []AttemptAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

func (AssessmentAttempt) TableName() string {
	return "assessment_attempts"
}

func (a *AssessmentAttempt) IsFinished() bool {
	return a.Status == AttemptSubmitted || a.Status == AttemptTimedOut
}

// AttemptAnswer stores one submitted answer. Answer holds a JSON string for
// single choice and free text, or a JSON array of option ids for multiple answer.
type AttemptAnswer struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	AttemptID  uint           `json:"attemptId" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID uint           `json:"questionId" gorm:"not null;uniqueIndex:idx_attempt_question"`
	Answer     datatypes.JSON `json:"answer" gorm:"type:jsonb"`

	// UserMarks stays nil until the answer is scored.
	UserMarks *float64   `json:"userMarks"`
	Comment   *string    `json:"comment" gorm:"type:text"`
	MarkedBy  *string    `json:"markedBy" gorm:"size:255"`
	MarkedAt  *time.Time `json:"markedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// ScoreOf totals the non-nil marks.
func ScoreOf(answers []AttemptAnswer) float64 {
	var total float64
	for _, a := range answers {
		if a.UserMarks != nil {
			total += *a.UserMarks
		}
	}
	return total
}
