package models

import (
	"time"

	"gorm.io/gorm"
)

// ResultDisplayMode controls what a taker sees after submitting.
type ResultDisplayMode string

const (
	ResultDisplayImmediate    ResultDisplayMode = "immediate"
	ResultDisplayAfterPublish ResultDisplayMode = "after_publish"
	ResultDisplayScoreOnly    ResultDisplayMode = "score_only"
)

func (m ResultDisplayMode) Valid() bool {
	switch m {
	case ResultDisplayImmediate, ResultDisplayAfterPublish, ResultDisplayScoreOnly:
		return true
	}
	return false
}

type Assessment struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:200;index"`
	Description *string `json:"description" gorm:"type:text"`
	SubjectID   uint    `json:"subjectId" gorm:"not null;index"`

	// Duration in minutes; nil or zero means unlimited.
	Duration   *int     `json:"duration"`
	TotalMarks float64  `json:"totalMarks" gorm:"not null"`
	PassMarks  *float64 `json:"passMarks"`
	// MaxAttempts nil or zero means unlimited.
	MaxAttempts *int `json:"maxAttempts"`

	ValidFrom   *time.Time `json:"validFrom"`
	ValidTo     *time.Time `json:"validTo"`
	IsPublished bool       `json:"isPublished" gorm:"default:false;index"`

	// RequiredMark false turns the assessment into an ungraded survey.
	RequiredMark      bool              `json:"requiredMark" gorm:"not null"`
	ResultDisplayMode ResultDisplayMode `json:"resultDisplayMode" gorm:"size:32;default:immediate"`

	CreatedBy string         `json:"createdBy" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Subject   *Subject             `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Questions []AssessmentQuestion `json:"questions,omitempty" gorm:"foreignKey:AssessmentID;constraint:OnDelete:CASCADE"`
	Groups    []Group              `json:"groups,omitempty" gorm:"many2many:assessment_groups"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// IsUnlimitedDuration reports whether attempts run without a deadline.
func (a *Assessment) IsUnlimitedDuration() bool {
	return a.Duration == nil || *a.Duration <= 0
}

func (a *Assessment) IsUnlimitedAttempts() bool {
	return a.MaxAttempts == nil || *a.MaxAttempts <= 0
}

// IsOpenAt reports whether now falls inside the validity window.
func (a *Assessment) IsOpenAt(now time.Time) bool {
	if a.ValidFrom != nil && now.Before(*a.ValidFrom) {
		return false
	}
	if a.ValidTo != nil && now.After(*a.ValidTo) {
		return false
	}
	return true
}

// GroupIDs returns the ids of the assigned groups.
func (a *Assessment) GroupIDs() []uint {
	ids := make([]uint, 0, len(a.Groups))
	for _, g := range a.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

// AssessmentQuestion binds a bank question to an assessment with its marks and position.
type AssessmentQuestion struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	AssessmentID uint    `json:"assessmentId" gorm:"not null;uniqueIndex:idx_assessment_question"`
	QuestionID   uint    `json:"questionId" gorm:"not null;uniqueIndex:idx_assessment_question"`
	Marks        float64 `json:"marks" gorm:"not null;default:0"`
	Order        int     `json:"order" gorm:"column:order;not null;default:0"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}

// MarksSum totals the marks over the given references.
func MarksSum(questions []AssessmentQuestion) float64 {
	var sum float64
	for _, q := range questions {
		sum += q.Marks
	}
	return sum
}
