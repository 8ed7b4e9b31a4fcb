package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/quiz-portal/internal/validator"
)

var (
	ErrAssessmentNotFound     = errors.New("assessment not found")
	ErrAssessmentNotPublished = errors.New("assessment is not published")
	ErrAssessmentNotOpen      = errors.New("assessment is outside its validity window")
	ErrAssessmentNotDeletable = errors.New("assessment has attempts and cannot be deleted")

	ErrQuestionNotFound = errors.New("question not found")
	ErrQuestionInUse    = errors.New("question is used by an assessment")

	ErrSubjectNotFound = errors.New("subject not found")
	ErrPassageNotFound = errors.New("passage not found")
	ErrGroupNotFound   = errors.New("group not found")
	ErrMemberNotFound  = errors.New("group member not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicate       = errors.New("record already exists")

	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptLimitExceeded = errors.New("maximum number of attempts reached")
	ErrAttemptNotActive     = errors.New("attempt is not in progress")
	ErrAttemptTimeExpired   = errors.New("attempt time has expired")
	ErrAttemptNotSubmitted  = errors.New("attempt has not been submitted")

	ErrAnswerNotFound     = errors.New("answer not found")
	ErrMarkingNotAllowed  = errors.New("assessment does not require marking")
	ErrUnmarkedAnswers    = errors.New("text answers must be marked before publishing")
	ErrResultNotAvailable = errors.New("result is not available yet")
)

type ValidationError = validator.ValidationError
type ValidationErrors = validator.ValidationErrors

func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business",
	}
}

// BusinessRuleError reports a request that is well-formed but breaks a domain rule.
type BusinessRuleError struct {
	Rule    string         `json:"rule"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]any) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

type PermissionError struct {
	UserID     string `json:"userId"`
	ResourceID uint   `json:"resourceId"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}
