package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "quiz-portal"
	EventVersion = "1.0"
)

// Event types. The topic is the configured prefix plus the type.
const (
	AttemptSubmitted = "attempt.submitted"
	AnswerMarked     = "answer.marked"
	ResultPublished  = "result.published"
)

// Event is the envelope written to the broker.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

func NewEvent(eventType string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type AttemptSubmittedData struct {
	AttemptID    uint     `json:"attemptId"`
	AssessmentID uint     `json:"assessmentId"`
	UserID       string   `json:"userId"`
	Status       string   `json:"status"`
	Score        float64  `json:"score"`
	TotalMarks   float64  `json:"totalMarks"`
	PendingText  int      `json:"pendingText"`
	SubmittedAt  string   `json:"submittedAt"`
	PassMarks    *float64 `json:"passMarks,omitempty"`
}

type AnswerMarkedData struct {
	AttemptID uint     `json:"attemptId"`
	AnswerID  uint     `json:"answerId"`
	MarkedBy  string   `json:"markedBy"`
	UserMarks *float64 `json:"userMarks"`
	Score     float64  `json:"score"`
}

type ResultPublishedData struct {
	AttemptID    uint    `json:"attemptId"`
	AssessmentID uint    `json:"assessmentId"`
	UserID       string  `json:"userId"`
	Score        float64 `json:"score"`
	PublishedBy  string  `json:"publishedBy"`
}

// EventPublisher sends domain events to whatever broker is configured.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
