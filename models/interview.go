package models

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionTerminated SessionStatus = "terminated"
)

type MessageType string

const (
	MessageUserResponse MessageType = "user_response"
	MessageAIQuestion   MessageType = "ai_question"
	MessageAIFeedback   MessageType = "ai_feedback"
	MessageSystem       MessageType = "system"
)

type Question struct {
	Text               string   `json:"text" yaml:"text"`
	EvaluationCriteria []string `json:"evaluation_criteria" yaml:"evaluation_criteria"`
	ReferenceNotes     string   `json:"reference_notes,omitempty" yaml:"reference_notes"`
}

// InterviewTemplate is read-only to the interviewer. Question order is the only progression order.
type InterviewTemplate struct {
	ID                int        `json:"id" db:"id"`
	Title             string     `json:"title" db:"title" yaml:"title"`
	DifficultyLevel   string     `json:"difficulty_level" db:"difficulty_level" yaml:"difficulty_level"`
	Questions         []Question `json:"questions" db:"questions" yaml:"questions"`
	EstimatedDuration int        `json:"estimated_duration" db:"estimated_duration" yaml:"estimated_duration"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

type CreateTemplateRequest struct {
	Title             string     `json:"title"`
	DifficultyLevel   string     `json:"difficulty_level"`
	Questions         []Question `json:"questions"`
	EstimatedDuration int        `json:"estimated_duration"`
}

type InterviewSession struct {
	ID                   string        `json:"id" db:"id"`
	TemplateID           int           `json:"template_id" db:"template_id"`
	CurrentQuestionIndex int           `json:"current_question_index" db:"current_question_index"`
	Status               SessionStatus `json:"status" db:"status"`
	CreatedAt            time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at" db:"updated_at"`
}

type UpdateSessionRequest struct {
	CurrentQuestionIndex *int           `json:"current_question_index,omitempty"`
	Status               *SessionStatus `json:"status,omitempty"`
}

type InteractionMetadata struct {
	QuestionIndex  *int     `json:"question_index,omitempty"`
	Hints          []string `json:"hints,omitempty"`
	AdvanceReasons []string `json:"advance_reasons,omitempty"`
	Outcome        string   `json:"outcome,omitempty"`
}

// Interaction is an append-only transcript entry, ordered by Timestamp.
type Interaction struct {
	ID          int                 `json:"id" db:"id"`
	SessionID   string              `json:"session_id" db:"session_id"`
	MessageType MessageType         `json:"message_type" db:"message_type"`
	Content     string              `json:"content" db:"content"`
	Timestamp   time.Time           `json:"timestamp" db:"timestamp"`
	Metadata    InteractionMetadata `json:"metadata" db:"metadata"`
}

func (i Interaction) TaggedWith(questionIndex int) bool {
	return i.Metadata.QuestionIndex != nil && *i.Metadata.QuestionIndex == questionIndex
}

func QuestionIndexTag(questionIndex int) *int {
	return &questionIndex
}

type StartSessionRequest struct {
	TemplateID int `json:"template_id"`
}

type SubmitResponseRequest struct {
	Content string `json:"content"`
}

type StartSessionResponse struct {
	Session  *InterviewSession `json:"session"`
	Question string            `json:"question"`
}

type SubmitResponseResponse struct {
	Result  TurnResult        `json:"result"`
	Session *InterviewSession `json:"session"`
}
