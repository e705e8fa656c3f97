package models

import "time"

type ResponseMetrics struct {
	ResponseCount      int      `json:"response_count"`
	TechnicalKeywords  []string `json:"technical_keywords"`
	TechnicalDepth     int      `json:"technical_depth"`
	AverageLength      int      `json:"average_length"`
	CommunicationScore int      `json:"communication_score"`
}

type DiagramMetrics struct {
	ComponentCount     int     `json:"component_count"`
	CompletenessScore  float64 `json:"completeness_score"`
	ArchitecturalScore float64 `json:"architectural_score"`
}

// ReportScores holds the deterministic part of the final report.
type ReportScores struct {
	Responses          ResponseMetrics `json:"responses"`
	Diagram            DiagramMetrics  `json:"diagram"`
	QuestionsCompleted int             `json:"questions_completed"`
	TotalQuestions     int             `json:"total_questions"`
	CompletionRatio    float64         `json:"completion_ratio"`
	SeniorityScore     float64         `json:"seniority_score"`
	SeniorityLabel     string          `json:"seniority_label"`
	OverallScore       float64         `json:"overall_score"`
}

type FinalReport struct {
	ID        int          `json:"id" db:"id"`
	SessionID string       `json:"session_id" db:"session_id"`
	Scores    ReportScores `json:"scores" db:"scores"`
	Narrative string       `json:"narrative" db:"narrative"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
