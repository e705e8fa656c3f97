package interview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stash/models"
	"stash/services/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strongAnswer() string {
	return "We scale horizontally with sharding and replication behind load balancing. " +
		"Reads hit a cache in front of the database, writes go through a queue, static assets are served from a cdn, " +
		"and we track latency and throughput on every hop. " + strings.Repeat("More detail on the trade-offs. ", 15)
}

func strongDiagram() []models.Element {
	return diagram(
		shapes(models.ElementRectangle, 4),
		shapes(models.ElementArrow, 3),
		labels("Postgres DB", "NGINX", "REST API", "Kafka", "CloudFront"),
	)
}

func TestComputeScoresEmptyInterview(t *testing.T) {
	t.Parallel()

	session := &models.InterviewSession{Status: models.SessionInProgress}
	scores := ComputeScores(urlShortenerTemplate(), session, nil, nil)

	assert.Zero(t, scores.Responses.ResponseCount)
	assert.NotNil(t, scores.Responses.TechnicalKeywords)
	assert.Zero(t, scores.Diagram.CompletenessScore)
	assert.Zero(t, scores.OverallScore)
	assert.Equal(t, 2, scores.TotalQuestions)
	assert.Zero(t, scores.QuestionsCompleted)
	assert.Equal(t, "Entry-Level/Junior", scores.SeniorityLabel)
}

func TestComputeScoresStrongInterview(t *testing.T) {
	t.Parallel()

	session := &models.InterviewSession{Status: models.SessionCompleted, CurrentQuestionIndex: 1}
	history := []models.Interaction{
		asked(0, "How would you generate short codes?"),
		response(0, strongAnswer()),
		asked(1, "How would you scale reads?"),
		response(1, strongAnswer()),
	}

	scores := ComputeScores(urlShortenerTemplate(), session, history, strongDiagram())

	assert.Equal(t, 2, scores.Responses.ResponseCount)
	assert.Equal(t, 10, scores.Responses.TechnicalDepth)
	assert.Equal(t, 10, scores.Responses.CommunicationScore)
	assert.Equal(t, 10.0, scores.Diagram.CompletenessScore)
	assert.Equal(t, 10.0, scores.Diagram.ArchitecturalScore)
	assert.Equal(t, 2, scores.QuestionsCompleted)
	assert.Equal(t, 1.0, scores.CompletionRatio)
	assert.Equal(t, 10.0, scores.SeniorityScore)
	assert.Equal(t, 10.0, scores.OverallScore)
	assert.Equal(t, "Senior/Staff", scores.SeniorityLabel)
}

func TestComputeScoresStaysInBounds(t *testing.T) {
	t.Parallel()

	template := urlShortenerTemplate()
	histories := [][]models.Interaction{
		nil,
		{response(0, "ok")},
		{response(0, strongAnswer()), response(0, strongAnswer()), response(1, strings.Repeat("cache ", 500))},
	}
	sessions := []*models.InterviewSession{
		nil,
		{Status: models.SessionInProgress, CurrentQuestionIndex: 7},
		{Status: models.SessionCompleted},
	}

	for _, history := range histories {
		for _, session := range sessions {
			scores := ComputeScores(template, session, history, strongDiagram())
			assert.GreaterOrEqual(t, scores.OverallScore, 0.0)
			assert.LessOrEqual(t, scores.OverallScore, 10.0)
			assert.LessOrEqual(t, scores.QuestionsCompleted, scores.TotalQuestions)
			assert.LessOrEqual(t, scores.Responses.CommunicationScore, 10)
		}
	}
}

func TestComputeDiagramMetrics(t *testing.T) {
	t.Parallel()

	metrics := ComputeDiagramMetrics(diagram(shapes(models.ElementRectangle, 2), shapes(models.ElementArrow, 1), labels("redis")))

	assert.Equal(t, 2, metrics.ComponentCount)
	assert.Equal(t, 5.0, metrics.CompletenessScore)
	assert.Equal(t, 5.5, metrics.ArchitecturalScore)
}

func TestSeniorityLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score float64
		ratio float64
		want  string
	}{
		{score: 9, ratio: 1, want: "Senior/Staff"},
		{score: 9, ratio: 0.5, want: "Junior/Mid-Level"},
		{score: 9, ratio: 0.8, want: "Mid-Level/Senior"},
		{score: 6, ratio: 1, want: "Mid-Level/Senior"},
		{score: 5.9, ratio: 1, want: "Junior/Mid-Level"},
		{score: 3.9, ratio: 1, want: "Entry-Level/Junior"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SeniorityLabel(tt.score, tt.ratio), "score %.1f ratio %.1f", tt.score, tt.ratio)
	}
}

func TestGetFinalReportFallsBackToScores(t *testing.T) {
	t.Parallel()

	session := &models.InterviewSession{ID: "session-1", Status: models.SessionCompleted}
	service := NewService(llm.NewFakeClient().FailAll(errors.New("connection refused")))

	report := service.GetFinalReport(context.Background(), urlShortenerTemplate(), session, []models.Interaction{response(0, strongAnswer())}, nil)

	require.NotNil(t, report)
	assert.Equal(t, "session-1", report.SessionID)
	assert.Contains(t, report.Narrative, "## Overall Assessment")
	assert.Contains(t, report.Narrative, "Design a URL shortener")
	assert.False(t, report.CreatedAt.IsZero())
}

func TestGetFinalReportUsesModelNarrative(t *testing.T) {
	t.Parallel()

	fake := llm.NewFakeClient().On("writing the final evaluation", "\n## Overall Assessment\nClear and well structured.\n")
	retriever := &fakeRetriever{chunks: []string{"Hashing trades space for speed."}}
	session := &models.InterviewSession{ID: "session-2", Status: models.SessionCompleted}
	history := []models.Interaction{response(0, "Use base62 hashing"), response(1, "Add a cache")}

	report := NewService(fake, WithReferences(retriever)).GetFinalReport(context.Background(), urlShortenerTemplate(), session, history, strongDiagram())

	assert.Equal(t, "## Overall Assessment\nClear and well structured.", report.Narrative)
	require.Len(t, retriever.topics, 1)
	assert.ElementsMatch(t, []string{"hashing", "collisions", "caching", "replication"}, retriever.topics[0])

	prompt := fake.Prompts()[0]
	assert.Contains(t, prompt, "Overall score: ")
	assert.Contains(t, prompt, "Answer 1: Use base62 hashing")
	assert.Contains(t, prompt, "Hashing trades space for speed.")
}
