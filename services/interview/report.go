package interview

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"stash/models"

	"github.com/samber/lo"
)

const (
	maxScore                = 10.0
	communicationLengthStep = 50
	excerptLength           = 600
)

var (
	scalabilityVocabulary = []string{"scale", "scalability", "horizontal", "vertical", "sharding", "partition", "replication", "load balancing", "autoscaling", "elastic"}
	systemVocabulary      = []string{"database", "cache", "queue", "microservice", "api", "cdn", "storage", "index", "gateway", "message broker"}
	performanceVocabulary = []string{"latency", "throughput", "performance", "optimization", "bottleneck", "caching", "concurrency", "availability", "consistency", "fault tolerance"}
)

// ComputeResponseMetrics scores the candidate's answers from keyword coverage and length alone.
func ComputeResponseMetrics(history []models.Interaction) models.ResponseMetrics {
	responses := lo.Filter(history, func(it models.Interaction, _ int) bool {
		return it.MessageType == models.MessageUserResponse
	})

	metrics := models.ResponseMetrics{ResponseCount: len(responses), TechnicalKeywords: []string{}}
	if len(responses) == 0 {
		return metrics
	}

	corpus := strings.ToLower(strings.Join(lo.Map(responses, func(it models.Interaction, _ int) string { return it.Content }), " "))

	var hits []string
	for _, vocabulary := range [][]string{scalabilityVocabulary, systemVocabulary, performanceVocabulary} {
		hits = append(hits, lo.Filter(vocabulary, func(term string, _ int) bool { return strings.Contains(corpus, term) })...)
	}
	metrics.TechnicalKeywords = lo.Uniq(hits)
	metrics.TechnicalDepth = lo.Clamp(len(metrics.TechnicalKeywords), 0, int(maxScore))

	totalLength := lo.SumBy(responses, func(it models.Interaction) int { return len([]rune(strings.TrimSpace(it.Content))) })
	metrics.AverageLength = totalLength / len(responses)
	metrics.CommunicationScore = lo.Clamp(metrics.AverageLength/communicationLengthStep, 0, int(maxScore))

	return metrics
}

// ComputeDiagramMetrics scores the whiteboard from the analyzer's structural facts.
func ComputeDiagramMetrics(elements []models.Element) models.DiagramMetrics {
	analysis := AnalyzeDiagram(elements)

	checklist := []bool{analysis.HasDataStores, analysis.HasLoadBalancers, analysis.HasAPIs, analysis.HasConnections}
	present := lo.Count(checklist, true)

	architectural := 0.0
	architectural += lo.Ternary(analysis.HasConnections, 3.0, 0)
	architectural += lo.Ternary(analysis.HasDataStores, 2.5, 0)
	architectural += lo.Ternary(analysis.HasLoadBalancers, 2.0, 0)
	architectural += lo.Ternary(analysis.HasAPIs, 2.5, 0)
	architectural += lo.Ternary(analysis.HasQueues, 1.0, 0)
	architectural += lo.Ternary(analysis.HasCDN, 1.0, 0)

	return models.DiagramMetrics{
		ComponentCount:     analysis.ComponentCount,
		CompletenessScore:  round1(float64(present) / float64(len(checklist)) * maxScore),
		ArchitecturalScore: round1(math.Min(architectural, maxScore)),
	}
}

// ComputeScores blends response, diagram and progress metrics into the report's numbers.
func ComputeScores(template *models.InterviewTemplate, session *models.InterviewSession, history []models.Interaction, elements []models.Element) models.ReportScores {
	scores := models.ReportScores{
		Responses: ComputeResponseMetrics(history),
		Diagram:   ComputeDiagramMetrics(elements),
	}

	if template != nil {
		scores.TotalQuestions = len(template.Questions)
	}
	scores.QuestionsCompleted = questionsCompleted(session, scores.TotalQuestions)
	if scores.TotalQuestions > 0 {
		scores.CompletionRatio = round2(float64(scores.QuestionsCompleted) / float64(scores.TotalQuestions))
	}

	technical := float64(scores.Responses.TechnicalDepth)
	communication := float64(scores.Responses.CommunicationScore)

	scores.SeniorityScore = round1(technical*0.4 + communication*0.2 + scores.Diagram.ArchitecturalScore*0.25 + scores.Diagram.CompletenessScore*0.15)
	scores.SeniorityLabel = SeniorityLabel(scores.SeniorityScore, scores.CompletionRatio)

	overall := technical*0.35 + communication*0.2 + scores.Diagram.ArchitecturalScore*0.2 +
		scores.Diagram.CompletenessScore*0.15 + scores.CompletionRatio*1.0
	scores.OverallScore = round1(lo.Clamp(overall, 0, maxScore))

	return scores
}

func SeniorityLabel(score, completionRatio float64) string {
	switch {
	case score >= 8 && completionRatio >= 1:
		return "Senior/Staff"
	case score >= 6 && completionRatio >= 0.8:
		return "Mid-Level/Senior"
	case score >= 4:
		return "Junior/Mid-Level"
	default:
		return "Entry-Level/Junior"
	}
}

func questionsCompleted(session *models.InterviewSession, total int) int {
	if session == nil {
		return 0
	}
	if session.Status == models.SessionCompleted {
		return total
	}
	return lo.Clamp(session.CurrentQuestionIndex, 0, total)
}

// GetFinalReport computes the scores and asks the model to write the narrative around them.
func (s *Service) GetFinalReport(ctx context.Context, template *models.InterviewTemplate, session *models.InterviewSession, history []models.Interaction, elements []models.Element) *models.FinalReport {
	scores := ComputeScores(template, session, history, elements)

	report := &models.FinalReport{
		Scores:    scores,
		CreatedAt: time.Now(),
	}
	if session != nil {
		report.SessionID = session.ID
	}

	var references []string
	if s.references != nil && template != nil {
		topics := lo.Uniq(lo.FlatMap(template.Questions, func(q models.Question, _ int) []string { return q.EvaluationCriteria }))
		if len(topics) > 0 {
			chunks, err := s.references.QueryTopicChunks(ctx, topics, referenceChunkLimit)
			if err != nil {
				log.Printf("[WARN] Reference lookup for report failed: %v", err)
			} else {
				references = chunks
			}
		}
	}

	narrative, err := s.complete(ctx, buildReportPrompt(template, scores, history, references), reportMaxTokens)
	if err != nil || strings.TrimSpace(narrative) == "" {
		log.Printf("[WARN] Report narrative generation failed, rendering from scores: %v", err)
		narrative = renderFallbackReport(template, scores)
	}
	report.Narrative = strings.TrimSpace(narrative)

	log.Printf("[INFO] Final report ready: overall=%.1f seniority=%s", scores.OverallScore, scores.SeniorityLabel)
	return report
}

func buildReportPrompt(template *models.InterviewTemplate, scores models.ReportScores, history []models.Interaction, references []string) string {
	var prompt strings.Builder

	prompt.WriteString("You are a senior engineering interviewer writing the final evaluation of a system design interview.\n")
	prompt.WriteString("The numeric scores below are final. Do not change them; explain them.\n\n")

	prompt.WriteString("# Interview\n")
	if template != nil {
		prompt.WriteString(fmt.Sprintf("- Title: %s\n", template.Title))
		prompt.WriteString(fmt.Sprintf("- Difficulty: %s\n", template.DifficultyLevel))
	}
	prompt.WriteString(fmt.Sprintf("- Questions completed: %d of %d\n\n", scores.QuestionsCompleted, scores.TotalQuestions))

	prompt.WriteString("# Scores\n")
	prompt.WriteString(fmt.Sprintf("- Overall score: %.1f/10\n", scores.OverallScore))
	prompt.WriteString(fmt.Sprintf("- Estimated level: %s (blended %.1f/10)\n", scores.SeniorityLabel, scores.SeniorityScore))
	prompt.WriteString(fmt.Sprintf("- Technical depth: %d/10 (keywords: %s)\n", scores.Responses.TechnicalDepth, strings.Join(scores.Responses.TechnicalKeywords, ", ")))
	prompt.WriteString(fmt.Sprintf("- Communication: %d/10 (average answer length %d characters over %d answers)\n",
		scores.Responses.CommunicationScore, scores.Responses.AverageLength, scores.Responses.ResponseCount))
	prompt.WriteString(fmt.Sprintf("- Diagram completeness: %.1f/10\n", scores.Diagram.CompletenessScore))
	prompt.WriteString(fmt.Sprintf("- Architecture: %.1f/10 (%d components)\n\n", scores.Diagram.ArchitecturalScore, scores.Diagram.ComponentCount))

	if template != nil {
		prompt.WriteString("# Responses\n")
		for i, q := range template.Questions {
			answers := QuestionResponses(history, template, i)
			prompt.WriteString(fmt.Sprintf("## Question %d: %s\n", i+1, q.Text))
			if len(q.EvaluationCriteria) > 0 {
				prompt.WriteString(fmt.Sprintf("Expected topics: %s\n", strings.Join(q.EvaluationCriteria, ", ")))
			}
			if len(answers) == 0 {
				prompt.WriteString("(no answer recorded)\n\n")
				continue
			}
			for j, a := range answers {
				prompt.WriteString(fmt.Sprintf("Answer %d: %s\n", j+1, excerpt(a.Content)))
			}
			prompt.WriteString("\n")
		}
	}

	if len(references) > 0 {
		prompt.WriteString("# Reference material\n")
		for _, ref := range references {
			prompt.WriteString(ref)
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString(`Write the report in markdown with exactly these sections:
## Overall Assessment
## Strengths
## Areas for Improvement
## Specific Recommendations
## Comparison to Industry Expectations
## Action Plan
Refer to the candidate's actual answers. Be specific and constructive.`)

	return prompt.String()
}

func renderFallbackReport(template *models.InterviewTemplate, scores models.ReportScores) string {
	var b strings.Builder

	title := "System Design Interview"
	if template != nil && template.Title != "" {
		title = template.Title
	}

	b.WriteString(fmt.Sprintf("# %s: Evaluation\n\n", title))
	b.WriteString("## Overall Assessment\n")
	b.WriteString(fmt.Sprintf("Overall score **%.1f/10**, estimated level **%s**. Completed %d of %d questions.\n\n",
		scores.OverallScore, scores.SeniorityLabel, scores.QuestionsCompleted, scores.TotalQuestions))

	b.WriteString("## Strengths\n")
	if len(scores.Responses.TechnicalKeywords) > 0 {
		b.WriteString(fmt.Sprintf("- Discussed: %s\n", strings.Join(scores.Responses.TechnicalKeywords, ", ")))
	}
	if scores.Diagram.ComponentCount > 0 {
		b.WriteString(fmt.Sprintf("- Diagram with %d components\n", scores.Diagram.ComponentCount))
	}
	b.WriteString("\n## Areas for Improvement\n")
	if scores.Responses.TechnicalDepth < 5 {
		b.WriteString("- Go deeper on scalability, data storage and performance trade-offs\n")
	}
	if scores.Responses.CommunicationScore < 5 {
		b.WriteString("- Explain the reasoning behind each design decision in more detail\n")
	}
	if scores.Diagram.CompletenessScore < 5 {
		b.WriteString("- Draw the core building blocks: data stores, load balancers, APIs and the connections between them\n")
	}

	b.WriteString("\n## Scores\n")
	b.WriteString(fmt.Sprintf("- Technical depth: %d/10\n", scores.Responses.TechnicalDepth))
	b.WriteString(fmt.Sprintf("- Communication: %d/10\n", scores.Responses.CommunicationScore))
	b.WriteString(fmt.Sprintf("- Diagram completeness: %.1f/10\n", scores.Diagram.CompletenessScore))
	b.WriteString(fmt.Sprintf("- Architecture: %.1f/10\n", scores.Diagram.ArchitecturalScore))

	return b.String()
}

func excerpt(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return string(runes[:excerptLength]) + "..."
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
