package interview

import (
	"fmt"
	"strings"

	"stash/models"

	"github.com/samber/lo"
)

const (
	readyCompletionThreshold     = 70
	persistenceResponseThreshold = 3
	persistenceCompletionBar     = 60
	coverageThreshold            = 0.6
	coverageWindow               = 2
	diagramComponentThreshold    = 3
	maxResponsesPerQuestion      = 5
)

type ProgressionInput struct {
	QuestionIndex int
	Template      *models.InterviewTemplate
	Interactions  []models.Interaction
	Diagram       models.DiagramAnalysis
	Evaluation    models.Evaluation
}

type ProgressionDecision struct {
	Advance bool
	Reasons []string
}

// advanceRule is one independent signal. Any rule that fires advances the interview.
type advanceRule struct {
	name  string
	check func(in ProgressionInput, responses []models.Interaction) (bool, string)
}

var advanceRules = []advanceRule{
	{name: "model_ready", check: modelReadyRule},
	{name: "persistence", check: persistenceRule},
	{name: "rubric_coverage", check: rubricCoverageRule},
	{name: "diagram_depth", check: diagramDepthRule},
	{name: "response_cap", check: responseCapRule},
}

// ShouldAdvance ORs every rule and reports which ones fired.
func ShouldAdvance(in ProgressionInput) ProgressionDecision {
	responses := QuestionResponses(in.Interactions, in.Template, in.QuestionIndex)

	decision := ProgressionDecision{Reasons: []string{}}
	for _, rule := range advanceRules {
		if fired, reason := rule.check(in, responses); fired {
			decision.Advance = true
			decision.Reasons = append(decision.Reasons, fmt.Sprintf("%s: %s", rule.name, reason))
		}
	}

	return decision
}

func modelReadyRule(in ProgressionInput, _ []models.Interaction) (bool, string) {
	if in.Evaluation.ReadyForNext && in.Evaluation.Completion >= readyCompletionThreshold {
		return true, fmt.Sprintf("model marked ready at %d%% completion", in.Evaluation.Completion)
	}
	return false, ""
}

func persistenceRule(in ProgressionInput, responses []models.Interaction) (bool, string) {
	if len(responses) >= persistenceResponseThreshold && in.Evaluation.Completion >= persistenceCompletionBar {
		return true, fmt.Sprintf("%d responses with %d%% completion", len(responses), in.Evaluation.Completion)
	}
	return false, ""
}

func rubricCoverageRule(in ProgressionInput, responses []models.Interaction) (bool, string) {
	question := questionAt(in.Template, in.QuestionIndex)
	if question == nil || len(responses) == 0 {
		return false, ""
	}

	coverage, matched := RubricCoverage(question.EvaluationCriteria, responses)
	if coverage >= coverageThreshold {
		return true, fmt.Sprintf("covered %d/%d criteria (%s)", len(matched), len(question.EvaluationCriteria), strings.Join(matched, ", "))
	}
	return false, ""
}

func diagramDepthRule(in ProgressionInput, _ []models.Interaction) (bool, string) {
	if in.QuestionIndex >= 1 && in.Diagram.ComponentCount >= diagramComponentThreshold && in.Diagram.HasConnections {
		return true, fmt.Sprintf("diagram has %d connected components", in.Diagram.ComponentCount)
	}
	return false, ""
}

func responseCapRule(_ ProgressionInput, responses []models.Interaction) (bool, string) {
	if len(responses) >= maxResponsesPerQuestion {
		return true, fmt.Sprintf("emergency advancement after %d responses", len(responses))
	}
	return false, ""
}

// RubricCoverage measures how many criteria the last two responses mention.
// A question without criteria has zero coverage, so only the other rules can advance it.
func RubricCoverage(criteria []string, responses []models.Interaction) (float64, []string) {
	criteria = lo.Filter(criteria, func(c string, _ int) bool { return strings.TrimSpace(c) != "" })
	if len(criteria) == 0 || len(responses) == 0 {
		return 0, nil
	}

	recent := responses
	if len(recent) > coverageWindow {
		recent = recent[len(recent)-coverageWindow:]
	}
	text := strings.ToLower(strings.Join(lo.Map(recent, func(r models.Interaction, _ int) string { return r.Content }), " "))

	matched := lo.Filter(criteria, func(c string, _ int) bool {
		return criterionMentioned(text, c)
	})

	return float64(len(matched)) / float64(len(criteria)), matched
}

var criterionSuffixes = []string{"ability", "ibility", "ization", "ation", "ency", "ancy", "ing", "ment", "ity", "es", "ed", "er", "s"}

// criterionMentioned matches the phrase, its no-space form, or its stemmed form ("scalability" -> "scal").
func criterionMentioned(text, criterion string) bool {
	phrase := strings.ToLower(strings.TrimSpace(criterion))
	if strings.Contains(text, phrase) || strings.Contains(text, strings.ReplaceAll(phrase, " ", "")) {
		return true
	}

	stemmed := strings.Join(lo.Map(strings.Fields(phrase), func(w string, _ int) string { return stem(w) }), " ")
	return stemmed != phrase && strings.Contains(text, stemmed)
}

func stem(word string) string {
	for _, suffix := range criterionSuffixes {
		if root, ok := strings.CutSuffix(word, suffix); ok && len(root) >= 4 {
			return root
		}
	}
	return word
}

// QuestionResponses returns the candidate responses that belong to a question.
//
// A response tagged with the question index always counts. Untagged responses count when they
// fall inside the question's window. In a tagged history the window runs from the first
// interaction tagged with the index up to the first later interaction tagged with a different
// index. When nothing carries a tag, the window starts at the last interviewer message that
// introduced the question (its text appears in the message) and ends at the next message that
// introduces another question. Follow-ups do not move the window. If the introduction cannot be
// found the window starts at the beginning of the history. This is an approximation for
// histories written before tagging existed.
func QuestionResponses(history []models.Interaction, template *models.InterviewTemplate, questionIndex int) []models.Interaction {
	start, end := questionWindow(history, template, questionIndex)

	responses := []models.Interaction{}
	for i, it := range history {
		if it.MessageType != models.MessageUserResponse {
			continue
		}
		if it.Metadata.QuestionIndex != nil {
			if *it.Metadata.QuestionIndex == questionIndex {
				responses = append(responses, it)
			}
			continue
		}
		if start >= 0 && i >= start && i < end {
			responses = append(responses, it)
		}
	}

	return responses
}

func questionWindow(history []models.Interaction, template *models.InterviewTemplate, questionIndex int) (int, int) {
	anyTagged := lo.ContainsBy(history, func(it models.Interaction) bool { return it.Metadata.QuestionIndex != nil })
	if !anyTagged {
		return untaggedWindow(history, template, questionIndex)
	}

	start := -1
	for i, it := range history {
		if it.TaggedWith(questionIndex) {
			start = i
			break
		}
	}
	if start < 0 {
		return -1, -1
	}

	end := len(history)
	for i := start + 1; i < len(history); i++ {
		if qi := history[i].Metadata.QuestionIndex; qi != nil && *qi != questionIndex {
			end = i
			break
		}
	}

	return start, end
}

func untaggedWindow(history []models.Interaction, template *models.InterviewTemplate, questionIndex int) (int, int) {
	start := 0
	for i, it := range history {
		if introduces(it, template, questionIndex) {
			start = i
		}
	}

	end := len(history)
	if template == nil {
		return start, end
	}
	for i := start + 1; i < len(history); i++ {
		for other := range template.Questions {
			if other != questionIndex && introduces(history[i], template, other) {
				return start, i
			}
		}
	}

	return start, end
}

// introduces reports whether an interviewer message carries the text of the question at index.
func introduces(it models.Interaction, template *models.InterviewTemplate, index int) bool {
	if it.MessageType != models.MessageAIQuestion {
		return false
	}
	question := questionAt(template, index)
	if question == nil {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(question.Text))
	return text != "" && strings.Contains(strings.ToLower(it.Content), text)
}

func questionAt(template *models.InterviewTemplate, index int) *models.Question {
	if template == nil || index < 0 || index >= len(template.Questions) {
		return nil
	}
	return &template.Questions[index]
}
