package interview

import (
	"encoding/json"
	"fmt"
	"strings"

	"stash/models"

	"github.com/invopop/jsonschema"
)

const (
	briefAnswerRedirect   = "Could you elaborate a bit more? Please share more detail about how you would approach this part of the design."
	unclearAnswerRedirect = "I didn't quite understand that response. Could you rephrase your answer in terms of the system you're designing?"
	offTopicRedirect      = "Let's keep the discussion focused on the system design question. How would you approach it?"

	missingQuestionsMessage = "I'm having trouble loading the interview questions right now. Please restart the interview in a moment."
	noNextQuestionMessage   = "I couldn't find the next question, so let's wrap up here. Thank you for your time!"
	malformedQuestionSkip   = "Let's move on to the next part of the interview."
	advancePrefix           = "Great! Let's move on. "
	closingMessage          = "Excellent work! That completes all the questions in this interview. Thank you for walking me through your design. Your final evaluation report is being prepared."
	genericFollowup         = "That's a good start. Can you go deeper into how your design would handle growth in traffic and what happens when a component fails?"

	evaluationMaxTokens  = 200
	relevanceMaxTokens   = 150
	followupMaxTokens    = 150
	suggestionsMaxTokens = 200
	reportMaxTokens      = 1500
)

const RELEVANCE_PROMPT = `You are screening answers in a system design interview.

Interview: %s
Current question: %s

Candidate answer:
"""
%s
"""

Decide whether the answer is a genuine attempt to discuss system design AND relates to the current question.
Respond ONLY with a JSON object matching this schema, no other text:
%s`

const EVALUATION_PROMPT = `You are an experienced system design interviewer evaluating a candidate's answer.

Question: %s
Evaluation criteria: %s

Candidate's latest answer:
"""
%s
"""

Recent answers to this question:
%s
Whiteboard diagram:
%s
Rate how completely the candidate has addressed the question and its criteria (0-100).
Set readyForNext to true only if the key criteria have been covered.
Give up to 3 short hints about what is still missing.
Respond ONLY with a JSON object matching this schema, no other text:
%s`

const DIAGRAM_SUGGESTIONS_PROMPT = `You are reviewing a candidate's architecture diagram during a system design interview.

Question: %s

Diagram analysis:
%s
Suggest up to 4 concrete improvements to the diagram, each one short sentence.
Respond ONLY with a JSON array of strings, no other text.`

func schemaFor[T any]() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	schema.Version = ""

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

var (
	evaluationSchema = schemaFor[models.Evaluation]()
	relevanceSchema  = schemaFor[models.RelevanceVerdict]()
)

func buildRelevancePrompt(template *models.InterviewTemplate, question *models.Question, answer string) string {
	return fmt.Sprintf(RELEVANCE_PROMPT, template.Title, question.Text, answer, relevanceSchema)
}

func buildEvaluationPrompt(question *models.Question, answer string, recent []models.Interaction, analysis models.DiagramAnalysis) string {
	var history strings.Builder
	if len(recent) == 0 {
		history.WriteString("(none)\n")
	}
	for i, r := range recent {
		history.WriteString(fmt.Sprintf("%d. %s\n", i+1, r.Content))
	}

	return fmt.Sprintf(EVALUATION_PROMPT,
		question.Text,
		strings.Join(question.EvaluationCriteria, ", "),
		answer,
		history.String(),
		SummarizeDiagram(analysis),
		evaluationSchema)
}

func buildFollowupPrompt(question *models.Question, answer string, analysis models.DiagramAnalysis, history []models.Interaction, references []string) string {
	var prompt strings.Builder

	prompt.WriteString("You are conducting a system design interview. Ask the candidate ONE probing follow-up question.\n\n")
	prompt.WriteString(fmt.Sprintf("Current question: %s\n", question.Text))
	if len(question.EvaluationCriteria) > 0 {
		prompt.WriteString(fmt.Sprintf("Topics the answer should cover: %s\n", strings.Join(question.EvaluationCriteria, ", ")))
	}
	prompt.WriteString("\nCandidate's answer:\n")
	prompt.WriteString(answer)
	prompt.WriteString("\n\nWhiteboard diagram:\n")
	prompt.WriteString(SummarizeDiagram(analysis))

	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	if len(recent) > 0 {
		prompt.WriteString("\nRecent conversation:\n")
		for _, entry := range recent {
			prompt.WriteString(fmt.Sprintf("%s: %s\n", speaker(entry.MessageType), entry.Content))
		}
	}

	if len(references) > 0 {
		prompt.WriteString("\nReference material for the interviewer (do not quote it to the candidate):\n")
		for _, ref := range references {
			prompt.WriteString(ref)
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("\nAsk about something the candidate has not covered yet. Do not reveal the answer. ")
	prompt.WriteString("Reply with the question only, in one or two conversational sentences.")

	return prompt.String()
}

func buildSuggestionsPrompt(question *models.Question, analysis models.DiagramAnalysis) string {
	text := "General system design"
	if question != nil && question.Text != "" {
		text = question.Text
	}
	return fmt.Sprintf(DIAGRAM_SUGGESTIONS_PROMPT, text, SummarizeDiagram(analysis))
}

func speaker(t models.MessageType) string {
	switch t {
	case models.MessageUserResponse:
		return "Candidate"
	case models.MessageSystem:
		return "System"
	default:
		return "Interviewer"
	}
}
