package interview

import (
	"context"
	"log"
	"strings"
	"time"

	"stash/models"

	"github.com/samber/lo"
)

const referenceChunkLimit = 3

type TurnInput struct {
	Template      *models.InterviewTemplate
	QuestionIndex int
	Answer        string
	Diagram       []models.Element
	// History is the session transcript. It may end with Answer already
	// recorded as a user_response; any other history gets Answer appended.
	History []models.Interaction
}

// NextTurn validates the answer, evaluates it and decides whether to redirect, follow up, advance or complete.
func (s *Service) NextTurn(ctx context.Context, in TurnInput) models.TurnOutcome {
	if in.Template == nil || in.Template.Questions == nil {
		log.Printf("[ERROR] Turn requested without template questions")
		return models.ErrorTurn{Message: missingQuestionsMessage}
	}

	questions := in.Template.Questions
	if in.QuestionIndex < 0 || in.QuestionIndex >= len(questions) {
		log.Printf("[WARN] Question index %d out of range (%d questions), completing interview", in.QuestionIndex, len(questions))
		return models.CompleteTurn{Message: noNextQuestionMessage}
	}

	question := &questions[in.QuestionIndex]
	if strings.TrimSpace(question.Text) == "" {
		log.Printf("[WARN] Question %d has no text, skipping it", in.QuestionIndex)
		return models.AdvanceTurn{
			Message:           malformedQuestionSkip,
			NextQuestionIndex: in.QuestionIndex + 1,
			Reasons:           []string{"malformed question"},
			Skipped:           true,
		}
	}

	validation := s.validator.Validate(ctx, in.Answer, question, in.Template)
	if !validation.IsValid {
		log.Printf("[INFO] Answer for question %d rejected by validator", in.QuestionIndex)
		return models.RedirectTurn{Message: validation.RedirectMessage}
	}

	analysis := AnalyzeDiagram(in.Diagram)
	history := withCurrentResponse(in.History, in.QuestionIndex, in.Answer)
	responses := QuestionResponses(history, in.Template, in.QuestionIndex)

	evaluation, err := s.evaluate(ctx, question, in.Answer, responses, analysis)
	if err != nil {
		log.Printf("[ERROR] Evaluation failed for question %d, continuing with a follow-up: %v", in.QuestionIndex, err)
		evaluation = models.Evaluation{Completion: defaultCompletion, ReadyForNext: false, Hints: []string{}}
	}

	decision := ShouldAdvance(ProgressionInput{
		QuestionIndex: in.QuestionIndex,
		Template:      in.Template,
		Interactions:  history,
		Diagram:       analysis,
		Evaluation:    evaluation,
	})

	if decision.Advance {
		log.Printf("[INFO] Advancing from question %d: %s", in.QuestionIndex, strings.Join(decision.Reasons, "; "))

		next := in.QuestionIndex + 1
		if next >= len(questions) {
			return models.CompleteTurn{Message: closingMessage, Reasons: decision.Reasons, Advanced: true}
		}
		return models.AdvanceTurn{
			Message:           advancePrefix + questions[next].Text,
			NextQuestionIndex: next,
			Reasons:           decision.Reasons,
		}
	}

	message := s.generateFollowup(ctx, question, in.Answer, analysis, history)
	return models.FollowupTurn{
		Message:    message,
		Hints:      evaluation.Hints,
		Completion: evaluation.Completion,
	}
}

func (s *Service) evaluate(ctx context.Context, question *models.Question, answer string, responses []models.Interaction, analysis models.DiagramAnalysis) (models.Evaluation, error) {
	raw, err := s.complete(ctx, buildEvaluationPrompt(question, answer, responses, analysis), evaluationMaxTokens)
	if err != nil {
		return models.Evaluation{}, err
	}

	evaluation, tier := parseEvaluation(raw)
	log.Printf("[INFO] Evaluation parsed via %s tier: completion=%d ready=%t hints=%d",
		tier, evaluation.Completion, evaluation.ReadyForNext, len(evaluation.Hints))

	return evaluation, nil
}

func (s *Service) generateFollowup(ctx context.Context, question *models.Question, answer string, analysis models.DiagramAnalysis, history []models.Interaction) string {
	var references []string
	if s.references != nil && len(question.EvaluationCriteria) > 0 {
		chunks, err := s.references.QueryTopicChunks(ctx, question.EvaluationCriteria, referenceChunkLimit)
		if err != nil {
			log.Printf("[WARN] Reference lookup failed: %v", err)
		} else {
			references = chunks
		}
	}

	raw, err := s.complete(ctx, buildFollowupPrompt(question, answer, analysis, history, references), followupMaxTokens)
	if err != nil {
		log.Printf("[WARN] Follow-up generation failed, using generic follow-up: %v", err)
		return genericFollowup
	}

	message := strings.Trim(strings.TrimSpace(raw), `"`)
	if message == "" {
		return genericFollowup
	}
	return message
}

// withCurrentResponse returns history with the candidate's answer appended unless it is already the final interaction.
func withCurrentResponse(history []models.Interaction, questionIndex int, answer string) []models.Interaction {
	if n := len(history); n > 0 {
		last := history[n-1]
		sameQuestion := last.Metadata.QuestionIndex == nil || *last.Metadata.QuestionIndex == questionIndex
		if last.MessageType == models.MessageUserResponse && sameQuestion && strings.TrimSpace(last.Content) == strings.TrimSpace(answer) {
			return history
		}
	}

	current := models.Interaction{
		MessageType: models.MessageUserResponse,
		Content:     answer,
		Timestamp:   time.Now(),
	}
	// Untagged histories stay untagged so the positional window still applies.
	if len(history) == 0 || lo.ContainsBy(history, func(it models.Interaction) bool { return it.Metadata.QuestionIndex != nil }) {
		current.Metadata.QuestionIndex = models.QuestionIndexTag(questionIndex)
	}

	out := make([]models.Interaction, len(history), len(history)+1)
	copy(out, history)
	return append(out, current)
}
