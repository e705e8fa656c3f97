package interview

import (
	"context"
	"errors"
	"fmt"
	"log"

	"stash/models"
	"stash/services/llm"

	"github.com/samber/lo"
)

var errNoModel = errors.New("no model client configured")

// ReferenceRetriever looks up reference material for a set of rubric topics.
type ReferenceRetriever interface {
	QueryTopicChunks(ctx context.Context, topics []string, limit int) ([]string, error)
}

// Service conducts interview turns. It holds no per-session state; every call works on the inputs it is given.
type Service struct {
	model      llm.Client
	validator  *ResponseValidator
	references ReferenceRetriever
}

type Option func(*Service)

func WithReferences(retriever ReferenceRetriever) Option {
	return func(s *Service) {
		s.references = retriever
	}
}

func NewService(model llm.Client, opts ...Option) *Service {
	s := &Service{
		model:     model,
		validator: NewResponseValidator(model),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessTurn runs one turn for a live session.
func (s *Service) ProcessTurn(ctx context.Context, template *models.InterviewTemplate, session *models.InterviewSession, answer string, elements []models.Element, history []models.Interaction) models.TurnOutcome {
	if session == nil {
		return models.ErrorTurn{Message: missingQuestionsMessage}
	}

	switch session.Status {
	case models.SessionCompleted:
		return models.CompleteTurn{Message: closingMessage}
	case models.SessionTerminated:
		return models.ErrorTurn{Message: "This interview session has ended."}
	}

	log.Printf("[INFO] Processing turn for session %s at question %d", session.ID, session.CurrentQuestionIndex)

	return s.NextTurn(ctx, TurnInput{
		Template:      template,
		QuestionIndex: session.CurrentQuestionIndex,
		Answer:        answer,
		Diagram:       elements,
		History:       history,
	})
}

// GetDiagramSuggestions asks the model for diagram improvements, falling back to the analyzer's missing list.
func (s *Service) GetDiagramSuggestions(ctx context.Context, elements []models.Element, question *models.Question) []string {
	analysis := AnalyzeDiagram(elements)
	fallback := lo.Map(analysis.MissingComponents, func(c string, _ int) string { return "Consider adding: " + c })

	if s.model == nil {
		return fallback
	}

	raw, err := s.complete(ctx, buildSuggestionsPrompt(question, analysis), suggestionsMaxTokens)
	if err != nil {
		log.Printf("[WARN] Diagram suggestion call failed, using analyzer output: %v", err)
		return fallback
	}

	suggestions, err := ParseStringArray(raw)
	if err != nil {
		log.Printf("[WARN] Could not parse diagram suggestions, using analyzer output: %v", err)
		return fallback
	}

	return suggestions
}

// complete calls the model and turns a panic inside the client into an error.
func (s *Service) complete(ctx context.Context, prompt string, maxTokens int) (resp string, err error) {
	if s.model == nil {
		return "", errNoModel
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	return s.model.Complete(ctx, prompt, maxTokens)
}

func panicError(r any) error {
	return fmt.Errorf("recovered from model client panic: %v", r)
}
