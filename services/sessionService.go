package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"stash/db"
	"stash/models"
	"stash/services/interview"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var elementTypes = []models.ElementType{
	models.ElementRectangle, models.ElementDiamond, models.ElementEllipse,
	models.ElementArrow, models.ElementLine, models.ElementText,
}

// SessionService runs interview sessions on top of the stateless interviewer.
// Turns for the same session are serialized.
type SessionService struct {
	repo        db.SessionRepository
	templates   *TemplateService
	interviewer *interview.Service

	locks sync.Map
}

func NewSessionService(repo db.SessionRepository, templates *TemplateService, interviewer *interview.Service) *SessionService {
	return &SessionService{
		repo:        repo,
		templates:   templates,
		interviewer: interviewer,
	}
}

func (s *SessionService) lock(sessionID string) func() {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func (s *SessionService) StartSession(req *models.StartSessionRequest) (*models.StartSessionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	log.Printf("[INFO] Starting interview session for template %d", req.TemplateID)

	template, err := s.templates.GetTemplateByID(req.TemplateID)
	if err != nil {
		return nil, err
	}
	if len(template.Questions) == 0 {
		log.Printf("[ERROR] Template %d has no questions", template.ID)
		return nil, fmt.Errorf("template %d has no questions", template.ID)
	}

	session := &models.InterviewSession{
		ID:                   uuid.NewString(),
		TemplateID:           template.ID,
		CurrentQuestionIndex: 0,
		Status:               models.SessionInProgress,
	}
	if err := s.repo.CreateSession(session); err != nil {
		log.Printf("[ERROR] Failed to create session: %v", err)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	first := template.Questions[0].Text
	if err := s.record(session.ID, models.MessageAIQuestion, first, models.InteractionMetadata{QuestionIndex: models.QuestionIndexTag(0)}); err != nil {
		return nil, err
	}

	log.Printf("[INFO] Successfully started session %s (%d questions)", session.ID, len(template.Questions))
	return &models.StartSessionResponse{Session: session, Question: first}, nil
}

func (s *SessionService) GetSession(id string) (*models.InterviewSession, error) {
	session, err := s.repo.GetSessionByID(id)
	if err != nil {
		log.Printf("[ERROR] Failed to get session %s: %v", id, err)
		return nil, err
	}
	return session, nil
}

func (s *SessionService) ListSessions(status *models.SessionStatus, since *time.Time) ([]*models.InterviewSession, error) {
	sessions, err := s.repo.GetSessions(status, since)
	if err != nil {
		log.Printf("[ERROR] Failed to list sessions: %v", err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionService) GetTranscript(id string) ([]models.Interaction, error) {
	if _, err := s.GetSession(id); err != nil {
		return nil, err
	}

	interactions, err := s.repo.GetInteractions(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	return interactions, nil
}

// SubmitResponse records the candidate's answer, runs one interview turn and persists its outcome.
func (s *SessionService) SubmitResponse(ctx context.Context, sessionID string, req *models.SubmitResponseRequest) (*models.SubmitResponseResponse, error) {
	if req == nil || strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("content is required")
	}

	unlock := s.lock(sessionID)
	defer unlock()

	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	template, err := s.templates.GetTemplateByID(session.TemplateID)
	if err != nil {
		return nil, err
	}

	if session.Status != models.SessionInProgress {
		outcome := s.interviewer.ProcessTurn(ctx, template, session, req.Content, nil, nil)
		return &models.SubmitResponseResponse{Result: outcome.Result(), Session: session}, nil
	}

	questionIndex := session.CurrentQuestionIndex
	if err := s.record(sessionID, models.MessageUserResponse, req.Content, models.InteractionMetadata{QuestionIndex: models.QuestionIndexTag(questionIndex)}); err != nil {
		return nil, err
	}

	history, err := s.repo.GetInteractions(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	elements, err := s.repo.GetDiagram(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}

	outcome := s.interviewer.ProcessTurn(ctx, template, session, req.Content, elements, history)
	if err := s.applyOutcome(session, template, outcome); err != nil {
		return nil, err
	}

	log.Printf("[INFO] Session %s turn at question %d ended with %s", sessionID, questionIndex, outcome.Kind())
	return &models.SubmitResponseResponse{Result: outcome.Result(), Session: session}, nil
}

// applyOutcome writes the interviewer's reply to the transcript and moves the session forward.
func (s *SessionService) applyOutcome(session *models.InterviewSession, template *models.InterviewTemplate, outcome models.TurnOutcome) error {
	current := session.CurrentQuestionIndex
	tag := models.QuestionIndexTag(current)

	switch o := outcome.(type) {
	case models.RedirectTurn:
		return s.record(session.ID, models.MessageAIFeedback, o.Message, models.InteractionMetadata{QuestionIndex: tag, Outcome: string(o.Kind())})

	case models.FollowupTurn:
		return s.record(session.ID, models.MessageAIQuestion, o.Message, models.InteractionMetadata{QuestionIndex: tag, Hints: o.Hints, Outcome: string(o.Kind())})

	case models.AdvanceTurn:
		next := o.NextQuestionIndex
		if next <= current {
			return fmt.Errorf("refusing to move session %s backwards from question %d to %d", session.ID, current, next)
		}
		if next >= len(template.Questions) {
			return s.complete(session, template, o.Message, o.Reasons)
		}
		if err := s.repo.UpdateSession(session.ID, &models.UpdateSessionRequest{CurrentQuestionIndex: &next}); err != nil {
			return fmt.Errorf("failed to advance session: %w", err)
		}
		session.CurrentQuestionIndex = next
		return s.record(session.ID, models.MessageAIQuestion, o.Message, models.InteractionMetadata{
			QuestionIndex:  models.QuestionIndexTag(next),
			AdvanceReasons: o.Reasons,
			Outcome:        string(o.Kind()),
		})

	case models.CompleteTurn:
		return s.complete(session, template, o.Message, o.Reasons)

	case models.ErrorTurn:
		log.Printf("[ERROR] Turn for session %s failed: %s", session.ID, o.Message)
		return s.record(session.ID, models.MessageSystem, o.Message, models.InteractionMetadata{QuestionIndex: tag, Outcome: string(o.Kind())})
	}

	return fmt.Errorf("unknown turn outcome %T", outcome)
}

func (s *SessionService) complete(session *models.InterviewSession, template *models.InterviewTemplate, message string, reasons []string) error {
	status := models.SessionCompleted
	last := len(template.Questions)
	update := &models.UpdateSessionRequest{Status: &status}
	if last > session.CurrentQuestionIndex {
		update.CurrentQuestionIndex = &last
	}

	if err := s.repo.UpdateSession(session.ID, update); err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	session.Status = status
	if update.CurrentQuestionIndex != nil {
		session.CurrentQuestionIndex = last
	}

	log.Printf("[INFO] Session %s completed", session.ID)
	return s.record(session.ID, models.MessageAIFeedback, message, models.InteractionMetadata{
		AdvanceReasons: reasons,
		Outcome:        string(models.TurnComplete),
	})
}

func (s *SessionService) TerminateSession(id string) (*models.InterviewSession, error) {
	log.Printf("[INFO] Terminating session %s", id)

	unlock := s.lock(id)
	defer unlock()

	session, err := s.GetSession(id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionInProgress {
		return nil, fmt.Errorf("session %s is already %s", id, session.Status)
	}

	status := models.SessionTerminated
	if err := s.repo.UpdateSession(id, &models.UpdateSessionRequest{Status: &status}); err != nil {
		return nil, fmt.Errorf("failed to terminate session: %w", err)
	}
	session.Status = status

	if err := s.record(id, models.MessageSystem, "Interview ended by the candidate.", models.InteractionMetadata{}); err != nil {
		return nil, err
	}

	return session, nil
}

// UpdateDiagram replaces the session's whiteboard snapshot and returns its analysis.
func (s *SessionService) UpdateDiagram(id string, req *models.UpdateDiagramRequest) (*models.DiagramAnalysis, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	for i, el := range req.Elements {
		if !lo.Contains(elementTypes, el.Type) {
			return nil, fmt.Errorf("element %d has unknown type %q", i, el.Type)
		}
	}

	if _, err := s.GetSession(id); err != nil {
		return nil, err
	}

	if err := s.repo.SaveDiagram(id, req.Elements); err != nil {
		log.Printf("[ERROR] Failed to save diagram for session %s: %v", id, err)
		return nil, fmt.Errorf("failed to save diagram: %w", err)
	}

	analysis := interview.AnalyzeDiagram(req.Elements)
	log.Printf("[INFO] Diagram for session %s updated: %d components, %d missing", id, analysis.ComponentCount, len(analysis.MissingComponents))
	return &analysis, nil
}

func (s *SessionService) GetDiagramSuggestions(ctx context.Context, id string) (*models.DiagramSuggestionsResponse, error) {
	session, err := s.GetSession(id)
	if err != nil {
		return nil, err
	}

	template, err := s.templates.GetTemplateByID(session.TemplateID)
	if err != nil {
		return nil, err
	}

	elements, err := s.repo.GetDiagram(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}

	var question *models.Question
	if session.CurrentQuestionIndex < len(template.Questions) {
		question = &template.Questions[session.CurrentQuestionIndex]
	}

	return &models.DiagramSuggestionsResponse{
		Analysis:    interview.AnalyzeDiagram(elements),
		Suggestions: s.interviewer.GetDiagramSuggestions(ctx, elements, question),
	}, nil
}

func (s *SessionService) record(sessionID string, messageType models.MessageType, content string, metadata models.InteractionMetadata) error {
	interaction := &models.Interaction{
		SessionID:   sessionID,
		MessageType: messageType,
		Content:     content,
		Metadata:    metadata,
	}
	if err := s.repo.AppendInteraction(interaction); err != nil {
		log.Printf("[ERROR] Failed to record %s for session %s: %v", messageType, sessionID, err)
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}
