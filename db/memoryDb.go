package db

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"stash/models"
)

// MemoryStore keeps templates, sessions and reports in process. It backs the CLI and tests.
type MemoryStore struct {
	mu             sync.RWMutex
	nextTemplateID int
	nextMessageID  int
	nextReportID   int
	templates      map[int]*models.InterviewTemplate
	sessions       map[string]*models.InterviewSession
	interactions   map[string][]models.Interaction
	diagrams       map[string][]models.Element
	reports        map[string]*models.FinalReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates:    make(map[int]*models.InterviewTemplate),
		sessions:     make(map[string]*models.InterviewSession),
		interactions: make(map[string][]models.Interaction),
		diagrams:     make(map[string][]models.Element),
		reports:      make(map[string]*models.FinalReport),
	}
}

func (s *MemoryStore) CreateTemplate(template *models.InterviewTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTemplateID++
	now := time.Now()
	template.ID = s.nextTemplateID
	template.CreatedAt = now
	template.UpdatedAt = now

	stored := *template
	s.templates[template.ID] = &stored
	return nil
}

func (s *MemoryStore) GetTemplateByID(id int) (*models.InterviewTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	template, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template with id %d not found", id)
	}

	out := *template
	return &out, nil
}

func (s *MemoryStore) GetAllTemplates() ([]*models.InterviewTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]*models.InterviewTemplate, 0, len(s.templates))
	for _, template := range s.templates {
		out := *template
		templates = append(templates, &out)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID > templates[j].ID })

	return templates, nil
}

func (s *MemoryStore) DeleteTemplate(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return fmt.Errorf("template with id %d not found", id)
	}
	delete(s.templates, id)
	return nil
}

func (s *MemoryStore) CreateSession(session *models.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return fmt.Errorf("session with id %s already exists", session.ID)
	}

	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *MemoryStore) GetSessionByID(id string) (*models.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session with id %s not found", id)
	}

	out := *session
	return &out, nil
}

func (s *MemoryStore) GetSessions(status *models.SessionStatus, since *time.Time) ([]*models.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*models.InterviewSession, 0)
	for _, session := range s.sessions {
		if status != nil && session.Status != *status {
			continue
		}
		if since != nil && session.CreatedAt.Before(*since) {
			continue
		}
		out := *session
		sessions = append(sessions, &out)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })

	return sessions, nil
}

func (s *MemoryStore) UpdateSession(id string, req *models.UpdateSessionRequest) error {
	if req.CurrentQuestionIndex == nil && req.Status == nil {
		return fmt.Errorf("no updates provided")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session with id %s not found", id)
	}

	if req.CurrentQuestionIndex != nil {
		session.CurrentQuestionIndex = *req.CurrentQuestionIndex
	}
	if req.Status != nil {
		session.Status = *req.Status
	}
	session.UpdatedAt = time.Now()

	return nil
}

func (s *MemoryStore) AppendInteraction(interaction *models.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[interaction.SessionID]; !ok {
		return fmt.Errorf("session with id %s not found", interaction.SessionID)
	}

	s.nextMessageID++
	interaction.ID = s.nextMessageID
	interaction.Timestamp = time.Now()

	s.interactions[interaction.SessionID] = append(s.interactions[interaction.SessionID], *interaction)
	return nil
}

func (s *MemoryStore) GetInteractions(sessionID string) ([]models.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.interactions[sessionID]
	out := make([]models.Interaction, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) SaveDiagram(sessionID string, elements []models.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]models.Element, len(elements))
	copy(stored, elements)
	s.diagrams[sessionID] = stored
	return nil
}

func (s *MemoryStore) GetDiagram(sessionID string) ([]models.Element, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.diagrams[sessionID]
	out := make([]models.Element, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryStore) GetReport(sessionID string) (*models.FinalReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[sessionID]
	if !ok {
		return nil, nil
	}

	out := *report
	return &out, nil
}

func (s *MemoryStore) SaveReport(report *models.FinalReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.reports[report.SessionID]; ok {
		report.ID = existing.ID
	} else {
		s.nextReportID++
		report.ID = s.nextReportID
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	stored := *report
	s.reports[report.SessionID] = &stored
	return nil
}
