package services

import (
	"context"
	"fmt"
	"log"

	"stash/db"
	"stash/models"
	"stash/services/interview"
)

// ReportService produces final reports. Reports for finished sessions are stored and reused.
type ReportService struct {
	repo        db.ReportRepository
	sessions    *SessionService
	interviewer *interview.Service
}

func NewReportService(repo db.ReportRepository, sessions *SessionService, interviewer *interview.Service) *ReportService {
	return &ReportService{repo: repo, sessions: sessions, interviewer: interviewer}
}

func (s *ReportService) GetFinalReport(ctx context.Context, sessionID string, regenerate bool) (*models.FinalReport, error) {
	log.Printf("[INFO] Starting get final report for session %s", sessionID)

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	finished := session.Status != models.SessionInProgress

	if finished && !regenerate {
		stored, err := s.repo.GetReport(sessionID)
		if err != nil {
			log.Printf("[ERROR] Failed to load stored report for session %s: %v", sessionID, err)
			return nil, fmt.Errorf("failed to get report: %w", err)
		}
		if stored != nil {
			log.Printf("[INFO] Returning stored report for session %s", sessionID)
			return stored, nil
		}
	}

	template, err := s.sessions.templates.GetTemplateByID(session.TemplateID)
	if err != nil {
		return nil, err
	}
	history, err := s.sessions.repo.GetInteractions(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}
	elements, err := s.sessions.repo.GetDiagram(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}

	report := s.interviewer.GetFinalReport(ctx, template, session, history, elements)

	if finished {
		if err := s.repo.SaveReport(report); err != nil {
			log.Printf("[ERROR] Failed to save report for session %s: %v", sessionID, err)
			return nil, fmt.Errorf("failed to save report: %w", err)
		}
	}

	log.Printf("[INFO] Successfully generated report for session %s", sessionID)
	return report, nil
}
