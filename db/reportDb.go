package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"stash/models"

	_ "github.com/lib/pq"
)

type ReportRepository interface {
	GetReport(sessionID string) (*models.FinalReport, error)
	SaveReport(report *models.FinalReport) error
}

type PostgresReportRepository struct {
	db *sql.DB
}

func NewPostgresReportRepository(databaseURL string) (*PostgresReportRepository, error) {
	db, err := openDatabase(databaseURL)
	if err != nil {
		return nil, err
	}

	return &PostgresReportRepository{db: db}, nil
}

// GetReport returns nil without an error when no report has been generated for the session.
func (r *PostgresReportRepository) GetReport(sessionID string) (*models.FinalReport, error) {
	query := `
		SELECT id, session_id, scores, narrative, created_at
		FROM interview.reports
		WHERE session_id = $1`

	report := &models.FinalReport{}
	var scoresJSON []byte
	row := r.db.QueryRow(query, sessionID)

	err := row.Scan(&report.ID, &report.SessionID, &scoresJSON, &report.Narrative, &report.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := json.Unmarshal(scoresJSON, &report.Scores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
	}

	return report, nil
}

func (r *PostgresReportRepository) SaveReport(report *models.FinalReport) error {
	scoresJSON, err := json.Marshal(report.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	query := `
		INSERT INTO interview.reports (session_id, scores, narrative)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET scores = EXCLUDED.scores, narrative = EXCLUDED.narrative
		RETURNING id, created_at`

	row := r.db.QueryRow(query, report.SessionID, scoresJSON, report.Narrative)

	err = row.Scan(&report.ID, &report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

func (r *PostgresReportRepository) Close() error {
	return r.db.Close()
}
