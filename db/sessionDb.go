package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stash/models"

	_ "github.com/lib/pq"
)

// SessionRepository stores sessions together with their transcript and whiteboard.
type SessionRepository interface {
	CreateSession(session *models.InterviewSession) error
	GetSessionByID(id string) (*models.InterviewSession, error)
	GetSessions(status *models.SessionStatus, since *time.Time) ([]*models.InterviewSession, error)
	UpdateSession(id string, req *models.UpdateSessionRequest) error
	AppendInteraction(interaction *models.Interaction) error
	GetInteractions(sessionID string) ([]models.Interaction, error)
	SaveDiagram(sessionID string, elements []models.Element) error
	GetDiagram(sessionID string) ([]models.Element, error)
}

type PostgresSessionRepository struct {
	db *sql.DB
}

func NewPostgresSessionRepository(databaseURL string) (*PostgresSessionRepository, error) {
	db, err := openDatabase(databaseURL)
	if err != nil {
		return nil, err
	}

	return &PostgresSessionRepository{db: db}, nil
}

func (r *PostgresSessionRepository) CreateSession(session *models.InterviewSession) error {
	query := `
		INSERT INTO interview.sessions (id, template_id, current_question_index, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	row := r.db.QueryRow(query, session.ID, session.TemplateID, session.CurrentQuestionIndex, session.Status)

	err := row.Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *PostgresSessionRepository) GetSessionByID(id string) (*models.InterviewSession, error) {
	query := `
		SELECT id, template_id, current_question_index, status, created_at, updated_at
		FROM interview.sessions
		WHERE id = $1`

	session := &models.InterviewSession{}
	row := r.db.QueryRow(query, id)

	err := row.Scan(&session.ID, &session.TemplateID, &session.CurrentQuestionIndex, &session.Status, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session with id %s not found", id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (r *PostgresSessionRepository) GetSessions(status *models.SessionStatus, since *time.Time) ([]*models.InterviewSession, error) {
	query := `
		SELECT id, template_id, current_question_index, status, created_at, updated_at
		FROM interview.sessions`

	var conditions []string
	var args []interface{}
	argIndex := 1

	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *status)
		argIndex++
	}

	if since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, *since)
		argIndex++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.InterviewSession, 0)
	for rows.Next() {
		session := &models.InterviewSession{}
		err := rows.Scan(&session.ID, &session.TemplateID, &session.CurrentQuestionIndex, &session.Status, &session.CreatedAt, &session.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over sessions: %w", err)
	}

	return sessions, nil
}

func (r *PostgresSessionRepository) UpdateSession(id string, req *models.UpdateSessionRequest) error {
	if req.CurrentQuestionIndex == nil && req.Status == nil {
		return fmt.Errorf("no updates provided")
	}

	query := "UPDATE interview.sessions SET "
	var setParts []string
	var args []interface{}
	argIndex := 1

	if req.CurrentQuestionIndex != nil {
		setParts = append(setParts, fmt.Sprintf("current_question_index = $%d", argIndex))
		args = append(args, *req.CurrentQuestionIndex)
		argIndex++
	}

	if req.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *req.Status)
		argIndex++
	}

	query += strings.Join(setParts, ", ")
	query += fmt.Sprintf(", updated_at = NOW() WHERE id = $%d", argIndex)
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("session with id %s not found", id)
	}

	return nil
}

func (r *PostgresSessionRepository) AppendInteraction(interaction *models.Interaction) error {
	metadataJSON, err := json.Marshal(interaction.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO interview.interactions (session_id, message_type, content, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, timestamp`

	row := r.db.QueryRow(query, interaction.SessionID, interaction.MessageType, interaction.Content, metadataJSON)

	err = row.Scan(&interaction.ID, &interaction.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}

	return nil
}

func (r *PostgresSessionRepository) GetInteractions(sessionID string) ([]models.Interaction, error) {
	query := `
		SELECT id, session_id, message_type, content, timestamp, metadata
		FROM interview.interactions
		WHERE session_id = $1
		ORDER BY timestamp ASC, id ASC`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	interactions := make([]models.Interaction, 0)
	for rows.Next() {
		var it models.Interaction
		var metadataJSON []byte
		err := rows.Scan(&it.ID, &it.SessionID, &it.MessageType, &it.Content, &it.Timestamp, &metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &it.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		interactions = append(interactions, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over interactions: %w", err)
	}

	return interactions, nil
}

func (r *PostgresSessionRepository) SaveDiagram(sessionID string, elements []models.Element) error {
	elementsJSON, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("failed to marshal diagram: %w", err)
	}

	query := `
		INSERT INTO interview.diagrams (session_id, elements)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO UPDATE SET elements = EXCLUDED.elements, updated_at = NOW()`

	if _, err := r.db.Exec(query, sessionID, elementsJSON); err != nil {
		return fmt.Errorf("failed to save diagram: %w", err)
	}

	return nil
}

// GetDiagram returns an empty diagram when the candidate has not drawn anything yet.
func (r *PostgresSessionRepository) GetDiagram(sessionID string) ([]models.Element, error) {
	query := "SELECT elements FROM interview.diagrams WHERE session_id = $1"

	var elementsJSON []byte
	err := r.db.QueryRow(query, sessionID).Scan(&elementsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return []models.Element{}, nil
		}
		return nil, fmt.Errorf("failed to get diagram: %w", err)
	}

	elements := make([]models.Element, 0)
	if err := json.Unmarshal(elementsJSON, &elements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal diagram: %w", err)
	}

	return elements, nil
}

func (r *PostgresSessionRepository) Close() error {
	return r.db.Close()
}
