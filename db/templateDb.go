package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"stash/models"

	_ "github.com/lib/pq"
)

type TemplateRepository interface {
	CreateTemplate(template *models.InterviewTemplate) error
	GetTemplateByID(id int) (*models.InterviewTemplate, error)
	GetAllTemplates() ([]*models.InterviewTemplate, error)
	DeleteTemplate(id int) error
}

type PostgresTemplateRepository struct {
	db *sql.DB
}

func NewPostgresTemplateRepository(databaseURL string) (*PostgresTemplateRepository, error) {
	db, err := openDatabase(databaseURL)
	if err != nil {
		return nil, err
	}

	return &PostgresTemplateRepository{db: db}, nil
}

func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func (r *PostgresTemplateRepository) CreateTemplate(template *models.InterviewTemplate) error {
	questionsJSON, err := json.Marshal(template.Questions)
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}

	query := `
		INSERT INTO interview.templates (title, difficulty_level, questions, estimated_duration)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	row := r.db.QueryRow(query, template.Title, template.DifficultyLevel, questionsJSON, template.EstimatedDuration)

	err = row.Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

func (r *PostgresTemplateRepository) GetTemplateByID(id int) (*models.InterviewTemplate, error) {
	query := `
		SELECT id, title, difficulty_level, questions, estimated_duration, created_at, updated_at
		FROM interview.templates
		WHERE id = $1`

	row := r.db.QueryRow(query, id)

	template, err := scanTemplate(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template with id %d not found", id)
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return template, nil
}

func (r *PostgresTemplateRepository) GetAllTemplates() ([]*models.InterviewTemplate, error) {
	query := `
		SELECT id, title, difficulty_level, questions, estimated_duration, created_at, updated_at
		FROM interview.templates
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*models.InterviewTemplate, 0)
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over templates: %w", err)
	}

	return templates, nil
}

func (r *PostgresTemplateRepository) DeleteTemplate(id int) error {
	query := "DELETE FROM interview.templates WHERE id = $1"

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("template with id %d not found", id)
	}

	return nil
}

func (r *PostgresTemplateRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.InterviewTemplate, error) {
	template := &models.InterviewTemplate{}
	var questionsJSON []byte

	err := row.Scan(&template.ID, &template.Title, &template.DifficultyLevel, &questionsJSON,
		&template.EstimatedDuration, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(questionsJSON, &template.Questions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}

	return template, nil
}
