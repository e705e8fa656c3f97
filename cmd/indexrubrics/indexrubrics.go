package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"stash/config"
	"stash/db"
	"stash/models"
	"stash/services"
	"stash/services/pinecone"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type EnrichChunkContextParams struct {
	EnrichedSummary string `json:"enriched_summary"`
}

var enrichmentTools = []llms.Tool{
	{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "enrich_chunk_context",
			Description: "Provide an enriched contextual summary for a rubric chunk",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"enriched_summary": map[string]any{
						"type":        "string",
						"description": "A self-contained summary of what a strong candidate answer covers for this part of the question, naming the concepts an interviewer should listen for.",
					},
				},
				"required": []string{"enriched_summary"},
			},
		},
	},
}

func main() {
	log.Printf("[INFO] Starting rubric indexing process")

	cfg := config.Load()

	if cfg.PineconeAPIKey == "" {
		log.Fatal("[ERROR] PINECONE_API_KEY environment variable is required")
	}

	if cfg.OpenAIAPIKey == "" {
		log.Fatal("[ERROR] OPENAI_API_KEY environment variable is required")
	}

	templates, err := loadTemplates(cfg)
	if err != nil {
		log.Fatalf("[ERROR] Failed to load templates: %v", err)
	}
	log.Printf("[INFO] Retrieved %d templates", len(templates))

	llm, err := openai.New(
		openai.WithModel("gpt-4o-mini"),
		openai.WithToken(cfg.OpenAIAPIKey),
	)
	if err != nil {
		log.Fatalf("[ERROR] Failed to create OpenAI client: %v", err)
	}

	rubrics, err := pinecone.NewService(cfg.PineconeAPIKey, cfg.OpenAIAPIKey, cfg.PineconeIndexName)
	if err != nil {
		log.Fatalf("[ERROR] Failed to create rubric index service: %v", err)
	}

	ctx := context.Background()
	if err := rubrics.EnsureIndex(ctx); err != nil {
		log.Fatalf("[ERROR] Failed to ensure Pinecone index: %v", err)
	}

	for i, template := range templates {
		log.Printf("[INFO] Processing template %d/%d (ID: %d)", i+1, len(templates), template.ID)

		if err := processTemplate(ctx, rubrics, llm, template); err != nil {
			log.Printf("[ERROR] Failed to process template ID %d: %v", template.ID, err)
			continue
		}

		log.Printf("[INFO] Successfully processed template ID %d", template.ID)
	}

	log.Printf("[INFO] Rubric indexing process completed successfully")
}

// loadTemplates reads templates from Postgres, or from TEMPLATES_DIR when no database is configured.
func loadTemplates(cfg *config.Config) ([]*models.InterviewTemplate, error) {
	var repo db.TemplateRepository
	if cfg.DatabaseURL != "" {
		pgRepo, err := db.NewPostgresTemplateRepository(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize template database: %w", err)
		}
		defer pgRepo.Close()
		repo = pgRepo
	} else {
		repo = db.NewMemoryStore()
	}

	templateService, err := services.NewTemplateService(repo)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		if cfg.TemplatesDir == "" {
			return nil, fmt.Errorf("either DB_URL or TEMPLATES_DIR is required")
		}
		if _, err := templateService.LoadTemplatesFromDir(cfg.TemplatesDir); err != nil {
			return nil, err
		}
	}

	return templateService.GetAllTemplates()
}

func processTemplate(ctx context.Context, rubrics *pinecone.Service, llm llms.Model, template *models.InterviewTemplate) error {
	chunks := pinecone.ChunkTemplate(template)
	if len(chunks) == 0 {
		log.Printf("[INFO] No chunks created for template ID %d", template.ID)
		return nil
	}
	log.Printf("[INFO] Created %d chunks for template ID %d", len(chunks), template.ID)

	if err := rubrics.DeleteTemplateVectors(ctx, template.ID); err != nil {
		return fmt.Errorf("failed to delete existing vectors: %w", err)
	}

	for i := range chunks {
		enriched, err := enrichChunkContext(ctx, llm, chunks[i], template)
		if err != nil {
			log.Printf("[ERROR] Failed to enrich chunk %d for template ID %d: %v", i+1, template.ID, err)
			chunks[i].EnrichedContext = chunks[i].Content
			continue
		}
		chunks[i].EnrichedContext = enriched
	}

	return rubrics.UpsertChunks(ctx, chunks)
}

func enrichChunkContext(ctx context.Context, llm llms.Model, chunk pinecone.RubricChunk, template *models.InterviewTemplate) (string, error) {
	systemPrompt := `You are an experienced system design interviewer preparing reference material for other interviewers.

Summarize a piece of rubric notes so it can be retrieved on its own. Name the concepts a strong answer mentions and the trade-offs worth probing.`

	headingPath := ""
	if len(chunk.HeadingPath) > 0 {
		headingPath = fmt.Sprintf("Section hierarchy: %s", strings.Join(chunk.HeadingPath, " → "))
	}

	userPrompt := fmt.Sprintf(`Interview: %s (%s)
Question: %s
Evaluation criteria: %s

RUBRIC CHUNK:
Heading: %s
%s
Content: %s`,
		template.Title, template.DifficultyLevel, chunk.Question, strings.Join(chunk.Criteria, ", "),
		chunk.Heading, headingPath, chunk.Content)

	messageHistory := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	resp, err := llm.GenerateContent(ctx, messageHistory,
		llms.WithTools(enrichmentTools),
		llms.WithTemperature(0.3),
		llms.WithToolChoice("required"))
	if err != nil {
		return "", fmt.Errorf("failed to generate enrichment: %w", err)
	}

	if len(resp.Choices) == 0 || len(resp.Choices[0].ToolCalls) == 0 {
		return "", fmt.Errorf("no tool calls in enrichment response")
	}

	toolCall := resp.Choices[0].ToolCalls[0]
	if toolCall.FunctionCall.Name != "enrich_chunk_context" {
		return "", fmt.Errorf("unexpected function call: %s", toolCall.FunctionCall.Name)
	}

	var params EnrichChunkContextParams
	if err := json.Unmarshal([]byte(toolCall.FunctionCall.Arguments), &params); err != nil {
		return "", fmt.Errorf("failed to parse enrichment arguments: %w", err)
	}

	return params.EnrichedSummary, nil
}
