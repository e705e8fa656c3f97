package pinecone

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"stash/models"
)

var headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// RubricChunk is one indexed piece of a question's reference notes.
type RubricChunk struct {
	ID              string
	TemplateID      int
	TemplateTitle   string
	QuestionIndex   int
	Question        string
	Criteria        []string
	Heading         string
	HeadingPath     []string
	Content         string
	EnrichedContext string
}

func TemplatePrefix(templateID int) string {
	return fmt.Sprintf("template_%d_", templateID)
}

func (c RubricChunk) EmbeddingText() string {
	text := fmt.Sprintf("Question: %s\n\nCriteria: %s\n\nContent: %s",
		c.Question, strings.Join(c.Criteria, ", "), c.Content)
	if c.EnrichedContext != "" {
		text += "\n\nContext: " + c.EnrichedContext
	}
	return text
}

func (c RubricChunk) Metadata() map[string]any {
	return map[string]any{
		"template_id":      c.TemplateID,
		"template_title":   c.TemplateTitle,
		"question_index":   c.QuestionIndex,
		"question":         c.Question,
		"criteria":         strings.Join(c.Criteria, ", "),
		"heading":          c.Heading,
		"heading_path":     strings.Join(c.HeadingPath, " → "),
		"content":          c.Content,
		"enriched_context": c.EnrichedContext,
		"created_at":       time.Now().Format(time.RFC3339),
	}
}

// ChunkTemplate splits every question's reference notes on markdown headings.
// A question without notes becomes a single chunk built from its text and criteria.
func ChunkTemplate(template *models.InterviewTemplate) []RubricChunk {
	var chunks []RubricChunk
	for qi, q := range template.Questions {
		base := RubricChunk{
			TemplateID:    template.ID,
			TemplateTitle: template.Title,
			QuestionIndex: qi,
			Question:      q.Text,
			Criteria:      q.EvaluationCriteria,
		}

		questionChunks := chunkMarkdownByHeadings(base, q.ReferenceNotes)
		if len(questionChunks) == 0 {
			fallback := base
			fallback.Heading = q.Text
			fallback.HeadingPath = []string{}
			fallback.Content = q.Text
			if len(q.EvaluationCriteria) > 0 {
				fallback.Content += "\nExpected topics: " + strings.Join(q.EvaluationCriteria, ", ")
			}
			questionChunks = []RubricChunk{fallback}
		}

		for i := range questionChunks {
			questionChunks[i].ID = fmt.Sprintf("%sq%d_chunk_%d", TemplatePrefix(template.ID), qi, i)
		}
		chunks = append(chunks, questionChunks...)
	}
	return chunks
}

func chunkMarkdownByHeadings(base RubricChunk, notes string) []RubricChunk {
	var chunks []RubricChunk
	var current strings.Builder
	var currentHeading string
	var headingStack []string

	flush := func() {
		content := strings.TrimSpace(current.String())
		current.Reset()
		if content == "" {
			return
		}
		chunk := base
		chunk.Heading = currentHeading
		chunk.HeadingPath = append([]string{}, headingStack...)
		chunk.Content = content
		chunks = append(chunks, chunk)
	}

	for _, line := range strings.Split(notes, "\n") {
		if match := headingRegex.FindStringSubmatch(line); match != nil {
			flush()

			level := len(match[1])
			currentHeading = strings.TrimSpace(match[2])
			if level <= len(headingStack) {
				headingStack = headingStack[:level-1]
			}
			headingStack = append(headingStack, currentHeading)
		}
		current.WriteString(line + "\n")
	}
	flush()

	for i := range chunks {
		if chunks[i].Heading == "" {
			chunks[i].Heading = base.Question
		}
	}

	return chunks
}
