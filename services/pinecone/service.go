package pinecone

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	RubricNamespace  = "interview-rubrics"
	embeddingModel   = "text-embedding-3-small"
	indexDimension   = 1536
	queryOversample  = 4
	upsertBatchSize  = 10
	indexPollTimeout = 10 * time.Second
)

// Service retrieves rubric reference material for interview questions.
type Service struct {
	client    *pinecone.Client
	embedder  embeddings.Embedder
	indexName string
}

func NewService(apiKey, openaiAPIKey, indexName string) (*Service, error) {
	log.Printf("[INFO] Initializing Pinecone service for index %s", indexName)

	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	llm, err := openai.New(
		openai.WithEmbeddingModel(embeddingModel),
		openai.WithToken(openaiAPIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	log.Printf("[INFO] Pinecone service initialized successfully")
	return &Service{
		client:    pc,
		embedder:  embedder,
		indexName: indexName,
	}, nil
}

func (s *Service) indexConnection(ctx context.Context) (*pinecone.IndexConnection, error) {
	idxDesc, err := s.client.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index: %w", err)
	}

	idxConn, err := s.client.Index(pinecone.NewIndexConnParams{
		Host:      idxDesc.Host,
		Namespace: RubricNamespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}

	return idxConn, nil
}

// QueryTopicChunks returns up to limit reference chunks for the topics, best matches first.
func (s *Service) QueryTopicChunks(ctx context.Context, topics []string, limit int) ([]string, error) {
	log.Printf("[INFO] Starting Pinecone query for topics: %v with limit: %d", topics, limit)

	if len(topics) == 0 || limit <= 0 {
		return []string{}, nil
	}

	idxConn, err := s.indexConnection(ctx)
	if err != nil {
		return nil, err
	}
	defer idxConn.Close()

	queryEmbeddings, err := s.embedder.EmbedDocuments(ctx, topics)
	if err != nil {
		return nil, fmt.Errorf("failed to generate topic embeddings: %w", err)
	}

	var scored []ScoredChunk
	for i, topic := range topics {
		result, err := idxConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
			Vector:          queryEmbeddings[i],
			TopK:            uint32(limit * queryOversample),
			IncludeValues:   false,
			IncludeMetadata: true,
		})
		if err != nil {
			log.Printf("[ERROR] Failed to query vectors for topic '%s': %v", topic, err)
			continue
		}

		log.Printf("[INFO] Retrieved %d chunks for topic '%s'", len(result.Matches), topic)

		for _, match := range result.Matches {
			if match == nil || match.Vector == nil || match.Vector.Metadata == nil {
				continue
			}
			text := FormatChunk(match.Vector.Metadata.AsMap())
			if text == "" {
				continue
			}
			scored = append(scored, ScoredChunk{ID: match.Vector.Id, Text: text, Score: match.Score})
		}
	}

	chunks := RankChunks(scored, limit)
	if len(chunks) == 0 {
		log.Printf("[WARN] No chunks found for topics: %v", topics)
	}

	log.Printf("[INFO] Final chunks being returned: %d", len(chunks))
	return chunks, nil
}

type ScoredChunk struct {
	ID    string
	Text  string
	Score float32
}

// RankChunks keeps the best score per vector and returns the top limit texts.
func RankChunks(scored []ScoredChunk, limit int) []string {
	best := make(map[string]ScoredChunk, len(scored))
	for _, c := range scored {
		if existing, ok := best[c.ID]; !ok || c.Score > existing.Score {
			best[c.ID] = c
		}
	}

	unique := make([]ScoredChunk, 0, len(best))
	for _, c := range best {
		unique = append(unique, c)
	}
	sort.Slice(unique, func(i, j int) bool {
		if unique[i].Score == unique[j].Score {
			return unique[i].ID < unique[j].ID
		}
		return unique[i].Score > unique[j].Score
	})

	if len(unique) > limit {
		unique = unique[:limit]
	}

	texts := make([]string, len(unique))
	for i, c := range unique {
		texts[i] = c.Text
	}
	return texts
}

// FormatChunk renders a vector's metadata as reference text for prompts.
func FormatChunk(metadata map[string]any) string {
	var chunkParts []string

	if question, ok := metadata["question"].(string); ok && question != "" {
		header := "Question: " + question
		if title, ok := metadata["template_title"].(string); ok && title != "" {
			header += " (" + title + ")"
		}
		chunkParts = append(chunkParts, header)
	}

	if criteria, ok := metadata["criteria"].(string); ok && criteria != "" {
		chunkParts = append(chunkParts, "Criteria: "+criteria)
	}

	if content, ok := metadata["content"].(string); ok && content != "" {
		chunkParts = append(chunkParts, "Notes: "+content)
	}

	if enrichedContext, ok := metadata["enriched_context"].(string); ok && enrichedContext != "" {
		chunkParts = append(chunkParts, "Context: "+enrichedContext)
	}

	return strings.Join(chunkParts, "\n")
}

// EnsureIndex creates the serverless index when it does not exist and waits until it is ready.
func (s *Service) EnsureIndex(ctx context.Context) error {
	indexes, err := s.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}

	for _, idx := range indexes {
		if idx.Name == s.indexName {
			log.Printf("[INFO] Index %s already exists", s.indexName)
			return nil
		}
	}

	log.Printf("[INFO] Creating Pinecone index: %s", s.indexName)
	dimension := int32(indexDimension)
	deletionProtection := pinecone.DeletionProtectionDisabled
	metric := pinecone.Cosine

	_, err = s.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:               s.indexName,
		Dimension:          &dimension,
		Metric:             &metric,
		Cloud:              pinecone.Aws,
		Region:             "us-east-1",
		DeletionProtection: &deletionProtection,
		Tags:               &pinecone.IndexTags{"project": "interview-rubrics"},
	})
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	for {
		idx, err := s.client.DescribeIndex(ctx, s.indexName)
		if err != nil {
			return fmt.Errorf("failed to describe index: %w", err)
		}
		if idx.Status.Ready {
			log.Printf("[INFO] Index %s is ready", s.indexName)
			return nil
		}

		log.Printf("[INFO] Waiting for index %s to be ready...", s.indexName)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(indexPollTimeout):
		}
	}
}

// DeleteTemplateVectors removes every chunk previously indexed for a template.
func (s *Service) DeleteTemplateVectors(ctx context.Context, templateID int) error {
	idxConn, err := s.indexConnection(ctx)
	if err != nil {
		return err
	}
	defer idxConn.Close()

	prefix := TemplatePrefix(templateID)
	limit := uint32(100)

	listResp, err := idxConn.ListVectors(ctx, &pinecone.ListVectorsRequest{
		Prefix: &prefix,
		Limit:  &limit,
	})
	if err != nil {
		// A namespace that does not exist yet has nothing to delete.
		if strings.Contains(err.Error(), "Namespace not found") {
			return nil
		}
		return fmt.Errorf("failed to list vectors: %w", err)
	}

	for {
		ids := make([]string, 0, len(listResp.VectorIds))
		for _, id := range listResp.VectorIds {
			if id != nil {
				ids = append(ids, *id)
			}
		}

		if len(ids) > 0 {
			if err := idxConn.DeleteVectorsById(ctx, ids); err != nil {
				return fmt.Errorf("failed to delete vector batch: %w", err)
			}
			log.Printf("[INFO] Deleted %d vectors for template ID %d", len(ids), templateID)
		}

		if listResp.NextPaginationToken == nil {
			return nil
		}

		listResp, err = idxConn.ListVectors(ctx, &pinecone.ListVectorsRequest{
			Prefix:          &prefix,
			Limit:           &limit,
			PaginationToken: listResp.NextPaginationToken,
		})
		if err != nil {
			return fmt.Errorf("failed to list next batch of vectors: %w", err)
		}
	}
}

// UpsertChunks embeds the chunks and writes them in batches.
func (s *Service) UpsertChunks(ctx context.Context, chunks []RubricChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.EmbeddingText()
	}

	vectorsValues, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	vectors := make([]*pinecone.Vector, 0, len(chunks))
	for i, chunk := range chunks {
		metadata, err := structpb.NewStruct(chunk.Metadata())
		if err != nil {
			return fmt.Errorf("failed to create metadata struct for chunk %s: %w", chunk.ID, err)
		}

		vectors = append(vectors, &pinecone.Vector{
			Id:       chunk.ID,
			Values:   &vectorsValues[i],
			Metadata: metadata,
		})
	}

	idxConn, err := s.indexConnection(ctx)
	if err != nil {
		return err
	}
	defer idxConn.Close()

	for i := 0; i < len(vectors); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(vectors))

		count, err := idxConn.UpsertVectors(ctx, vectors[i:end])
		if err != nil {
			return fmt.Errorf("failed to upsert vector batch: %w", err)
		}
		log.Printf("[INFO] Successfully upserted %d vectors (batch %d)", count, i/upsertBatchSize+1)
	}

	return nil
}
