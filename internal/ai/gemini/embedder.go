package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultEmbeddingModel = "text-embedding-004"
	embeddingTaskType     = "SEMANTIC_SIMILARITY"
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder turns text into vectors with the Gemini embedding models.
type Embedder struct {
	models     contentEmbedder
	model      string
	dimension  int32
	maxRetries int
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder. A positive dimension is sent to the API as
// the requested output dimensionality.
func NewEmbedder(ctx context.Context, apiKey, model string, dimension, maxRetries int, timeout time.Duration, logger *zap.Logger) (*Embedder, error) {
	client, err := newClient(ctx, apiKey, timeout)
	if err != nil {
		return nil, err
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		models:     client.Models,
		model:      model,
		dimension:  int32(dimension),
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text to embed must not be empty")
	}

	config := &genai.EmbedContentConfig{TaskType: embeddingTaskType}
	if e.dimension > 0 {
		config.OutputDimensionality = genai.Ptr(e.dimension)
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		resp, err := e.models.EmbedContent(ctx, e.model, contents, config)
		if err == nil {
			if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
				return nil, errors.New("gemini api returned empty embedding")
			}
			return resp.Embeddings[0].Values, nil
		}

		lastErr = err
		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == e.maxRetries-1 {
			break
		}

		e.logger.Warn("gemini embedding request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		sleep(delay)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("embed content: %w", ctxErr)
		}
	}

	return nil, fmt.Errorf("embed content: %w", lastErr)
}

// Model returns the configured embedding model name.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}
