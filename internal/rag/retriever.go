// Package rag retrieves indexed résumé and job-description text by vector
// similarity and keeps the index in sync with uploaded documents.
package rag

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/embedding"
	"github.com/spigell/resume-screener/internal/utils"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

const DefaultTopK = 3

// Context is one retrieved document with its similarity score.
type Context struct {
	DocumentID string
	Score      float64
	Text       string
	Type       vectorstore.DocType
	FileName   string
	Extra      map[string]string
}

// Snippet returns the first n runes of the context text.
func (c Context) Snippet(n int) string {
	return utils.TruncateRunes(c.Text, n)
}

// Retriever embeds a query and looks up its nearest neighbours.
type Retriever struct {
	embedder embedding.Embedder
	index    vectorstore.Index
	logger   *zap.Logger
}

// NewRetriever expects embedder to already produce vectors of the index
// dimension, normally an *embedding.Fixed shared with the Indexer.
func NewRetriever(embedder embedding.Embedder, index vectorstore.Index, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, index: index, logger: logger}
}

// Retrieve returns at most topK contexts ordered by score, highest first.
// Embedding errors are reported as embedding_failure and index errors as
// retrieval_failure.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Context, error) {
	return r.RetrieveFiltered(ctx, query, topK, nil)
}

// RetrieveFiltered is Retrieve restricted to documents matching filter.
func (r *Retriever) RetrieveFiltered(ctx context.Context, query string, topK int, filter *vectorstore.Filter) ([]Context, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperror.New(apperror.KindClient, "query must not be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if r.embedder == nil {
		return nil, apperror.New(apperror.KindEmbedding, "embedding provider is not configured")
	}
	if r.index == nil {
		return nil, apperror.New(apperror.KindRetrieval, "vector index is not configured")
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindEmbedding, "failed to embed query", err)
	}
	if len(vector) == 0 {
		return nil, apperror.Wrap(apperror.KindEmbedding, "failed to embed query", errors.New("empty vector"))
	}

	matches, err := r.index.Query(ctx, vector, topK, filter)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindRetrieval, "failed to search vector index", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}

	contexts := make([]Context, 0, len(matches))
	for _, m := range matches {
		contexts = append(contexts, Context{
			DocumentID: m.ID,
			Score:      m.Score,
			Text:       m.Metadata.Text,
			Type:       m.Metadata.Type,
			FileName:   m.Metadata.FileName,
			Extra:      m.Metadata.Extra,
		})
	}

	r.logger.Debug("retrieved context",
		zap.Int("requested", topK),
		zap.Int("found", len(contexts)),
	)

	return contexts, nil
}
