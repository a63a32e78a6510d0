package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/embedding"
	"github.com/spigell/resume-screener/internal/embedding/local"
	"github.com/spigell/resume-screener/internal/vectorstore"
	"github.com/spigell/resume-screener/internal/vectorstore/memory"
)

type failingIndex struct {
	vectorstore.Index
	err error
}

func (f failingIndex) Query(context.Context, []float32, int, *vectorstore.Filter) ([]vectorstore.Match, error) {
	return nil, f.err
}

type unsortedIndex struct {
	vectorstore.Index
	matches []vectorstore.Match
}

func (u unsortedIndex) Query(context.Context, []float32, int, *vectorstore.Filter) ([]vectorstore.Match, error) {
	return u.matches, nil
}

func newPipeline(t *testing.T) (*Indexer, *Retriever) {
	t.Helper()

	fixed := embedding.NewFixed(local.New(64), 128, 512)
	idx, err := memory.New(fixed.Dimension())
	require.NoError(t, err)

	return NewIndexer(fixed, idx, nil), NewRetriever(fixed, idx, nil)
}

func TestIndexAndRetrieve(t *testing.T) {
	indexer, retriever := newPipeline(t)
	ctx := context.Background()

	require.NoError(t, indexer.Index(ctx, "r1", vectorstore.Metadata{Text: "Go developer with Kubernetes and PostgreSQL", Type: vectorstore.DocTypeResume, FileName: "go.txt"}))
	require.NoError(t, indexer.Index(ctx, "r2", vectorstore.Metadata{Text: "Pastry chef with French desserts background", Type: vectorstore.DocTypeResume}))
	require.NoError(t, indexer.Index(ctx, "j1", vectorstore.Metadata{Text: "Hiring a Kubernetes platform engineer", Type: vectorstore.DocTypeJobDescription}))

	contexts, err := retriever.Retrieve(ctx, "Which candidate knows Go and Kubernetes?", 2)
	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, "r1", contexts[0].DocumentID)
	assert.Equal(t, "go.txt", contexts[0].FileName)
	assert.GreaterOrEqual(t, contexts[0].Score, contexts[1].Score)

	onlyJobs, err := retriever.RetrieveFiltered(ctx, "Kubernetes", 5, &vectorstore.Filter{Type: vectorstore.DocTypeJobDescription})
	require.NoError(t, err)
	require.Len(t, onlyJobs, 1)
	assert.Equal(t, "j1", onlyJobs[0].DocumentID)

	require.NoError(t, indexer.DeleteByType(ctx, vectorstore.DocTypeResume))
	remaining, err := retriever.Retrieve(ctx, "Go", 5)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	require.NoError(t, indexer.Purge(ctx))
	empty, err := retriever.Retrieve(ctx, "Go", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	failing := embedding.Func(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("model unavailable")
	})
	idx, err := memory.New(4)
	require.NoError(t, err)

	_, err = NewRetriever(failing, idx, nil).Retrieve(context.Background(), "query", 3)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindEmbedding))
}

func TestRetrieveIndexFailure(t *testing.T) {
	fixed := embedding.NewFixed(local.New(8), 8, 512)

	_, err := NewRetriever(fixed, failingIndex{err: errors.New("connection refused")}, nil).Retrieve(context.Background(), "query", 3)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindRetrieval))
}

func TestRetrieveSortsAndBounds(t *testing.T) {
	fixed := embedding.NewFixed(local.New(8), 8, 512)
	idx := unsortedIndex{matches: []vectorstore.Match{
		{ID: "low", Score: 0.1},
		{ID: "high", Score: 0.9},
		{ID: "mid", Score: 0.5},
	}}

	contexts, err := NewRetriever(fixed, idx, nil).Retrieve(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, "high", contexts[0].DocumentID)
	assert.Equal(t, "mid", contexts[1].DocumentID)
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	_, retriever := newPipeline(t)
	_, err := retriever.Retrieve(context.Background(), "  ", 3)
	assert.True(t, apperror.Is(err, apperror.KindClient))
}

func TestIndexValidation(t *testing.T) {
	indexer, _ := newPipeline(t)
	ctx := context.Background()

	assert.True(t, apperror.Is(indexer.Index(ctx, "", vectorstore.Metadata{Text: "x", Type: vectorstore.DocTypeResume}), apperror.KindClient))
	assert.True(t, apperror.Is(indexer.Index(ctx, "id", vectorstore.Metadata{Type: vectorstore.DocTypeResume}), apperror.KindClient))
	assert.True(t, apperror.Is(indexer.Index(ctx, "id", vectorstore.Metadata{Text: "x", Type: "cover_letter"}), apperror.KindClient))
}

func TestContextSnippet(t *testing.T) {
	c := Context{Text: "abcdef"}
	assert.Equal(t, "abc", c.Snippet(3))
	assert.Equal(t, "abcdef", c.Snippet(200))
}
