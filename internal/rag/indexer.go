package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/embedding"
	"github.com/spigell/resume-screener/internal/logger"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

// Indexer writes documents into the vector index using the same embedder
// as the Retriever.
type Indexer struct {
	embedder embedding.Embedder
	index    vectorstore.Index
	logger   *zap.Logger
}

func NewIndexer(embedder embedding.Embedder, index vectorstore.Index, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Indexer{embedder: embedder, index: index, logger: log}
}

// Index embeds md.Text and upserts it under id.
func (i *Indexer) Index(ctx context.Context, id string, md vectorstore.Metadata) error {
	if strings.TrimSpace(id) == "" {
		return apperror.New(apperror.KindClient, "document id must not be empty")
	}
	if strings.TrimSpace(md.Text) == "" {
		return apperror.New(apperror.KindClient, "document text must not be empty")
	}
	if !md.Type.Valid() {
		return apperror.Newf(apperror.KindClient, "unsupported document type %q", md.Type)
	}

	vector, err := i.embedder.Embed(ctx, md.Text)
	if err != nil {
		return apperror.Wrap(apperror.KindEmbedding, "failed to embed document", err)
	}

	if err := i.index.Upsert(ctx, vectorstore.Record{ID: id, Vector: vector, Metadata: md}); err != nil {
		return apperror.Wrap(apperror.KindRetrieval, "failed to store document vector", err)
	}

	i.logger.Info("indexed document",
		logger.Document(id),
		zap.String("type", string(md.Type)),
		zap.Int("dimension", len(vector)),
	)
	return nil
}

// Delete removes the vector stored under id.
func (i *Indexer) Delete(ctx context.Context, id string) error {
	if err := i.index.DeleteByID(ctx, id); err != nil {
		return apperror.Wrap(apperror.KindRetrieval, "failed to delete document vector", err)
	}
	return nil
}

// DeleteByType removes every vector of the given document type.
func (i *Indexer) DeleteByType(ctx context.Context, docType vectorstore.DocType) error {
	if !docType.Valid() {
		return apperror.Newf(apperror.KindClient, "unsupported document type %q", docType)
	}
	if err := i.index.DeleteByFilter(ctx, vectorstore.Filter{Type: docType}); err != nil {
		return apperror.Wrap(apperror.KindRetrieval, "failed to delete document vectors", err)
	}
	return nil
}

// Purge removes every vector from the index.
func (i *Indexer) Purge(ctx context.Context) error {
	if err := i.index.DeleteAll(ctx); err != nil {
		return apperror.Wrap(apperror.KindRetrieval, "failed to purge vector index", err)
	}
	i.logger.Warn("vector index purged")
	return nil
}
