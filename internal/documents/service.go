package documents

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/logger"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

// DefaultMaxBytes limits the size of a single upload.
const DefaultMaxBytes = 10 << 20

var allowedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Indexer keeps document vectors in the index.
type Indexer interface {
	Index(ctx context.Context, id string, md vectorstore.Metadata) error
	Delete(ctx context.Context, id string) error
	DeleteByType(ctx context.Context, docType vectorstore.DocType) error
	Purge(ctx context.Context) error
}

// Options configures a Service.
type Options struct {
	MaxBytes int
	NewID    func() string
	Now      func() time.Time
}

// Service accepts uploads, indexes them and records them in the repository.
type Service struct {
	repo     Repository
	indexer  Indexer
	maxBytes int
	newID    func() string
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(repo Repository, indexer Indexer, opts Options, log *zap.Logger) *Service {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:     repo,
		indexer:  indexer,
		maxBytes: opts.MaxBytes,
		newID:    opts.NewID,
		now:      opts.Now,
		logger:   logger.ForComponent(log, "documents"),
	}
}

// Upload validates and stores a plain-text document. The vector is written
// before the repository record so a failed upload leaves nothing behind.
func (s *Service) Upload(ctx context.Context, docType vectorstore.DocType, fileName string, content []byte) (*Document, error) {
	if !docType.Valid() {
		return nil, apperror.Newf(apperror.KindClient, "unsupported document type %q", docType)
	}

	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, apperror.New(apperror.KindClient, "No file uploaded")
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(fileName))] {
		return nil, apperror.New(apperror.KindClient, "Only TXT and MD files are allowed")
	}
	if len(content) > s.maxBytes {
		return nil, apperror.Newf(apperror.KindClient, "File is larger than %d bytes", s.maxBytes)
	}
	if !utf8.Valid(content) {
		return nil, apperror.New(apperror.KindClient, "File must be UTF-8 text")
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, apperror.New(apperror.KindClient, "File is empty")
	}

	doc := &Document{
		ID:         s.newID(),
		Type:       docType,
		FileName:   filepath.Base(fileName),
		Text:       text,
		UploadedAt: s.now(),
	}

	if err := s.indexer.Index(ctx, doc.ID, vectorstore.Metadata{Text: doc.Text, Type: doc.Type, FileName: doc.FileName}); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, doc); err != nil {
		if cleanupErr := s.indexer.Delete(ctx, doc.ID); cleanupErr != nil {
			s.logger.Warn("failed to remove vector of unsaved document", logger.Document(doc.ID), zap.Error(cleanupErr))
		}
		return nil, apperror.Wrap(apperror.KindInternal, "Failed to store document", err)
	}

	s.logger.Info("document uploaded",
		logger.Document(doc.ID),
		zap.String("type", string(doc.Type)),
		zap.String("file", doc.FileName),
		zap.Int("length", utf8.RuneCountInString(doc.Text)),
	)
	return doc, nil
}

// Get returns a stored document or a not_found error.
func (s *Service) Get(ctx context.Context, docType vectorstore.DocType, id string) (*Document, error) {
	doc, err := s.repo.Get(ctx, docType, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.New(apperror.KindNotFound, notFoundMessage(docType))
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "Failed to load document", err)
	}
	return doc, nil
}

// List returns the documents of a type, newest first.
func (s *Service) List(ctx context.Context, docType vectorstore.DocType) ([]*Document, error) {
	docs, err := s.repo.List(ctx, docType)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "Failed to list documents", err)
	}
	return docs, nil
}

// Delete removes a document and its vector. Unknown ids are not an error.
func (s *Service) Delete(ctx context.Context, docType vectorstore.DocType, id string) error {
	if err := s.indexer.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, docType, id); err != nil {
		return apperror.Wrap(apperror.KindInternal, "Failed to delete document", err)
	}
	s.logger.Info("document deleted", logger.Document(id), zap.String("type", string(docType)))
	return nil
}

// DeleteAll removes every document of one type.
func (s *Service) DeleteAll(ctx context.Context, docType vectorstore.DocType) error {
	if err := s.indexer.DeleteByType(ctx, docType); err != nil {
		return err
	}
	if err := s.repo.DeleteByType(ctx, docType); err != nil {
		return apperror.Wrap(apperror.KindInternal, "Failed to delete documents", err)
	}
	s.logger.Info("documents deleted", zap.String("type", string(docType)))
	return nil
}

// Purge clears the vector index and the document registry. Chat sessions
// are not affected.
func (s *Service) Purge(ctx context.Context) error {
	if err := s.indexer.Purge(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteAll(ctx); err != nil {
		return apperror.Wrap(apperror.KindInternal, "Failed to delete documents", err)
	}
	s.logger.Warn("all documents purged")
	return nil
}

func notFoundMessage(docType vectorstore.DocType) string {
	if docType == vectorstore.DocTypeJobDescription {
		return "Job description not found"
	}
	return "Resume not found"
}
