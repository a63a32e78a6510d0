package documents

import (
	"context"
	"sort"
	"sync"

	"github.com/spigell/resume-screener/internal/vectorstore"
)

// MemoryRepository keeps documents in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[vectorstore.DocType]map[string]Document
}

// Verify MemoryRepository implements Repository
var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[vectorstore.DocType]map[string]Document)}
}

func (r *MemoryRepository) Save(_ context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.docs[doc.Type]
	if !ok {
		byID = make(map[string]Document)
		r.docs[doc.Type] = byID
	}
	byID[doc.ID] = *doc
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, docType vectorstore.DocType, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[docType][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (r *MemoryRepository) List(_ context.Context, docType vectorstore.DocType) ([]*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]*Document, 0, len(r.docs[docType]))
	for _, doc := range r.docs[docType] {
		doc := doc
		docs = append(docs, &doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

func (r *MemoryRepository) Delete(_ context.Context, docType vectorstore.DocType, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs[docType], id)
	return nil
}

func (r *MemoryRepository) DeleteByType(_ context.Context, docType vectorstore.DocType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, docType)
	return nil
}

func (r *MemoryRepository) DeleteAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[vectorstore.DocType]map[string]Document)
	return nil
}
