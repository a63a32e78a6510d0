// Package documents keeps the uploaded résumés and job descriptions and
// mirrors them into the vector index.
package documents

import (
	"context"
	"errors"
	"time"

	"github.com/spigell/resume-screener/internal/vectorstore"
)

// ErrNotFound is returned by repositories for unknown ids.
var ErrNotFound = errors.New("document not found")

// Document is an uploaded résumé or job description.
type Document struct {
	ID         string              `json:"id"`
	Type       vectorstore.DocType `json:"type"`
	FileName   string              `json:"fileName"`
	Text       string              `json:"text"`
	UploadedAt time.Time           `json:"uploadedAt"`
}

// Repository persists documents by type and id.
type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, docType vectorstore.DocType, id string) (*Document, error)
	List(ctx context.Context, docType vectorstore.DocType) ([]*Document, error)
	// Delete is idempotent.
	Delete(ctx context.Context, docType vectorstore.DocType, id string) error
	DeleteByType(ctx context.Context, docType vectorstore.DocType) error
	DeleteAll(ctx context.Context) error
}
