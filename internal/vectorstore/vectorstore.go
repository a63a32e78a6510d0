// Package vectorstore defines the vector index contract shared by the
// in-process and Qdrant implementations.
package vectorstore

import (
	"context"
	"fmt"
)

// DocType discriminates indexed documents.
type DocType string

const (
	DocTypeResume         DocType = "resume"
	DocTypeJobDescription DocType = "job_description"
)

// ParseDocType accepts the canonical names plus the hyphenated form used in URLs.
func ParseDocType(s string) (DocType, error) {
	switch s {
	case string(DocTypeResume), "resumes":
		return DocTypeResume, nil
	case string(DocTypeJobDescription), "job-description", "job-descriptions", "job_descriptions":
		return DocTypeJobDescription, nil
	default:
		return "", fmt.Errorf("unknown document type %q", s)
	}
}

// Valid reports whether t is a known document type.
func (t DocType) Valid() bool {
	return t == DocTypeResume || t == DocTypeJobDescription
}

// Metadata is attached to every indexed vector. The known fields are fixed;
// Extra carries forward-compatible string attributes.
type Metadata struct {
	Text     string            `json:"text" mapstructure:"text"`
	Type     DocType           `json:"type" mapstructure:"type"`
	FileName string            `json:"fileName,omitempty" mapstructure:"fileName"`
	Extra    map[string]string `json:"extra,omitempty" mapstructure:"extra"`
}

// Record is a vector with its id and metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a query hit. Higher scores are more similar.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Filter restricts queries and bulk deletes. An empty Type matches everything.
type Filter struct {
	Type DocType
}

// Matches reports whether md satisfies f. A nil filter matches everything.
func (f *Filter) Matches(md Metadata) bool {
	if f == nil || f.Type == "" {
		return true
	}
	return md.Type == f.Type
}

// Index stores vectors and answers nearest-neighbour queries.
type Index interface {
	Upsert(ctx context.Context, records ...Record) error
	// Query returns at most topK matches ordered by score, highest first.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error)
	DeleteByID(ctx context.Context, ids ...string) error
	DeleteByFilter(ctx context.Context, filter Filter) error
	DeleteAll(ctx context.Context) error
}
