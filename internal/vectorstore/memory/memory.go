// Package memory is an in-process vector index using brute-force cosine similarity.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/spigell/resume-screener/internal/vectorstore"
)

const defaultTopK = 5

// Index keeps every record in memory. Vectors must share the configured dimension.
type Index struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]vectorstore.Record
}

func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Index{
		dimension: dimension,
		records:   make(map[string]vectorstore.Record),
	}, nil
}

func (s *Index) Upsert(_ context.Context, records ...vectorstore.Record) error {
	for _, r := range records {
		if r.ID == "" {
			return errors.New("record id must not be empty")
		}
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(r.Vector), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		s.records[r.ID] = r
	}
	return nil
}

func (s *Index) Query(ctx context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]vectorstore.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), s.dimension)
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	s.mu.RLock()
	matches := make([]vectorstore.Match, 0, len(s.records))
	for id, r := range s.records {
		if !filter.Matches(r.Metadata) {
			continue
		}
		matches = append(matches, vectorstore.Match{
			ID:       id,
			Score:    cosine(r.Vector, vector),
			Metadata: r.Metadata,
		})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Index) DeleteByID(_ context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *Index) DeleteByFilter(_ context.Context, filter vectorstore.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if filter.Matches(r.Metadata) {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *Index) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]vectorstore.Record)
	return nil
}

// Len returns the number of stored records.
func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
