package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/resume-screener/internal/utils"
)

// Fixed bounds the input of an inner embedder and reshapes every vector to
// the index dimension. Indexing and querying must go through the same Fixed
// so stored and query vectors stay comparable.
type Fixed struct {
	inner         Embedder
	dimension     int
	maxInputChars int
}

func NewFixed(inner Embedder, dimension, maxInputChars int) *Fixed {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}

	return &Fixed{
		inner:         inner,
		dimension:     dimension,
		maxInputChars: maxInputChars,
	}
}

func (f *Fixed) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.inner == nil {
		return nil, errors.New("embedder is not configured")
	}

	vec, err := f.inner.Embed(ctx, utils.TruncateRunes(text, f.maxInputChars))
	if err != nil {
		return nil, err
	}

	if len(vec) == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}

	return Reshape(vec, f.dimension), nil
}

// Dimension returns the length of every vector produced by f.
func (f *Fixed) Dimension() int {
	return f.dimension
}
