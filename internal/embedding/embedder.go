// Package embedding adapts embedding providers to the fixed vector shape the
// index expects.
package embedding

import (
	"context"
)

const (
	DefaultDimension     = 1024
	DefaultMaxInputChars = 512
)

// Embedder converts text into a numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to Embedder.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Reshape returns a copy of vec with exactly dim values: longer vectors are
// truncated and shorter ones are padded with zeros.
func Reshape(vec []float32, dim int) []float32 {
	if dim <= 0 {
		return nil
	}

	out := make([]float32, dim)
	copy(out, vec)
	return out
}
