// Package local provides a deterministic feature-hashing embedder that needs
// no external service. It is meant for offline runs and tests.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const DefaultDimensions = 384

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Embedder hashes tokens and character bigrams into a fixed-size vector.
type Embedder struct {
	dims int
}

func New(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dims: dims}
}

// Dimensions returns the length of produced vectors.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Embed returns a unit vector for text. Text without tokens yields a zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding := make([]float32, e.dims)

	tf := make(map[string]int)
	for _, token := range tokenize(text) {
		tf[token]++
	}

	for token, count := range tf {
		weight := float32(1.0 + math.Log(float64(count)))

		e.add(embedding, hashString(token, 0), weight)
		e.add(embedding, hashString(token, 1), weight*0.5)
		e.add(embedding, hashString(token, 2), weight*0.25)

		runes := []rune(token)
		if len(runes) > 3 {
			for i := 0; i < len(runes)-1; i++ {
				e.add(embedding, hashString(string(runes[i:i+2]), 3), 0.1)
			}
		}
	}

	normalize(embedding)
	return embedding, nil
}

func (e *Embedder) add(embedding []float32, h uint64, weight float32) {
	pos := int(h % uint64(e.dims))
	if h&1 == 0 {
		embedding[pos] += weight
	} else {
		embedding[pos] -= weight
	}
}

func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)

	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		if len([]rune(m)) >= 2 {
			tokens = append(tokens, m)
		}
	}
	return tokens
}

func hashString(s string, seed uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte{byte(seed), byte(seed >> 8)})
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
