package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("retrieve: %w", Wrap(KindRetrieval, "failed to search vectors", cause))

	assert.Equal(t, KindRetrieval, KindOf(err))
	assert.True(t, Is(err, KindRetrieval))
	assert.False(t, Is(err, KindEmbedding))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to search vectors", Message(err))
}

func TestKindOfPlainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal Server Error", Message(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "Session not found", New(KindNotFound, "Session not found").Error())
	assert.Equal(t, "bad: inner", Wrap(KindClient, "bad", errors.New("inner")).Error())
	assert.Equal(t, "unknown id 7", Newf(KindNotFound, "unknown id %d", 7).Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindClient:        http.StatusBadRequest,
		KindNotFound:      http.StatusNotFound,
		KindGeneration:    http.StatusInternalServerError,
		KindEmbedding:     http.StatusInternalServerError,
		KindConfiguration: http.StatusServiceUnavailable,
		KindInternal:      http.StatusInternalServerError,
	}

	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), string(kind))
	}
}
