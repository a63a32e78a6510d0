package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-screener/internal/documents"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

func TestRepository(t *testing.T) {
	repo, err := Open(filepath.Join(t.TempDir(), "data", "docs.db"))
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, &documents.Document{ID: "a", Type: vectorstore.DocTypeResume, FileName: "a.txt", Text: "alpha", UploadedAt: base}))
	require.NoError(t, repo.Save(ctx, &documents.Document{ID: "b", Type: vectorstore.DocTypeResume, FileName: "b.txt", Text: "beta", UploadedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Save(ctx, &documents.Document{ID: "j", Type: vectorstore.DocTypeJobDescription, FileName: "j.md", Text: "job", UploadedAt: base}))

	doc, err := repo.Get(ctx, vectorstore.DocTypeResume, "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", doc.Text)
	assert.Equal(t, vectorstore.DocTypeResume, doc.Type)
	assert.True(t, base.Equal(doc.UploadedAt))

	_, err = repo.Get(ctx, vectorstore.DocTypeJobDescription, "a")
	assert.ErrorIs(t, err, documents.ErrNotFound)

	list, err := repo.List(ctx, vectorstore.DocTypeResume)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	require.NoError(t, repo.Save(ctx, &documents.Document{ID: "a", Type: vectorstore.DocTypeResume, FileName: "a.txt", Text: "updated", UploadedAt: base}))
	doc, err = repo.Get(ctx, vectorstore.DocTypeResume, "a")
	require.NoError(t, err)
	assert.Equal(t, "updated", doc.Text)

	require.NoError(t, repo.Delete(ctx, vectorstore.DocTypeResume, "a"))
	require.NoError(t, repo.Delete(ctx, vectorstore.DocTypeResume, "a"))
	_, err = repo.Get(ctx, vectorstore.DocTypeResume, "a")
	assert.ErrorIs(t, err, documents.ErrNotFound)

	require.NoError(t, repo.DeleteByType(ctx, vectorstore.DocTypeResume))
	list, err = repo.List(ctx, vectorstore.DocTypeResume)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, repo.DeleteAll(ctx))
	_, err = repo.Get(ctx, vectorstore.DocTypeJobDescription, "j")
	assert.ErrorIs(t, err, documents.ErrNotFound)
}

func TestOpenInMemory(t *testing.T) {
	repo, err := Open(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &documents.Document{ID: "x", Type: vectorstore.DocTypeResume, FileName: "x.txt", Text: "x", UploadedAt: time.Now()}))
	_, err = repo.Get(ctx, vectorstore.DocTypeResume, "x")
	assert.NoError(t, err)
}
