package documents

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/vectorstore"
)

type recordingIndexer struct {
	indexed  map[string]vectorstore.Metadata
	purged   bool
	indexErr error
}

func newRecordingIndexer() *recordingIndexer {
	return &recordingIndexer{indexed: make(map[string]vectorstore.Metadata)}
}

func (r *recordingIndexer) Index(_ context.Context, id string, md vectorstore.Metadata) error {
	if r.indexErr != nil {
		return r.indexErr
	}
	r.indexed[id] = md
	return nil
}

func (r *recordingIndexer) Delete(_ context.Context, id string) error {
	delete(r.indexed, id)
	return nil
}

func (r *recordingIndexer) DeleteByType(_ context.Context, docType vectorstore.DocType) error {
	for id, md := range r.indexed {
		if md.Type == docType {
			delete(r.indexed, id)
		}
	}
	return nil
}

func (r *recordingIndexer) Purge(context.Context) error {
	r.purged = true
	r.indexed = make(map[string]vectorstore.Metadata)
	return nil
}

func newTestService(indexer Indexer) *Service {
	n := 0
	return NewService(NewMemoryRepository(), indexer, Options{
		MaxBytes: 64,
		NewID: func() string {
			n++
			return fmt.Sprintf("doc-%d", n)
		},
		Now: func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	}, nil)
}

func TestUpload(t *testing.T) {
	indexer := newRecordingIndexer()
	svc := newTestService(indexer)

	doc, err := svc.Upload(context.Background(), vectorstore.DocTypeResume, "cv/Jane.TXT", []byte("  Go developer  "))
	require.NoError(t, err)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "Jane.TXT", doc.FileName)
	assert.Equal(t, "Go developer", doc.Text)
	assert.Equal(t, vectorstore.Metadata{Text: "Go developer", Type: vectorstore.DocTypeResume, FileName: "Jane.TXT"}, indexer.indexed["doc-1"])

	stored, err := svc.Get(context.Background(), vectorstore.DocTypeResume, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc, stored)
}

func TestUploadValidation(t *testing.T) {
	svc := newTestService(newRecordingIndexer())
	ctx := context.Background()

	cases := []struct {
		name     string
		docType  vectorstore.DocType
		fileName string
		content  []byte
		message  string
	}{
		{name: "pdf", docType: vectorstore.DocTypeResume, fileName: "cv.pdf", content: []byte("%PDF"), message: "Only TXT and MD files are allowed"},
		{name: "no file", docType: vectorstore.DocTypeResume, fileName: "", content: []byte("x"), message: "No file uploaded"},
		{name: "empty", docType: vectorstore.DocTypeJobDescription, fileName: "jd.md", content: []byte("   "), message: "File is empty"},
		{name: "too large", docType: vectorstore.DocTypeResume, fileName: "cv.txt", content: make([]byte, 65), message: "File is larger than 64 bytes"},
		{name: "binary", docType: vectorstore.DocTypeResume, fileName: "cv.txt", content: []byte{0xff, 0xfe}, message: "File must be UTF-8 text"},
		{name: "type", docType: "cover_letter", fileName: "cv.txt", content: []byte("x")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tc.docType, tc.fileName, tc.content)
			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.KindClient))
			if tc.message != "" {
				assert.Equal(t, tc.message, apperror.Message(err))
			}
		})
	}
}

func TestUploadIndexFailureStoresNothing(t *testing.T) {
	indexer := newRecordingIndexer()
	indexer.indexErr = apperror.Wrap(apperror.KindEmbedding, "failed to embed document", errors.New("down"))
	svc := newTestService(indexer)

	_, err := svc.Upload(context.Background(), vectorstore.DocTypeResume, "cv.txt", []byte("text"))
	assert.True(t, apperror.Is(err, apperror.KindEmbedding))

	docs, err := svc.List(context.Background(), vectorstore.DocTypeResume)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDeleteAndPurge(t *testing.T) {
	indexer := newRecordingIndexer()
	svc := newTestService(indexer)
	ctx := context.Background()

	r1, err := svc.Upload(ctx, vectorstore.DocTypeResume, "a.txt", []byte("a"))
	require.NoError(t, err)
	_, err = svc.Upload(ctx, vectorstore.DocTypeResume, "b.txt", []byte("b"))
	require.NoError(t, err)
	jd, err := svc.Upload(ctx, vectorstore.DocTypeJobDescription, "jd.md", []byte("jd"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, vectorstore.DocTypeResume, r1.ID))
	_, err = svc.Get(ctx, vectorstore.DocTypeResume, r1.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
	assert.Equal(t, "Resume not found", apperror.Message(err))
	assert.NotContains(t, indexer.indexed, r1.ID)

	require.NoError(t, svc.DeleteAll(ctx, vectorstore.DocTypeResume))
	resumes, _ := svc.List(ctx, vectorstore.DocTypeResume)
	assert.Empty(t, resumes)
	_, err = svc.Get(ctx, vectorstore.DocTypeJobDescription, jd.ID)
	assert.NoError(t, err)

	require.NoError(t, svc.Purge(ctx))
	assert.True(t, indexer.purged)
	_, err = svc.Get(ctx, vectorstore.DocTypeJobDescription, jd.ID)
	assert.Equal(t, "Job description not found", apperror.Message(err))
}
