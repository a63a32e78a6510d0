// Package qdrant implements vectorstore.Index over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/vectorstore"
)

const (
	DefaultURL        = "http://localhost:6333"
	DefaultCollection = "resume-screening"

	defaultTimeout = 15 * time.Second
	defaultTopK    = 5

	payloadDocID = "doc_id"
)

// Config configures the Qdrant index.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Index talks to one Qdrant collection with cosine distance. The collection
// is created on first use when missing.
type Index struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
	logger     *zap.Logger

	ensureMu sync.Mutex
	ensured  bool
}

func New(cfg Config, logger *zap.Logger) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}

	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = DefaultURL
	}

	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = DefaultCollection
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Index{
		url:        base,
		apiKey:     cfg.APIKey,
		collection: collection,
		dimension:  cfg.Dimension,
		client:     client,
		logger:     logger,
	}, nil
}

// PointID maps a document id onto a Qdrant point id. Qdrant accepts only
// unsigned integers and UUIDs, so other ids become a name-based UUID.
func PointID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (s *Index) Upsert(ctx context.Context, records ...vectorstore.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	points := make([]point, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return errors.New("record id must not be empty")
		}
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(r.Vector), s.dimension)
		}
		points = append(points, point{ID: PointID(r.ID), Vector: r.Vector, Payload: encodePayload(r.ID, r.Metadata)})
	}

	return s.do(ctx, http.MethodPut, s.collectionPath("points")+"?wait=true", map[string]any{"points": points}, nil)
}

func (s *Index) Query(ctx context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]vectorstore.Match, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionPath("points/search"), req, &resp); err != nil {
		return nil, err
	}

	matches := make([]vectorstore.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, md, err := decodePayload(r.Payload)
		if err != nil {
			s.logger.Warn("skipping point with malformed payload", zap.Any("point_id", r.ID), zap.Error(err))
			continue
		}
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		matches = append(matches, vectorstore.Match{ID: id, Score: r.Score, Metadata: md})
	}

	return matches, nil
}

func (s *Index) DeleteByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}

	points := make([]string, 0, len(ids))
	for _, id := range ids {
		points = append(points, PointID(id))
	}
	return s.do(ctx, http.MethodPost, s.collectionPath("points/delete")+"?wait=true", map[string]any{"points": points}, nil)
}

func (s *Index) DeleteByFilter(ctx context.Context, filter vectorstore.Filter) error {
	f := buildFilter(&filter)
	if f == nil {
		return s.DeleteAll(ctx)
	}
	if err := s.ensureCollection(ctx); err != nil {
		return err
	}
	return s.do(ctx, http.MethodPost, s.collectionPath("points/delete")+"?wait=true", map[string]any{"filter": f}, nil)
}

// DeleteAll drops the collection. It is recreated on next use.
func (s *Index) DeleteAll(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	err := s.do(ctx, http.MethodDelete, s.collectionPath(""), nil, nil)
	var statusErr *StatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound) {
		return err
	}
	s.ensured = false
	return nil
}

func (s *Index) ensureCollection(ctx context.Context) error {
	s.ensureMu.Lock()
	defer s.ensureMu.Unlock()

	if s.ensured {
		return nil
	}

	err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, nil)
	if err == nil {
		s.ensured = true
		return nil
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionPath(""), body, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	s.logger.Info("created qdrant collection",
		zap.String("collection", s.collection),
		zap.Int("dimension", s.dimension),
	)
	s.ensured = true
	return nil
}

func buildFilter(filter *vectorstore.Filter) map[string]any {
	if filter == nil || filter.Type == "" {
		return nil
	}
	return map[string]any{
		"must": []any{
			map[string]any{
				"key":   "type",
				"match": map[string]any{"value": string(filter.Type)},
			},
		},
	}
}

func encodePayload(id string, md vectorstore.Metadata) map[string]any {
	payload := map[string]any{
		payloadDocID: id,
		"text":       md.Text,
		"type":       string(md.Type),
	}
	if md.FileName != "" {
		payload["fileName"] = md.FileName
	}
	if len(md.Extra) > 0 {
		payload["extra"] = md.Extra
	}
	return payload
}

type storedPayload struct {
	vectorstore.Metadata `mapstructure:",squash"`

	DocID string `mapstructure:"doc_id"`
}

func decodePayload(payload map[string]any) (string, vectorstore.Metadata, error) {
	var out storedPayload

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return "", vectorstore.Metadata{}, err
	}

	if err := decoder.Decode(payload); err != nil {
		return "", vectorstore.Metadata{}, fmt.Errorf("decode payload: %w", err)
	}

	return out.DocID, out.Metadata, nil
}

// StatusError is returned for non-2xx Qdrant responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("qdrant %s %s failed: %s", e.Method, e.Path, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (s *Index) collectionPath(suffix string) string {
	p := "/collections/" + url.PathEscape(s.collection)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (s *Index) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return fmt.Errorf("build qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   strings.TrimSpace(string(detail)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	return nil
}
