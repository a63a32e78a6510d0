// Package chat runs retrieval-augmented chat turns against the session store.
package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/logger"
	"github.com/spigell/resume-screener/internal/rag"
	"github.com/spigell/resume-screener/internal/session"
	"github.com/spigell/resume-screener/internal/utils"
)

const (
	DefaultTopK          = 3
	DefaultHistoryWindow = 5
	DefaultSnippetLength = 200
)

// Retriever finds context for a user message.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]rag.Context, error)
}

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	TopK          int
	HistoryWindow int
	SnippetLength int
	Sampling      ai.Sampling
	Now           func() time.Time
}

// Request is one user chat turn.
type Request struct {
	Message   string
	SessionID string
	ResumeRef string
}

// ContextRef describes a retrieved document in a chat response.
type ContextRef struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// SessionInfo is the session summary returned with every turn.
type SessionInfo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"messageCount"`
}

// Response is the outcome of a successful turn.
type Response struct {
	Text    string       `json:"response"`
	Context []ContextRef `json:"context"`
	Session SessionInfo  `json:"sessionInfo"`
}

// History is the stored conversation of a session. Session is nil when the
// session does not exist.
type History struct {
	Messages []session.Message `json:"history"`
	Session  *session.Summary  `json:"sessionInfo,omitempty"`
}

// Orchestrator coordinates retrieval, prompt assembly, generation and the
// session commit of a single turn. It holds no per-turn state.
type Orchestrator struct {
	store     *session.Store
	retriever Retriever
	generator ai.Generator
	opts      Options
	logger    *zap.Logger
}

func NewOrchestrator(store *session.Store, retriever Retriever, generator ai.Generator, opts Options, log *zap.Logger) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = DefaultSnippetLength
	}
	if opts.Sampling == (ai.Sampling{}) {
		opts.Sampling = ai.Sampling{Temperature: 0.7, MaxTokens: 1024}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		store:     store,
		retriever: retriever,
		generator: generator,
		opts:      opts,
		logger:    logger.ForComponent(log, "chat"),
	}
}

// Submit runs one chat turn. Retrieval problems degrade to an empty context;
// generation problems fail the turn and leave the session untouched.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, apperror.New(apperror.KindClient, "Message is required")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, apperror.New(apperror.KindClient, "Session ID is required")
	}

	log := o.logger.With(logger.Session(sessionID))

	sess := o.store.GetOrCreate(sessionID, message, strings.TrimSpace(req.ResumeRef))

	contexts := o.retrieve(ctx, log, message)

	prompt := BuildPrompt(contexts, sess.Messages, message, o.opts.HistoryWindow)
	log.Debug("chat prompt assembled",
		zap.Int("messages", len(prompt)),
		zap.Int("contexts", len(contexts)),
	)

	if o.generator == nil {
		return nil, apperror.New(apperror.KindGeneration, "Failed to generate response")
	}

	reply, err := o.generator.Complete(ctx, prompt, o.opts.Sampling)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = apperror.New(apperror.KindGeneration, "generation provider returned no content")
	}
	if err != nil {
		log.Error("chat generation failed", zap.Error(err))
		return nil, apperror.Wrap(apperror.KindGeneration, "Failed to generate response", err)
	}

	userAt := o.opts.Now()
	updated, err := o.store.AppendTurn(sessionID,
		session.Message{Role: ai.RoleUser, Content: message, Timestamp: userAt},
		session.Message{Role: ai.RoleAssistant, Content: reply, Timestamp: o.opts.Now()},
	)
	if err != nil {
		log.Warn("session vanished before the turn was committed", zap.Error(err))
		return nil, err
	}

	refs := make([]ContextRef, 0, len(contexts))
	for _, c := range contexts {
		refs = append(refs, ContextRef{ID: c.DocumentID, Score: c.Score, Snippet: c.Snippet(o.opts.SnippetLength)})
	}

	log.Info("chat turn completed",
		zap.Int("message_count", len(updated.Messages)),
		zap.String("reply_preview", utils.TruncateForLog(reply, 80)),
	)

	return &Response{
		Text:    reply,
		Context: refs,
		Session: SessionInfo{
			ID:           updated.ID,
			Title:        updated.Title,
			MessageCount: len(updated.Messages),
		},
	}, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, log *zap.Logger, message string) []rag.Context {
	if o.retriever == nil {
		return nil
	}

	contexts, err := o.retriever.Retrieve(ctx, message, o.opts.TopK)
	if err != nil {
		log.Warn("context retrieval failed, continuing without context",
			zap.String("error_kind", string(apperror.KindOf(err))),
			zap.Error(err),
		)
		return nil
	}
	return contexts
}

// History returns the stored messages of a session. Unknown sessions yield
// an empty history and no error.
func (o *Orchestrator) History(sessionID string) History {
	sess, ok := o.store.Get(sessionID)
	if !ok {
		return History{Messages: []session.Message{}}
	}
	summary := sess.Summary()
	return History{Messages: sess.Messages, Session: &summary}
}

// Sessions lists session summaries, most recently active first.
func (o *Orchestrator) Sessions() []session.Summary {
	return o.store.List()
}

// DeleteSession removes a session and reports whether it existed.
func (o *Orchestrator) DeleteSession(sessionID string) bool {
	return o.store.Delete(sessionID)
}

// RenameSession sets a new title on an existing session.
func (o *Orchestrator) RenameSession(sessionID, title string) (*session.Session, error) {
	return o.store.RenameTitle(sessionID, title)
}
