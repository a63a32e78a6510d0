package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/logger"
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	MaxMessages   int
	TTL           time.Duration
	SweepInterval time.Duration
	// Now is the clock used for timestamps and expiry.
	Now func() time.Time
}

// Store owns every chat session of the process. Each session is guarded by
// its own mutex so unrelated sessions never wait on each other; the map
// itself is guarded by mu.
type Store struct {
	maxMessages   int
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*entry

	sweepMu sync.Mutex
}

type entry struct {
	mu      sync.Mutex
	session *Session
	removed bool
}

func NewStore(opts Options, log *zap.Logger) *Store {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = DefaultMaxMessages
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Store{
		maxMessages:   opts.MaxMessages,
		ttl:           opts.TTL,
		sweepInterval: opts.SweepInterval,
		now:           opts.Now,
		logger:        log,
		sessions:      make(map[string]*entry),
	}
}

// GetOrCreate returns the session stored under id, creating it with a title
// derived from firstMessage when absent. resumeRef is only used on creation.
func (s *Store) GetOrCreate(id, firstMessage, resumeRef string) *Session {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		e, ok = s.sessions[id]
		if !ok {
			now := s.now()
			e = &entry{session: &Session{
				ID:             id,
				Title:          Title(firstMessage),
				Messages:       []Message{},
				ResumeRef:      resumeRef,
				CreatedAt:      now,
				LastActivityAt: now,
			}}
			s.sessions[id] = e
			s.logger.Debug("session created", logger.Session(id))
		}
		s.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.clone()
}

// AppendTurn appends a user message and an assistant reply to the session,
// refreshes its activity time and drops the oldest messages beyond the cap.
// Concurrent turns on one session are applied one after another.
func (s *Store) AppendTurn(id string, user, assistant Message) (*Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.Newf(apperror.KindNotFound, "session %s not found", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return nil, apperror.Newf(apperror.KindNotFound, "session %s not found", id)
	}

	if user.Role == "" {
		user.Role = ai.RoleUser
	}
	if assistant.Role == "" {
		assistant.Role = ai.RoleAssistant
	}

	sess := e.session
	sess.Messages = append(sess.Messages, user, assistant)
	sess.LastActivityAt = s.now()

	if overflow := len(sess.Messages) - s.maxMessages; overflow > 0 {
		sess.Messages = append([]Message(nil), sess.Messages[overflow:]...)
	}

	return sess.clone(), nil
}

// Get returns a copy of the session, or false when it does not exist.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false
	}
	return e.session.clone(), true
}

// List returns summaries of all sessions, most recently active first.
func (s *Store) List() []Summary {
	summaries := make([]Summary, 0)
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if !e.removed {
			summaries = append(summaries, e.session.Summary())
		}
		e.mu.Unlock()
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivityAt.After(summaries[j].LastActivityAt)
	})
	return summaries
}

// Delete removes the session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()

	s.logger.Debug("session deleted", logger.Session(id))
	return true
}

// RenameTitle replaces the session title.
func (s *Store) RenameTitle(id, title string) (*Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.New(apperror.KindClient, "Title is required")
	}

	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperror.New(apperror.KindNotFound, "Session not found")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, apperror.New(apperror.KindNotFound, "Session not found")
	}

	e.session.Title = title
	return e.session.clone(), nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions whose last activity is older than the TTL relative
// to now and returns how many were removed. Sweeps never overlap.
func (s *Store) Sweep(now time.Time) int {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	cutoff := now.Add(-s.ttl)
	removed := 0

	for id, e := range s.snapshotByID() {
		e.mu.Lock()
		expired := !e.removed && e.session.LastActivityAt.Before(cutoff)
		e.mu.Unlock()
		if !expired {
			continue
		}

		// The entry may have been replaced or refreshed meanwhile.
		s.mu.Lock()
		current, ok := s.sessions[id]
		if ok && current == e {
			e.mu.Lock()
			if e.session.LastActivityAt.Before(cutoff) {
				delete(s.sessions, id)
				e.removed = true
				removed++
			}
			e.mu.Unlock()
		}
		s.mu.Unlock()
	}

	if removed > 0 {
		s.logger.Info("expired sessions removed", zap.Int("count", removed))
	}
	return removed
}

// Run sweeps expired sessions every sweep interval until ctx is done.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.logger.Info("session sweeper started",
		zap.Duration("interval", s.sweepInterval),
		zap.Duration("ttl", s.ttl),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

func (s *Store) snapshot() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	return entries
}

func (s *Store) snapshotByID() map[string]*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make(map[string]*entry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	return entries
}
