package embedding

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// State is the initialization state of a Lazy embedder.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Factory builds the underlying embedder. It may be slow.
type Factory func(ctx context.Context) (Embedder, error)

// Lazy defers construction of an embedder until the first Embed call.
// Concurrent first callers wait for a single factory call and share its
// outcome; after a failure the next call starts a new attempt.
type Lazy struct {
	factory Factory
	logger  *zap.Logger

	mu      sync.Mutex
	state   State
	current *attempt
}

type attempt struct {
	done     chan struct{}
	embedder Embedder
	err      error
}

func NewLazy(factory Factory, logger *zap.Logger) *Lazy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lazy{factory: factory, logger: logger}
}

// State reports the current initialization state.
func (l *Lazy) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	embedder, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return embedder.Embed(ctx, text)
}

func (l *Lazy) get(ctx context.Context) (Embedder, error) {
	l.mu.Lock()
	switch l.state {
	case StateReady:
		embedder := l.current.embedder
		l.mu.Unlock()
		return embedder, nil
	case StateInitializing:
		current := l.current
		l.mu.Unlock()
		return l.wait(ctx, current)
	}

	current := &attempt{done: make(chan struct{})}
	l.state = StateInitializing
	l.current = current
	l.mu.Unlock()

	l.logger.Info("initializing embedding model")

	// Detached from the first caller: its cancellation must not fail the
	// other waiters of this attempt.
	go l.initialize(context.WithoutCancel(ctx), current)

	return l.wait(ctx, current)
}

func (l *Lazy) initialize(ctx context.Context, current *attempt) {
	if l.factory == nil {
		current.err = fmt.Errorf("embedding factory is not configured")
	} else {
		current.embedder, current.err = l.factory(ctx)
		if current.err == nil && current.embedder == nil {
			current.err = fmt.Errorf("embedding factory returned no embedder")
		}
	}

	if current.err != nil {
		current.err = fmt.Errorf("initialize embedding model: %w", current.err)
	}

	l.mu.Lock()
	if current.err != nil {
		l.state = StateFailed
		l.logger.Error("embedding model initialization failed", zap.Error(current.err))
	} else {
		l.state = StateReady
		l.logger.Info("embedding model ready")
	}
	close(current.done)
	l.mu.Unlock()
}

func (l *Lazy) wait(ctx context.Context, current *attempt) (Embedder, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-current.done:
	}

	if current.err != nil {
		return nil, current.err
	}
	return current.embedder, nil
}
