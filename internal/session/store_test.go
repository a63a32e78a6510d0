package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/apperror"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(Options{Now: clock.Now}, nil), clock
}

func turn(i int) (Message, Message) {
	return Message{Role: ai.RoleUser, Content: fmt.Sprintf("question %d", i)},
		Message{Role: ai.RoleAssistant, Content: fmt.Sprintf("answer %d", i)}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Can you summarize this candidate's strongest",
		Title("Can you summarize this candidate's strongest programming skills please"))

	long := Title("Supercalifragilisticexpialidocious antidisestablishmentarianism pneumonoultramicroscopic words here")
	assert.True(t, strings.HasSuffix(long, "..."))
	assert.Equal(t, 53, len([]rune(long)))

	assert.Equal(t, "hi", Title("hi"))
}

func TestGetOrCreate(t *testing.T) {
	store, _ := newTestStore()

	first := store.GetOrCreate("s1", "Tell me about the Go candidate", "resume-1")
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, "Tell me about the Go candidate", first.Title)
	assert.Equal(t, "resume-1", first.ResumeRef)
	assert.Empty(t, first.Messages)

	again := store.GetOrCreate("s1", "a different first message", "resume-2")
	assert.Equal(t, first.Title, again.Title)
	assert.Equal(t, "resume-1", again.ResumeRef)
	assert.Equal(t, 1, store.Len())
}

func TestAppendTurnCapsHistory(t *testing.T) {
	for _, n := range []int{1, 10, 25, 26, 40} {
		t.Run(fmt.Sprintf("%d turns", n), func(t *testing.T) {
			store, _ := newTestStore()
			store.GetOrCreate("s", "hello", "")

			var sess *Session
			var err error
			for i := 0; i < n; i++ {
				u, a := turn(i)
				sess, err = store.AppendTurn("s", u, a)
				require.NoError(t, err)
			}

			want := 2 * n
			if want > DefaultMaxMessages {
				want = DefaultMaxMessages
			}
			require.Len(t, sess.Messages, want)

			// The newest turn is always last and the oldest retained one first.
			assert.Equal(t, fmt.Sprintf("answer %d", n-1), sess.Messages[len(sess.Messages)-1].Content)
			oldest := n - want/2
			assert.Equal(t, fmt.Sprintf("question %d", oldest), sess.Messages[0].Content)
		})
	}
}

func TestAppendTurnUpdatesActivity(t *testing.T) {
	store, clock := newTestStore()
	created := store.GetOrCreate("s", "hello", "")

	clock.Set(created.CreatedAt.Add(time.Minute))
	u, a := turn(0)
	sess, err := store.AppendTurn("s", u, a)
	require.NoError(t, err)

	assert.Equal(t, created.CreatedAt, sess.CreatedAt)
	assert.Equal(t, created.CreatedAt.Add(time.Minute), sess.LastActivityAt)
}

func TestAppendTurnUnknownSession(t *testing.T) {
	store, _ := newTestStore()
	u, a := turn(0)

	_, err := store.AppendTurn("missing", u, a)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	store.GetOrCreate("s", "hello", "")
	require.True(t, store.Delete("s"))
	_, err = store.AppendTurn("s", u, a)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	store, _ := newTestStore()
	store.GetOrCreate("s", "hello", "")
	u, a := turn(0)
	_, err := store.AppendTurn("s", u, a)
	require.NoError(t, err)

	sess, ok := store.Get("s")
	require.True(t, ok)
	sess.Messages[0].Content = "tampered"
	sess.Title = "tampered"

	fresh, _ := store.Get("s")
	assert.Equal(t, "question 0", fresh.Messages[0].Content)
	assert.Equal(t, "hello", fresh.Title)
}

func TestConcurrentTurnsOnSameSession(t *testing.T) {
	store, _ := newTestStore()
	store.GetOrCreate("s", "hello", "")

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, a := turn(i)
			_, err := store.AppendTurn("s", u, a)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, ok := store.Get("s")
	require.True(t, ok)
	require.Len(t, sess.Messages, 2*workers)

	seen := make(map[string]bool)
	for i := 0; i < len(sess.Messages); i += 2 {
		// Each user message is immediately followed by its own reply.
		q := strings.TrimPrefix(sess.Messages[i].Content, "question ")
		assert.Equal(t, "answer "+q, sess.Messages[i+1].Content)
		seen[q] = true
	}
	assert.Len(t, seen, workers)
}

func TestList(t *testing.T) {
	store, clock := newTestStore()
	base := clock.Now()

	store.GetOrCreate("old", "first", "")
	clock.Set(base.Add(time.Hour))
	store.GetOrCreate("new", "second", "r1")

	clock.Set(base.Add(2 * time.Hour))
	long := strings.Repeat("x", 150)
	_, err := store.AppendTurn("old", Message{Content: long}, Message{Content: "reply"})
	require.NoError(t, err)

	summaries := store.List()
	require.Len(t, summaries, 2)
	assert.Equal(t, "old", summaries[0].ID)
	assert.Equal(t, 2, summaries[0].MessageCount)
	assert.Equal(t, strings.Repeat("x", 100), summaries[0].Preview)
	assert.Equal(t, "new", summaries[1].ID)
	assert.Equal(t, "", summaries[1].Preview)
	assert.Equal(t, "r1", summaries[1].ResumeRef)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore()
	store.GetOrCreate("s", "hello", "")

	assert.True(t, store.Delete("s"))
	assert.False(t, store.Delete("s"))
	_, ok := store.Get("s")
	assert.False(t, ok)
}

func TestRenameTitle(t *testing.T) {
	store, _ := newTestStore()
	store.GetOrCreate("s", "hello", "")

	sess, err := store.RenameTitle("s", "  Backend hiring  ")
	require.NoError(t, err)
	assert.Equal(t, "Backend hiring", sess.Title)

	_, err = store.RenameTitle("missing", "x")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = store.RenameTitle("s", " ")
	assert.True(t, apperror.Is(err, apperror.KindClient))
}

func TestSweepRemovesExpiredSessions(t *testing.T) {
	store, clock := newTestStore()
	now := clock.Now()

	clock.Set(now.Add(-8 * 24 * time.Hour))
	store.GetOrCreate("stale", "old", "")

	clock.Set(now.Add(-6 * 24 * time.Hour))
	store.GetOrCreate("recent", "newer", "")

	clock.Set(now)
	removed := store.Sweep(now)
	assert.Equal(t, 1, removed)

	_, ok := store.Get("stale")
	assert.False(t, ok)
	_, ok = store.Get("recent")
	assert.True(t, ok)
}

func TestSweepToleratesConcurrentMutation(t *testing.T) {
	store, clock := newTestStore()
	now := clock.Now()

	clock.Set(now.Add(-30 * 24 * time.Hour))
	for i := 0; i < 100; i++ {
		store.GetOrCreate(fmt.Sprintf("s%d", i), "hello", "")
	}
	clock.Set(now)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			store.GetOrCreate(fmt.Sprintf("fresh%d", i), "hi", "")
		}
	}()
	go func() {
		defer wg.Done()
		store.Sweep(now)
	}()
	wg.Wait()

	store.Sweep(now)
	assert.Equal(t, 100, store.Len())
}

func TestRunStopsWithContext(t *testing.T) {
	store := NewStore(Options{SweepInterval: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
