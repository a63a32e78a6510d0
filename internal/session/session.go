// Package session keeps chat sessions in memory and expires idle ones.
package session

import (
	"strings"
	"time"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/utils"
)

const (
	DefaultMaxMessages   = 50
	DefaultTTL           = 7 * 24 * time.Hour
	DefaultSweepInterval = time.Hour

	titleWords     = 6
	titleMaxLength = 50
	previewLength  = 100
)

// Message is one persisted chat message.
type Message struct {
	Role      ai.Role   `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a snapshot of a conversation. Values returned by the Store are
// copies and may be modified freely.
type Session struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Messages       []Message `json:"messages"`
	ResumeRef      string    `json:"resumeId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivity"`
}

// Summary describes a session without its messages.
type Summary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	MessageCount   int       `json:"messageCount"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivity"`
	ResumeRef      string    `json:"resumeId,omitempty"`
	Preview        string    `json:"preview"`
}

// Summary returns the summary of s.
func (s *Session) Summary() Summary {
	preview := ""
	if len(s.Messages) > 0 {
		preview = utils.TruncateRunes(s.Messages[0].Content, previewLength)
	}

	return Summary{
		ID:             s.ID,
		Title:          s.Title,
		MessageCount:   len(s.Messages),
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ResumeRef:      s.ResumeRef,
		Preview:        preview,
	}
}

// Title derives a session title from the first message: its first six
// words, cut to 50 characters with a trailing "..." when longer.
func Title(message string) string {
	words := strings.Fields(message)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	title := strings.Join(words, " ")

	if len([]rune(title)) > titleMaxLength {
		return string([]rune(title)[:titleMaxLength]) + "..."
	}
	return title
}

func (s *Session) clone() *Session {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	return &out
}
