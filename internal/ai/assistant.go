package ai

import (
	"context"
)

// Role tags a chat message with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Message is one role-tagged entry of a prompt.
type Message struct {
	Role    Role
	Content string
}

// Sampling holds the generation parameters sent with every completion.
type Sampling struct {
	Temperature float32
	MaxTokens   int32
}

// Generator produces a single completion for an ordered list of messages.
type Generator interface {
	Complete(ctx context.Context, messages []Message, sampling Sampling) (string, error)
}

// MatchScore is the structured result of comparing a résumé with a job description.
type MatchScore struct {
	Score            float64  `json:"score"`
	Strengths        []string `json:"strengths"`
	Gaps             []string `json:"gaps"`
	Insights         []string `json:"insights"`
	ResumeID         string   `json:"resumeId"`
	JobDescriptionID string   `json:"jobDescriptionId"`
	// Fallback is set when the score is the neutral placeholder produced after a failure.
	Fallback bool `json:"fallback,omitempty"`
}

// Scorer rates how well a résumé matches a job description. It always returns a result.
type Scorer interface {
	Score(ctx context.Context, resumeText, jobDescriptionText, resumeID, jobDescriptionID string) *MatchScore
}
