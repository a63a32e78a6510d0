package chat

import (
	"fmt"
	"strings"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/rag"
	"github.com/spigell/resume-screener/internal/session"
)

const systemPromptTemplate = `You are an expert HR assistant helping with resume screening and candidate evaluation.

Use the following context from resumes to answer questions:

%s

IMPORTANT INSTRUCTIONS:
- Provide responses in a natural, conversational manner
- Do NOT use markdown formatting like **bold**, *italic*, or ##headers
- Write in plain text with proper punctuation
- Use clear, professional language
- Structure information with line breaks and bullet points using simple dashes (-)
- If the context doesn't contain relevant information, say so clearly`

// SystemPrompt renders the retrieved contexts as numbered "[Context N]"
// blocks inside the assistant instructions.
func SystemPrompt(contexts []rag.Context) string {
	blocks := make([]string, 0, len(contexts))
	for i, c := range contexts {
		blocks = append(blocks, fmt.Sprintf("[Context %d]\n%s", i+1, c.Text))
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(blocks, "\n\n"))
}

// BuildPrompt assembles the messages of one turn: the system prompt, the
// last window messages of history in order, then the new user message.
func BuildPrompt(contexts []rag.Context, history []session.Message, message string, window int) []ai.Message {
	if window < 0 {
		window = 0
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}

	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: SystemPrompt(contexts)})

	for _, msg := range history {
		role := ai.RoleUser
		if msg.Role == ai.RoleAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: msg.Content})
	}

	return append(messages, ai.Message{Role: ai.RoleUser, Content: message})
}
