package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/resume-screener/internal/ai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model   string
	config  *genai.GenerateContentConfig
	history []*genai.Content
	chat    *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, history: history, chat: chat})
	return chat, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func stubSleep(t *testing.T) {
	t.Helper()
	originalSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = originalSleep })
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	stubSleep(t)

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-pro", nil, tempErr)
	chats.enqueue("gemini-pro", textResponse("retry ok"), nil)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: "system"},
		{Role: ai.RoleUser, Content: "message"},
	}

	output, err := g.Complete(context.Background(), messages, ai.Sampling{Temperature: 0.7, MaxTokens: 1024})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}

	for _, call := range chats.calls {
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatalf("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if call.config.Temperature == nil || *call.config.Temperature != 0.7 {
			t.Fatalf("unexpected temperature: %v", call.config.Temperature)
		}
		if call.config.MaxOutputTokens != 1024 {
			t.Fatalf("unexpected max output tokens: %d", call.config.MaxOutputTokens)
		}
		if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
			t.Fatalf("unexpected chat message: %+v", call.chat.messages)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	stubSleep(t)

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-pro", nil, tempErr)
	chats.enqueue("gemini-pro", nil, tempErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	_, err := g.Complete(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: "msg"}}, ai.Sampling{})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	chats := newFakeChatCreator()
	quotaErr := genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}
	chats.enqueue("gemini-pro", nil, quotaErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 3,
		logger:     zap.NewNop(),
	}

	_, err := g.Complete(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: "msg"}}, ai.Sampling{})
	if err == nil {
		t.Fatal("expected error when quota delay too long")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.Complete(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: "msg"}}, ai.Sampling{}); err == nil {
		t.Fatal("expected error")
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", &genai.GenerateContentResponse{}, nil)

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 1, logger: zap.NewNop()}

	if _, err := g.Complete(context.Background(), []ai.Message{{Role: ai.RoleUser, Content: "msg"}}, ai.Sampling{}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestGeneratorReplaysHistoryWithGeminiRoles(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", textResponse("answer"), nil)

	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 1, logger: zap.NewNop()}

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: "be helpful"},
		{Role: ai.RoleUser, Content: "first question"},
		{Role: ai.RoleAssistant, Content: "first answer"},
		{Role: ai.RoleUser, Content: "second question"},
	}

	if _, err := g.Complete(context.Background(), messages, ai.Sampling{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := chats.calls[0].history
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Role != genai.RoleUser || history[0].Parts[0].Text != "first question" {
		t.Fatalf("unexpected first history entry: %+v", history[0])
	}
	if history[1].Role != genai.RoleModel || history[1].Parts[0].Text != "first answer" {
		t.Fatalf("unexpected second history entry: %+v", history[1])
	}
	if got := chats.calls[0].chat.messages; len(got) != 1 || got[0] != "second question" {
		t.Fatalf("unexpected sent message: %+v", got)
	}
}

func TestSplitMessagesRequiresTrailingUserMessage(t *testing.T) {
	_, _, _, err := splitMessages([]ai.Message{{Role: ai.RoleAssistant, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error when last message is not from the user")
	}

	_, _, _, err = splitMessages(nil)
	if err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestAnnouncedDelay(t *testing.T) {
	cases := []struct {
		name  string
		err   genai.APIError
		want  time.Duration
		found bool
	}{
		{name: "message seconds", err: genai.APIError{Message: "Retry after 12 seconds"}, want: 12 * time.Second, found: true},
		{name: "message ms", err: genai.APIError{Message: "please retry in 250ms"}, want: 250 * time.Millisecond, found: true},
		{name: "details", err: genai.APIError{Details: []map[string]any{{"retryDelay": "7s"}}}, want: 7 * time.Second, found: true},
		{name: "none", err: genai.APIError{Message: "quota exhausted"}, found: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := announcedDelay(tc.err)
			if found != tc.found || got != tc.want {
				t.Fatalf("announcedDelay() = %v, %v; want %v, %v", got, found, tc.want, tc.found)
			}
		})
	}
}
