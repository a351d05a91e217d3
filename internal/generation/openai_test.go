package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockCompletionsService implements ChatCompletionsService for testing
type mockCompletionsService struct {
	mu        sync.Mutex
	response  *openai.ChatCompletion
	err       error
	callCount int
	lastModel openai.ChatModel
	lastCount int
}

func (m *mockCompletionsService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastModel = params.Model.Value
	m.lastCount = len(params.Messages.Value)
	return m.response, m.err
}

func completion(text string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: text}},
		},
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI("", "gpt-4o-mini")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewOpenAI_DefaultModel(t *testing.T) {
	g, err := NewOpenAI("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.ModelName() != DefaultModel {
		t.Errorf("ModelName() = %q, want %q", g.ModelName(), DefaultModel)
	}
}

func TestGenerate_ReturnsTrimmedText(t *testing.T) {
	mock := &mockCompletionsService{response: completion("  Solid day with a long run.\n")}
	g := &OpenAI{completions: mock, model: "gpt-4o-mini"}

	text, err := g.Generate(context.Background(), "Date: 2024-01-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Solid day with a long run." {
		t.Errorf("text = %q", text)
	}
	if mock.callCount != 1 {
		t.Errorf("callCount = %d, want 1", mock.callCount)
	}
	if mock.lastModel != "gpt-4o-mini" {
		t.Errorf("model = %q", mock.lastModel)
	}
	if mock.lastCount != 2 {
		t.Errorf("expected system and user messages, got %d", mock.lastCount)
	}
}

func TestGenerate_WrapsAPIError(t *testing.T) {
	apiErr := errors.New("rate limited")
	mock := &mockCompletionsService{err: apiErr}
	g := &OpenAI{completions: mock, model: "gpt-4o-mini"}

	_, err := g.Generate(context.Background(), "Date: 2024-01-01")
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected wrapped API error, got %v", err)
	}
	if !strings.Contains(err.Error(), "annotation generation failed") {
		t.Errorf("error should carry context, got %q", err.Error())
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		resp *openai.ChatCompletion
	}{
		{"no choices", &openai.ChatCompletion{}},
		{"blank content", completion("   ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &OpenAI{completions: &mockCompletionsService{response: tt.resp}, model: "m"}
			_, err := g.Generate(context.Background(), "ctx")
			if !errors.Is(err, ErrEmptyResponse) {
				t.Errorf("expected ErrEmptyResponse, got %v", err)
			}
		})
	}
}

func TestGenerate_ContextCanceled(t *testing.T) {
	g := &OpenAI{completions: &mockCompletionsService{response: completion("x")}, model: "m"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Generate(ctx, "ctx"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
