// Package llm adapts the configured language model daemon behind a small
// chat interface: ordered role-tagged turns in, text or a tool call out.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/raphaelgruber/journal-go/internal/config"
	"github.com/raphaelgruber/journal-go/internal/metrics"
	"github.com/raphaelgruber/journal-go/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Turn is one role-tagged unit of conversation text.
type Turn struct {
	Role    models.Role
	Content string
}

// Tool describes a function the model may invoke. Parameters is a JSON
// schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is the model asking for a tool invocation instead of replying
// with text.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Reply is the result of one model invocation: either text content or a
// tool call, never both.
type Reply struct {
	Content  string
	ToolCall *ToolCall
}

// Model wraps a langchaingo LLM for chat and single-prompt generation.
type Model struct {
	llm       llms.Model
	modelName string
	collector *metrics.Collector
}

// NewModel creates an LLM model based on configuration. The default
// provider is a locally hosted Ollama daemon.
func NewModel(cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
	}, nil
}

// NewModelWithLLM wraps an existing langchaingo model (for tests).
func NewModelWithLLM(llm llms.Model, name string) *Model {
	return &Model{llm: llm, modelName: name}
}

// ModelName returns the configured model name.
func (m *Model) ModelName() string {
	return m.modelName
}

// SetCollector attaches a metrics collector. Calls made before this are
// simply not recorded.
func (m *Model) SetCollector(c *metrics.Collector) {
	m.collector = c
}

// Chat sends the system prompt plus the ordered turns to the model and
// returns its reply. When tools are supplied the model may answer with a
// tool call instead of text.
func (m *Model) Chat(ctx context.Context, systemPrompt string, turns []Turn, tools []Tool) (*Reply, error) {
	messages := buildMessages(systemPrompt, turns)
	return m.generate(ctx, messages, tools)
}

// ContinueWithToolResult resends the conversation after a tool call has
// been executed locally, reporting the result so the model can produce its
// final reply.
func (m *Model) ContinueWithToolResult(ctx context.Context, systemPrompt string, turns []Turn, call *ToolCall, result string, tools []Tool) (*Reply, error) {
	messages := buildMessages(systemPrompt, turns)

	args, err := json.Marshal(call.Arguments)
	if err != nil {
		return nil, fmt.Errorf("encode tool arguments: %w", err)
	}

	messages = append(messages, llms.MessageContent{
		Role: llms.ChatMessageTypeAI,
		Parts: []llms.ContentPart{llms.ToolCall{
			ID:   call.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      call.Name,
				Arguments: string(args),
			},
		}},
	})
	messages = append(messages, llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{llms.ToolCallResponse{
			ToolCallID: call.ID,
			Name:       call.Name,
			Content:    result,
		}},
	})

	return m.generate(ctx, messages, tools)
}

// Generate runs a bare single-prompt completion (used by the summarizer).
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := llms.GenerateFromSinglePrompt(ctx, m.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if m.collector != nil {
		m.collector.RecordLLMUsage(metrics.OpLLMGenerate, time.Since(start), 0, 0)
	}
	return response, nil
}

func (m *Model) generate(ctx context.Context, messages []llms.MessageContent, tools []Tool) (*Reply, error) {
	var opts []llms.CallOption
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(toolDefs(tools)))
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrUnavailable)
	}

	choice := response.Choices[0]
	if m.collector != nil {
		m.collector.RecordLLMUsage(metrics.OpLLMChat, time.Since(start),
			tokenCount(choice.GenerationInfo, "PromptTokens"),
			tokenCount(choice.GenerationInfo, "CompletionTokens"))
	}

	return parseChoice(choice)
}

// tokenCount pulls a usage number out of provider-specific generation info.
// Providers disagree on the numeric type, so all of them are accepted.
func tokenCount(info map[string]any, key string) int64 {
	switch v := info[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func buildMessages(systemPrompt string, turns []Turn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, turn := range turns {
		role := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	return messages
}

func toolDefs(tools []Tool) []llms.Tool {
	defs := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return defs
}

func parseChoice(choice *llms.ContentChoice) (*Reply, error) {
	if len(choice.ToolCalls) > 0 {
		tc := choice.ToolCalls[0]
		if tc.FunctionCall == nil {
			return nil, fmt.Errorf("%w: tool call without function", ErrUnavailable)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(tc.FunctionCall.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: malformed tool arguments: %v", ErrUnavailable, err)
			}
		}

		id := tc.ID
		if id == "" {
			id = "call_" + tc.FunctionCall.Name
		}

		return &Reply{ToolCall: &ToolCall{
			ID:        id,
			Name:      tc.FunctionCall.Name,
			Arguments: args,
		}}, nil
	}

	return &Reply{Content: choice.Content}, nil
}
