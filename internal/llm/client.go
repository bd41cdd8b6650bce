package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"courserag/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// StopReason is the normalized reason a completion ended. Providers report
// different strings ("end_turn", "stop", "tool_use", "tool_calls"); callers
// only ever branch on these two.
type StopReason string

const (
	// StopEndTurn: the model produced a plain text answer.
	StopEndTurn StopReason = "end_turn"
	// StopToolUse: the model requested one or more tool invocations.
	StopToolUse StopReason = "tool_use"
)

// ToolSpec describes a capability offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	// Parameters is a JSON schema object for the tool's input.
	Parameters map[string]any
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult is the outcome of executing one requested invocation.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the model. Exactly one of
// the payload fields is meaningful per role: Text for plain user/assistant
// turns, ToolCalls for an assistant tool-request turn (Text may accompany
// it), ToolResults for the combined response turn.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// Completion is the normalized model response: a tagged variant of either a
// text answer or a set of tool requests.
type Completion struct {
	StopReason StopReason
	Text       string
	ToolCalls  []ToolCall
}

// Request carries one completion call. A nil Tools slice disables tool use
// entirely, forcing a plain-text answer.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolSpec
}

// Client is the only shape the orchestrator depends on; the provider's full
// protocol stays behind it.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Chat implements Client on top of langchaingo chat models.
type Chat struct {
	llm       llms.Model
	modelName string
}

var _ Client = (*Chat)(nil)

// NewChat creates a chat client based on configuration.
func NewChat(cfg config.Config) (*Chat, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
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

	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Chat{llm: model, modelName: cfg.LLMModel}, nil
}

// Model returns the chat model name.
func (c *Chat) Model() string {
	return c.modelName
}

// Complete sends the message set and normalizes the response. Transport and
// API failures are returned as-is for the caller to contain.
func (c *Chat) Complete(ctx context.Context, req Request) (*Completion, error) {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		mc, err := toContent(m)
		if err != nil {
			return nil, err
		}
		messages = append(messages, mc)
	}

	opts := []llms.CallOption{
		llms.WithMaxTokens(800),
		llms.WithTemperature(0),
	}
	if len(req.Tools) > 0 {
		tools := make([]llms.Tool, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			}
		}
		opts = append(opts, llms.WithTools(tools))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	choice := resp.Choices[0]
	completion := &Completion{
		StopReason: StopEndTurn,
		Text:       choice.Content,
	}

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		args := map[string]any{}
		if tc.FunctionCall.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.FunctionCall.Arguments), &args); err != nil {
				return nil, fmt.Errorf("decode tool arguments for %s: %w", tc.FunctionCall.Name, err)
			}
		}
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.FunctionCall.Name,
			Args: args,
		})
	}
	if len(completion.ToolCalls) > 0 {
		completion.StopReason = StopToolUse
	}

	return completion, nil
}

// toContent maps a normalized message onto langchaingo content parts.
func toContent(m Message) (llms.MessageContent, error) {
	switch m.Role {
	case RoleUser:
		return llms.TextParts(llms.ChatMessageTypeHuman, m.Text), nil

	case RoleAssistant:
		mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if m.Text != "" {
			mc.Parts = append(mc.Parts, llms.TextContent{Text: m.Text})
		}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Args)
			if err != nil {
				return llms.MessageContent{}, fmt.Errorf("encode tool arguments for %s: %w", tc.Name, err)
			}
			mc.Parts = append(mc.Parts, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		return mc, nil

	case RoleTool:
		mc := llms.MessageContent{Role: llms.ChatMessageTypeTool}
		for _, tr := range m.ToolResults {
			mc.Parts = append(mc.Parts, llms.ToolCallResponse{
				ToolCallID: tr.ID,
				Name:       tr.Name,
				Content:    tr.Content,
			})
		}
		return mc, nil

	default:
		return llms.MessageContent{}, fmt.Errorf("unsupported message role: %s", m.Role)
	}
}
