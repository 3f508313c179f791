// Package provider provides LLM provider abstraction using the Eino
// framework: a uniform completion call across multiple backing
// services, keyed by credential profile for the failover chain.
package provider

import (
	"context"
	"encoding/json"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/myclaw-dev/myclaw/internal/failover"
	"github.com/myclaw-dev/myclaw/pkg/types"
)

// Provider represents an LLM provider with an Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []types.Model

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)

	// Complete performs a buffered call, returning the final assistant
	// message directly without a caller-visible stream.
	Complete(ctx context.Context, req *CompletionRequest) (*types.AssistantMessage, error)
}

// Descriptor names the provider, model, base URL, and credential
// profile a call should be routed through. The run loop rebuilds one
// per attempt as the failover chain rotates profiles.
type Descriptor struct {
	ProviderName string
	ModelID      string
	BaseURL      string
	Profile      failover.Profile
}

// CallContext is the {systemPrompt, messages, tools} triple the run
// loop assembles once per iteration.
type CallContext struct {
	SystemPrompt string
	Messages     []types.Message
	Tools        []ToolInfo
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []*schema.Message  `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int                `json:"maxTokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	TopP        float64            `json:"topP,omitempty"`
	StopWords   []string           `json:"stopWords,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// ToolInfo represents a tool definition for the LLM.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ConvertToEinoTools converts internal tool definitions to Eino format.
func ConvertToEinoTools(tools []ToolInfo) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		var params map[string]*schema.ParameterInfo
		if len(t.Parameters) > 0 {
			params = parseJSONSchemaToParams(t.Parameters)
		}

		result[i] = &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		}
	}
	return result
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}

// ConvertToEinoMessages converts the in-memory tagged message list
// (plus an optional system prompt) to Eino wire messages.
func ConvertToEinoMessages(systemPrompt string, messages []types.Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages)+1)

	if systemPrompt != "" {
		result = append(result, &schema.Message{Role: schema.System, Content: systemPrompt})
	}

	for _, msg := range messages {
		switch m := msg.(type) {
		case *types.UserMessage:
			result = append(result, &schema.Message{Role: schema.User, Content: m.Text()})

		case *types.AssistantMessage:
			var content string
			var toolCalls []schema.ToolCall
			for _, p := range m.Content {
				switch part := p.(type) {
				case *types.TextPart:
					content += part.Text
				case *types.ToolCallPart:
					argsJSON, _ := json.Marshal(part.Args)
					toolCalls = append(toolCalls, schema.ToolCall{
						ID: part.ID,
						Function: schema.FunctionCall{
							Name:      part.Name,
							Arguments: string(argsJSON),
						},
					})
				}
			}
			result = append(result, &schema.Message{
				Role:      schema.Assistant,
				Content:   content,
				ToolCalls: toolCalls,
			})

		case *types.ToolResultMessage:
			result = append(result, &schema.Message{
				Role:       schema.Tool,
				Content:    m.Text(),
				ToolCallID: m.ToolCallID,
			})
		}
	}

	return result
}

// completeViaStream drains a streaming completion into a single
// AssistantMessage, accumulating the response usage exposed on the
// final chunk's ResponseMeta. Concrete providers without a distinct
// non-streaming API share this helper rather than each re-deriving it.
func completeViaStream(stream *CompletionStream, providerName, modelID string) (*types.AssistantMessage, error) {
	defer stream.Close()

	var content string
	var reasoning string
	var toolCalls []schema.ToolCall
	var usage types.Usage

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		content += chunk.Content
		reasoning += chunk.ReasoningContent
		toolCalls = append(toolCalls, chunk.ToolCalls...)

		if chunk.ResponseMeta != nil && chunk.ResponseMeta.Usage != nil {
			usage.InputTokens = chunk.ResponseMeta.Usage.PromptTokens
			usage.OutputTokens = chunk.ResponseMeta.Usage.CompletionTokens
			usage.TotalTokens = chunk.ResponseMeta.Usage.TotalTokens
		}
	}

	final := &schema.Message{
		Role:             schema.Assistant,
		Content:          content,
		ReasoningContent: reasoning,
		ToolCalls:        toolCalls,
	}

	return ConvertFromEinoMessage(final, providerName, modelID, usage), nil
}

// ConvertFromEinoMessage builds an AssistantMessage from a completed
// Eino response, attaching provider/model provenance and usage.
func ConvertFromEinoMessage(msg *schema.Message, providerName, modelID string, usage types.Usage) *types.AssistantMessage {
	var content []types.Part

	if msg.ReasoningContent != "" {
		content = append(content, &types.ThinkingPart{Text: msg.ReasoningContent})
	}
	if msg.Content != "" {
		content = append(content, &types.TextPart{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		content = append(content, &types.ToolCallPart{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	stopReason := "stop"
	if len(msg.ToolCalls) > 0 {
		stopReason = "tool_use"
	}

	return &types.AssistantMessage{
		Content:    content,
		Provider:   providerName,
		Model:      modelID,
		Usage:      usage,
		StopReason: stopReason,
	}
}
