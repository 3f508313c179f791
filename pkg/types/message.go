// Package types holds the wire- and memory-shapes shared across the
// engine: the tagged message/part variants, usage accounting, and the
// on-disk session formats.
package types

import "strings"

// PartKind tags the variant carried by a Part.
type PartKind string

const (
	PartText     PartKind = "text"
	PartThinking PartKind = "thinking"
	PartToolCall PartKind = "tool_call"
	PartImage    PartKind = "image"
)

// Part is one piece of message content. Assistant messages carry a
// sequence of Text | Thinking | ToolCall parts; user messages carry
// Text | Image parts; tool-result messages carry Text parts only.
type Part interface {
	Kind() PartKind
}

// TextPart is plain visible text.
type TextPart struct {
	Text string `json:"text"`
}

func (p *TextPart) Kind() PartKind { return PartText }

// ThinkingPart is reasoning text hidden from the end-user-facing reply.
type ThinkingPart struct {
	Text string `json:"text"`
}

func (p *ThinkingPart) Kind() PartKind { return PartThinking }

// ImagePart is an inline image reference in a user message.
type ImagePart struct {
	URL       string `json:"url"`
	MediaType string `json:"mediaType,omitempty"`
}

func (p *ImagePart) Kind() PartKind { return PartImage }

// ToolCallPart is a single tool invocation requested by the model.
type ToolCallPart struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

func (p *ToolCallPart) Kind() PartKind { return PartToolCall }

// Role identifies which of the three Message cases a record holds, and
// doubles as the role tag persisted on disk (spec.md §3, §4.B).
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is the tagged in-memory conversation unit: exactly one of
// *UserMessage, *AssistantMessage, *ToolResultMessage.
type Message interface {
	Role() Role
	Timestamp() int64
}

// UserMessage carries the human side of a turn.
type UserMessage struct {
	Content []Part
	Ts      int64
}

func (m *UserMessage) Role() Role      { return RoleUser }
func (m *UserMessage) Timestamp() int64 { return m.Ts }

// Text concatenates the message's TextPart content, skipping images.
func (m *UserMessage) Text() string { return joinText(m.Content) }

// AssistantMessage carries one model turn: an ordered content sequence
// plus the provenance/usage metadata of the call that produced it.
type AssistantMessage struct {
	Content    []Part
	Provider   string
	Model      string
	Usage      Usage
	StopReason string
	Ts         int64
}

func (m *AssistantMessage) Role() Role       { return RoleAssistant }
func (m *AssistantMessage) Timestamp() int64 { return m.Ts }

// Text concatenates the message's TextPart content, skipping thinking
// and tool-call parts — this is what Run's `reply` field returns.
func (m *AssistantMessage) Text() string { return joinText(m.Content) }

// ToolCalls extracts the ToolCallPart entries from Content, in order.
func (m *AssistantMessage) ToolCalls() []*ToolCallPart {
	var out []*ToolCallPart
	for _, p := range m.Content {
		if tc, ok := p.(*ToolCallPart); ok {
			out = append(out, tc)
		}
	}
	return out
}

// ToolResultMessage answers a single tool-call identifier from a
// preceding AssistantMessage.
type ToolResultMessage struct {
	ToolCallID string
	ToolName   string
	Content    []Part // TextPart entries
	IsError    bool
	Ts         int64
}

func (m *ToolResultMessage) Role() Role       { return RoleTool }
func (m *ToolResultMessage) Timestamp() int64 { return m.Ts }
func (m *ToolResultMessage) Text() string     { return joinText(m.Content) }

func joinText(parts []Part) string {
	var b strings.Builder
	for _, p := range parts {
		if t, ok := p.(*TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Usage holds the six numeric counters of spec.md §3.
type Usage struct {
	InputTokens      int  `json:"inputTokens"`
	OutputTokens     int  `json:"outputTokens"`
	CacheReadTokens  int  `json:"cacheReadTokens"`
	CacheWriteTokens int  `json:"cacheWriteTokens"`
	TotalTokens      int  `json:"totalTokens"`
	Cost             Cost `json:"cost"`
}

// Cost is the usage counters' parallel cost record, in the provider's
// billing currency (typically USD).
type Cost struct {
	Input      float64 `json:"input"`
	Output     float64 `json:"output"`
	CacheRead  float64 `json:"cacheRead"`
	CacheWrite float64 `json:"cacheWrite"`
	Total      float64 `json:"total"`
}

// Add accumulates usage across calls: input/output/total and their
// costs sum, but cache-read/cache-write are REPLACED by the latest
// call's values, since providers report cumulative cache hits per
// request rather than a per-call increment (spec.md §3).
func (u Usage) Add(next Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + next.InputTokens,
		OutputTokens:     u.OutputTokens + next.OutputTokens,
		CacheReadTokens:  next.CacheReadTokens,
		CacheWriteTokens: next.CacheWriteTokens,
		TotalTokens:      u.TotalTokens + next.TotalTokens,
		Cost: Cost{
			Input:      u.Cost.Input + next.Cost.Input,
			Output:     u.Cost.Output + next.Cost.Output,
			CacheRead:  next.Cost.CacheRead,
			CacheWrite: next.Cost.CacheWrite,
			Total:      u.Cost.Total + next.Cost.Total,
		},
	}
}
