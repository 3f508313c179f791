// Package convert maps between the on-disk transcript record form and
// the in-memory tagged Message form, and repairs tool-calls orphaned
// by an interrupted run.
package convert

import (
	"encoding/json"

	"github.com/myclaw-dev/myclaw/pkg/types"
)

// contentBlocksMeta is the verbatim key under which an assistant
// record's full part sequence round-trips through transcript metadata.
const contentBlocksMeta = "contentBlocks"

// blockJSON is the wire shape of one Part for metadata round-tripping.
type blockJSON struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	URL  string         `json:"url,omitempty"`
	Mime string         `json:"mime,omitempty"`
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name,omitempty"`
	Args map[string]any `json:"args,omitempty"`
}

func toBlockJSON(p types.Part) blockJSON {
	switch v := p.(type) {
	case *types.TextPart:
		return blockJSON{Kind: string(types.PartText), Text: v.Text}
	case *types.ThinkingPart:
		return blockJSON{Kind: string(types.PartThinking), Text: v.Text}
	case *types.ImagePart:
		return blockJSON{Kind: string(types.PartImage), URL: v.URL, Mime: v.MediaType}
	case *types.ToolCallPart:
		return blockJSON{Kind: string(types.PartToolCall), ID: v.ID, Name: v.Name, Args: v.Args}
	default:
		return blockJSON{Kind: string(types.PartText)}
	}
}

func fromBlockJSON(b blockJSON) types.Part {
	switch types.PartKind(b.Kind) {
	case types.PartThinking:
		return &types.ThinkingPart{Text: b.Text}
	case types.PartImage:
		return &types.ImagePart{URL: b.URL, MediaType: b.Mime}
	case types.PartToolCall:
		return &types.ToolCallPart{ID: b.ID, Name: b.Name, Args: b.Args}
	default:
		return &types.TextPart{Text: b.Text}
	}
}

// TranscriptToMessages maps each persisted record to an in-memory
// Message. System-role records are discarded: system prompts are
// supplied alongside messages, not stored among them.
func TranscriptToMessages(records []types.TranscriptRecord) []types.Message {
	var out []types.Message
	for _, r := range records {
		switch r.Role {
		case types.RoleSystem:
			continue
		case types.RoleUser:
			out = append(out, &types.UserMessage{
				Content: []types.Part{&types.TextPart{Text: r.Content}},
				Ts:      r.Ts,
			})
		case types.RoleAssistant:
			out = append(out, assistantFromRecord(r))
		case types.RoleTool:
			out = append(out, &types.ToolResultMessage{
				ToolCallID: r.ToolCallID,
				ToolName:   metaString(r.Meta, "toolName"),
				Content:    []types.Part{&types.TextPart{Text: r.Content}},
				IsError:    metaBool(r.Meta, "isError"),
				Ts:         r.Ts,
			})
		}
	}
	return out
}

func assistantFromRecord(r types.TranscriptRecord) *types.AssistantMessage {
	msg := &types.AssistantMessage{
		Provider:   metaString(r.Meta, "provider"),
		Model:      metaString(r.Meta, "model"),
		StopReason: metaString(r.Meta, "stopReason"),
		Ts:         r.Ts,
	}
	if u, ok := r.Meta["usage"]; ok {
		if raw, err := json.Marshal(u); err == nil {
			var usage types.Usage
			if json.Unmarshal(raw, &usage) == nil {
				msg.Usage = usage
			}
		}
	}

	if raw, ok := r.Meta[contentBlocksMeta]; ok {
		if j, err := json.Marshal(raw); err == nil {
			var blocks []blockJSON
			if json.Unmarshal(j, &blocks) == nil && len(blocks) > 0 {
				msg.Content = make([]types.Part, 0, len(blocks))
				for _, b := range blocks {
					msg.Content = append(msg.Content, fromBlockJSON(b))
				}
				return msg
			}
		}
	}

	msg.Content = []types.Part{&types.TextPart{Text: r.Content}}
	return msg
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func metaBool(meta map[string]any, key string) bool {
	if meta == nil {
		return false
	}
	if v, ok := meta[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// MessagesToTranscript is the inverse of TranscriptToMessages: it
// extracts concatenated text for the record's content field, preserves
// the full block sequence in metadata for assistant messages, and
// records tool-result fields. Round-tripping a list L through
// MessagesToTranscript then TranscriptToMessages must preserve role,
// content-block sequence, tool-call identifiers, tool names, error
// flags, and timestamps.
func MessagesToTranscript(messages []types.Message) []types.TranscriptRecord {
	out := make([]types.TranscriptRecord, 0, len(messages))
	for _, m := range messages {
		switch v := m.(type) {
		case *types.UserMessage:
			out = append(out, types.TranscriptRecord{
				Role:    types.RoleUser,
				Content: v.Text(),
				Ts:      v.Ts,
			})
		case *types.AssistantMessage:
			blocks := make([]blockJSON, 0, len(v.Content))
			for _, p := range v.Content {
				blocks = append(blocks, toBlockJSON(p))
			}
			out = append(out, types.TranscriptRecord{
				Role:    types.RoleAssistant,
				Content: v.Text(),
				Ts:      v.Ts,
				Meta: map[string]any{
					contentBlocksMeta: blocks,
					"provider":        v.Provider,
					"model":           v.Model,
					"stopReason":      v.StopReason,
					"usage":           v.Usage,
				},
			})
		case *types.ToolResultMessage:
			out = append(out, types.TranscriptRecord{
				Role:       types.RoleTool,
				Content:    v.Text(),
				Ts:         v.Ts,
				ToolCallID: v.ToolCallID,
				Meta: map[string]any{
					"toolName": v.ToolName,
					"isError":  v.IsError,
				},
			})
		}
	}
	return out
}

// orphanText is the synthetic text injected for an unanswered tool-call.
const orphanText = "[Tool result missing — session was interrupted]"

// RepairOrphanedToolCalls walks messages; for every assistant message
// containing tool-calls, it scans forward to the next assistant
// message (or the end of the list) and injects a synthetic
// error tool-result, placed immediately after the assistant message,
// for any tool-call id not answered in that window. Idempotent:
// repairing an already-repaired list is a no-op.
func RepairOrphanedToolCalls(messages []types.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))

	for i := 0; i < len(messages); i++ {
		out = append(out, messages[i])

		assistant, ok := messages[i].(*types.AssistantMessage)
		if !ok {
			continue
		}
		calls := assistant.ToolCalls()
		if len(calls) == 0 {
			continue
		}

		answered := make(map[string]bool, len(calls))
		j := i + 1
		for ; j < len(messages); j++ {
			if _, isAssistant := messages[j].(*types.AssistantMessage); isAssistant {
				break
			}
			if tr, isToolResult := messages[j].(*types.ToolResultMessage); isToolResult {
				answered[tr.ToolCallID] = true
			}
		}

		for _, c := range calls {
			if answered[c.ID] {
				continue
			}
			out = append(out, &types.ToolResultMessage{
				ToolCallID: c.ID,
				ToolName:   c.Name,
				Content:    []types.Part{&types.TextPart{Text: orphanText}},
				IsError:    true,
				Ts:         assistant.Ts,
			})
		}
	}

	return out
}
