// Package overflow implements the two-stage context-overflow recovery
// guard: summarising older history via an injected provider-callable,
// then truncating oversized tool results.
package overflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/myclaw-dev/myclaw/pkg/types"
)

// DefaultCompactionWindow (K) is the number of trailing messages kept
// verbatim; everything before it is summarised.
const DefaultCompactionWindow = 10

// DefaultToolResultCap bounds a single tool-result text part during
// overflow recovery — distinct from the per-result cap the invoker
// applies when persisting results under normal operation.
const DefaultToolResultCap = 20_000

// toolTextClamp bounds tool-result text rendered into the summary
// prompt itself, independent of DefaultToolResultCap.
const toolTextClamp = 500

const summaryMarker = "[Conversation summary]"

// Summarizer calls the provider with a single-message context and
// returns the produced summary text. The run loop supplies this as a
// closure so overflow does not couple directly to the provider
// package.
type Summarizer func(ctx context.Context, prompt string) (string, error)

// Compact partitions messages into old/recent at the window boundary,
// summarises old via summarize, and returns [summaryMessage,
// ...recent]. If len(messages) <= window, messages is returned
// unchanged and mutated is false.
func Compact(ctx context.Context, messages []types.Message, window int, summarize Summarizer) (result []types.Message, mutated bool, err error) {
	if window <= 0 {
		window = DefaultCompactionWindow
	}
	if len(messages) <= window {
		return messages, false, nil
	}

	old := messages[:len(messages)-window]
	recent := messages[len(messages)-window:]

	prompt := buildSummaryPrompt(old)
	summary, err := summarize(ctx, prompt)
	if err != nil {
		return nil, false, fmt.Errorf("overflow: summarize: %w", err)
	}

	summaryMsg := &types.UserMessage{
		Content: []types.Part{&types.TextPart{Text: summaryMarker + "\n" + summary}},
		Ts:      old[len(old)-1].Timestamp(),
	}

	out := make([]types.Message, 0, 1+len(recent))
	out = append(out, summaryMsg)
	out = append(out, recent...)
	return out, true, nil
}

// buildSummaryPrompt renders old as a single text block: a directive
// instructing a concise summary, followed by each message rendered
// User:/Assistant:/Tool (<name>): lines.
func buildSummaryPrompt(old []types.Message) string {
	var b strings.Builder
	b.WriteString("Summarize the following conversation history concisely, preserving facts and decisions a future turn will need.\n\n")

	for _, m := range old {
		switch v := m.(type) {
		case *types.UserMessage:
			b.WriteString("User: ")
			b.WriteString(v.Text())
			b.WriteString("\n")
		case *types.AssistantMessage:
			b.WriteString("Assistant: ")
			b.WriteString(v.Text())
			b.WriteString("\n")
		case *types.ToolResultMessage:
			b.WriteString("Tool (")
			b.WriteString(v.ToolName)
			b.WriteString("): ")
			b.WriteString(clamp(v.Text(), toolTextClamp))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func clamp(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// TruncateToolResults replaces, in a new slice, any tool-result text
// part whose length exceeds cap with a prefix of exactly cap runes
// suffixed by "\n[truncated N chars]". Non-text parts and under-cap
// parts are left referentially untouched. Returns the new slice and
// whether any truncation occurred.
func TruncateToolResults(messages []types.Message, capLen int) ([]types.Message, bool) {
	if capLen <= 0 {
		capLen = DefaultToolResultCap
	}

	mutated := false
	out := make([]types.Message, len(messages))
	copy(out, messages)

	for i, m := range messages {
		tr, ok := m.(*types.ToolResultMessage)
		if !ok {
			continue
		}

		var newContent []types.Part
		changed := false
		for _, p := range tr.Content {
			tp, isText := p.(*types.TextPart)
			if !isText {
				newContent = append(newContent, p)
				continue
			}
			runes := []rune(tp.Text)
			if len(runes) <= capLen {
				newContent = append(newContent, p)
				continue
			}
			omitted := len(runes) - capLen
			truncated := string(runes[:capLen]) + fmt.Sprintf("\n[truncated %d chars]", omitted)
			newContent = append(newContent, &types.TextPart{Text: truncated})
			changed = true
		}

		if changed {
			mutated = true
			out[i] = &types.ToolResultMessage{
				ToolCallID: tr.ToolCallID,
				ToolName:   tr.ToolName,
				Content:    newContent,
				IsError:    tr.IsError,
				Ts:         tr.Ts,
			}
		}
	}

	return out, mutated
}
