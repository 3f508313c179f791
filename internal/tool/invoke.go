package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/myclaw-dev/myclaw/pkg/types"
)

// DefaultResultCap bounds a tool-result's text before it is persisted
// or sent back to the provider, distinct from the smaller cap the
// overflow guard applies during context recovery.
const DefaultResultCap = 50_000

// Invoker dispatches a single tool call by name and bounds its output.
// It is constructed once per run-loop session so every Invoke call
// shares the same sessionKey, letting session-scoped tools (todoread,
// todowrite) key their persisted state correctly.
type Invoker struct {
	registry   *Registry
	resultCap  int
	sessionKey string
}

// NewInvoker creates an invoker bound to registry and sessionKey, with
// resultCap as the per-result character cap (0 selects DefaultResultCap).
func NewInvoker(registry *Registry, resultCap int, sessionKey string) *Invoker {
	if resultCap <= 0 {
		resultCap = DefaultResultCap
	}
	return &Invoker{registry: registry, resultCap: resultCap, sessionKey: sessionKey}
}

// Invoke locates the tool named call.Name, executes it with call.Args
// and a cancellation channel, and returns a ToolResultMessage. A
// missing tool or a raised execution error is captured as an
// error-flagged result rather than propagated, so the run loop can
// continue.
func (inv *Invoker) Invoke(ctx context.Context, call *types.ToolCallPart, abortCh <-chan struct{}) *types.ToolResultMessage {
	t, ok := inv.registry.Get(call.Name)
	if !ok {
		return errorResult(call, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	input, err := json.Marshal(call.Args)
	if err != nil {
		return errorResult(call, fmt.Sprintf("tool invocation failed: %v", err))
	}

	toolCtx := &Context{
		SessionID: inv.sessionKey,
		CallID:    call.ID,
		WorkDir:   inv.registry.WorkDir(),
		AbortCh:   abortCh,
	}

	result, err := t.Execute(ctx, input, toolCtx)
	if err != nil {
		return errorResult(call, fmt.Sprintf("tool invocation failed: %v", err))
	}

	text := bound(result.Output, inv.resultCap)
	return &types.ToolResultMessage{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    []types.Part{&types.TextPart{Text: text}},
		IsError:    false,
	}
}

func errorResult(call *types.ToolCallPart, text string) *types.ToolResultMessage {
	return &types.ToolResultMessage{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    []types.Part{&types.TextPart{Text: text}},
		IsError:    true,
	}
}

// bound applies a simple prefix + marker cap. Line-boundary snapping
// is permitted but not required by the contract, so a straightforward
// rune-prefix is used.
func bound(s string, capLen int) string {
	runes := []rune(s)
	if len(runes) <= capLen {
		return s
	}
	omitted := len(runes) - capLen
	return string(runes[:capLen]) + fmt.Sprintf("\n[truncated %d chars]", omitted)
}
