package event

import "github.com/myclaw-dev/myclaw/pkg/types"

// LLMStartData is the data for llm.start events, emitted once per
// run-loop iteration before the completion request is sent.
type LLMStartData struct {
	Iteration int    `json:"iteration"`
	ProfileID string `json:"profileId"`
}

// LLMStreamData is the data for llm.stream events: one per incremental
// chunk relayed from the provider's streaming response.
type LLMStreamData struct {
	Iteration int    `json:"iteration"`
	Delta     string `json:"delta"`
}

// LLMEndData is the data for llm.end events, carrying the assistant
// message assembled from the completed call.
type LLMEndData struct {
	Iteration int                     `json:"iteration"`
	Message   *types.AssistantMessage `json:"message"`
}

// ToolStartData is the data for tool.start events.
type ToolStartData struct {
	ToolName   string `json:"toolName"`
	ToolCallID string `json:"toolCallId"`
}

// ToolEndData is the data for tool.end events.
type ToolEndData struct {
	ToolName   string `json:"toolName"`
	ToolCallID string `json:"toolCallId"`
	DurationMs int64  `json:"durationMs"`
	IsError    bool   `json:"isError"`
}

// RetryData is the data for retry events, emitted each time the
// failover classifier routes a call to the next credential profile.
type RetryData struct {
	Attempt   int    `json:"attempt"`
	Reason    string `json:"reason"`
	ProfileID string `json:"profileId"`
}

// CompactionData is the data for compaction events, emitted when the
// overflow guard summarizes the older portion of the transcript.
type CompactionData struct {
	OldCount int `json:"oldCount"`
	NewCount int `json:"newCount"`
}

// DoneData is the data for done events, emitted once when a run
// terminates, whether by completion, cancellation, or exhaustion.
type DoneData struct {
	Reason string `json:"reason"` // "completed" | "cancelled" | "max_iterations" | "error"
	Error  string `json:"error,omitempty"`
}

// FileEditedData is the data for file.edited events, published by the
// Write and Edit tools after a successful filesystem mutation.
type FileEditedData struct {
	File string `json:"file"`
}
