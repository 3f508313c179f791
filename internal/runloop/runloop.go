// Package runloop drives a single turn of the agent loop: it wires
// together the provider/failover chain, the tool invoker, and the
// transcript/session-index stores into the iterate-until-reply
// algorithm the rest of the engine is built around.
package runloop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/myclaw-dev/myclaw/internal/bootstrap"
	"github.com/myclaw-dev/myclaw/internal/config"
	"github.com/myclaw-dev/myclaw/internal/convert"
	"github.com/myclaw-dev/myclaw/internal/event"
	"github.com/myclaw-dev/myclaw/internal/failover"
	"github.com/myclaw-dev/myclaw/internal/overflow"
	"github.com/myclaw-dev/myclaw/internal/provider"
	"github.com/myclaw-dev/myclaw/internal/sessionindex"
	"github.com/myclaw-dev/myclaw/internal/storage"
	"github.com/myclaw-dev/myclaw/internal/systemprompt"
	"github.com/myclaw-dev/myclaw/internal/tool"
	"github.com/myclaw-dev/myclaw/internal/transcript"
	"github.com/myclaw-dev/myclaw/pkg/types"
)

// Sentinel errors the caller can match with errors.Is. A run returning
// any of these leaves the transcript untouched: only a turn that
// reaches an assistant reply (with or without tool calls) or the
// max-iterations cap persists its tail.
var (
	ErrCancelled        = errors.New("runloop: cancelled")
	ErrRetriesExhausted = errors.New("runloop: retries exhausted")
	ErrTerminalOverflow = errors.New("runloop: terminal context overflow")
)

// summarizerMaxTokens bounds the compaction summary call.
const summarizerMaxTokens = 512

// Result is what Run returns on success.
type Result struct {
	Reply                string
	Usage                types.Usage
	LastCallUsage        types.Usage
	Iterations           int
	MaxIterationsReached bool
}

// Engine binds the session-scoped stores (transcript, index, tool
// storage) rooted at a single sessions directory. Provider registries
// and failover chains are supplied per call, since they vary by
// request rather than by session root.
type Engine struct {
	transcripts *transcript.Log
	index       *sessionindex.Index
	store       *storage.Storage
}

// New creates an engine rooted at sessionsDir.
func New(sessionsDir string) *Engine {
	return &Engine{
		transcripts: transcript.New(sessionsDir),
		index:       sessionindex.New(sessionsDir),
		store:       storage.New(sessionsDir),
	}
}

// runState is the mutable state threaded through a run's iterations:
// the growing message list and the failover chain's cooldown state.
type runState struct {
	messages      []types.Message
	profileStates []*failover.ProfileState
	curIdx        int

	compactionAttempted bool
	truncationAttempted bool
}

// Run executes one turn: append userText, call the provider (with
// failover and overflow recovery) until it stops requesting tools,
// invoking each requested tool along the way, then persist the new
// tail of the transcript. onEvent, if non-nil, additionally receives
// every event this run emits; events are always published on the
// ambient event bus regardless.
func (e *Engine) Run(
	ctx context.Context,
	cfg *config.RunConfig,
	registry *provider.Registry,
	profiles []failover.Profile,
	sessionKey string,
	userText string,
	onEvent func(event.Event),
) (*Result, error) {
	emit := func(ev event.Event) {
		event.PublishSync(ev)
		if onEvent != nil {
			onEvent(ev)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	if cfg.WorkspaceDir == "" {
		return nil, errors.New("runloop: workspaceDir is required")
	}
	if len(profiles) == 0 {
		return nil, errors.New("runloop: at least one credential profile is required")
	}

	if err := os.MkdirAll(cfg.WorkspaceDir, 0o755); err != nil {
		return nil, fmt.Errorf("runloop: create workspace: %w", err)
	}
	if err := bootstrap.ScaffoldDefault(cfg.WorkspaceDir); err != nil {
		return nil, fmt.Errorf("runloop: scaffold workspace: %w", err)
	}

	toolReg := tool.DefaultRegistry(cfg.WorkspaceDir, e.store)
	toolInfos, err := toolReg.ToolInfos()
	if err != nil {
		return nil, fmt.Errorf("runloop: tool infos: %w", err)
	}
	invoker := tool.NewInvoker(toolReg, cfg.ToolResultCap, sessionKey)

	bootstrapFiles, err := bootstrap.Load(cfg.WorkspaceDir, bootstrap.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("runloop: load bootstrap files: %w", err)
	}

	systemPrompt := systemprompt.Compose(systemprompt.Options{
		BootstrapFiles: bootstrapFiles,
		ToolNames:      toolReg.IDs(),
		WorkDir:        cfg.WorkspaceDir,
		Model:          cfg.ModelID,
		Platform:       runtime.GOOS,
		Now:            time.Now(),
	})

	records, err := e.transcripts.Load(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("runloop: load transcript: %w", err)
	}
	messages := convert.RepairOrphanedToolCalls(convert.TranscriptToMessages(records))

	historyBase := len(messages)
	messages = append(messages, &types.UserMessage{
		Content: []types.Part{&types.TextPart{Text: userText}},
		Ts:      time.Now().UnixMilli(),
	})

	rs := &runState{
		messages:      messages,
		profileStates: failover.NewProfileStates(profiles),
	}

	summarize := e.summarizer(registry, cfg, profiles[0].ID)

	var cumulative types.Usage
	var lastCallUsage types.Usage

	maxIterations := cfg.MaxIterations
	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		rs.compactionAttempted = false
		rs.truncationAttempted = false

		assistantMsg, err := e.attemptLLMCall(ctx, cfg, registry, rs, systemPrompt, toolInfos, iteration, emit, summarize)
		if err != nil {
			emit(event.Event{Type: event.Done, Data: event.DoneData{Reason: doneReason(err), Error: err.Error()}})
			return nil, err
		}

		rs.messages = append(rs.messages, assistantMsg)
		cumulative = cumulative.Add(assistantMsg.Usage)
		lastCallUsage = assistantMsg.Usage

		calls := assistantMsg.ToolCalls()
		if len(calls) == 0 {
			return e.finish(sessionKey, cfg, rs, historyBase, cumulative, lastCallUsage, iteration+1, false, emit)
		}

		for _, call := range calls {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
			}

			emit(event.Event{Type: event.ToolStart, Data: event.ToolStartData{ToolName: call.Name, ToolCallID: call.ID}})
			start := time.Now()
			result := invoker.Invoke(ctx, call, ctx.Done())
			result.Ts = time.Now().UnixMilli()
			emit(event.Event{Type: event.ToolEnd, Data: event.ToolEndData{
				ToolName:   call.Name,
				ToolCallID: call.ID,
				DurationMs: time.Since(start).Milliseconds(),
				IsError:    result.IsError,
			}})

			rs.messages = append(rs.messages, result)
		}
	}

	return e.finish(sessionKey, cfg, rs, historyBase, cumulative, lastCallUsage, maxIterations, true, emit)
}

// summarizer builds the overflow.Summarizer closure the compaction
// stage calls, routed through the primary (first-configured) profile
// so a provider already rotated away by failover doesn't also field
// the summarization request.
func (e *Engine) summarizer(registry *provider.Registry, cfg *config.RunConfig, primaryProfileID string) overflow.Summarizer {
	return func(ctx context.Context, prompt string) (string, error) {
		p, err := registry.Get(primaryProfileID)
		if err != nil {
			return "", err
		}
		msg, err := p.Complete(ctx, &provider.CompletionRequest{
			Model:     cfg.ModelID,
			Messages:  []*schema.Message{{Role: schema.User, Content: prompt}},
			MaxTokens: summarizerMaxTokens,
		})
		if err != nil {
			return "", err
		}
		return msg.Text(), nil
	}
}

// attemptLLMCall drives the provider invocation for a single
// iteration: profile selection and cooldown waiting, the call itself,
// and on failure, overflow recovery or credential rotation, looping
// until a reply is produced or the failure is terminal.
func (e *Engine) attemptLLMCall(
	ctx context.Context,
	cfg *config.RunConfig,
	registry *provider.Registry,
	rs *runState,
	systemPrompt string,
	toolInfos []*schema.ToolInfo,
	iteration int,
	emit func(event.Event),
	summarize overflow.Summarizer,
) (*types.AssistantMessage, error) {
	maxAttempts := cfg.MaxRetries + 1
	attemptsUsed := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		idx, ok := failover.SelectAvailable(rs.profileStates, rs.curIdx, time.Now())
		if !ok {
			wait := failover.ShortestRemainingCooldown(rs.profileStates, time.Now())
			if wait <= 0 {
				wait = time.Millisecond
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			case <-timer.C:
			}
			continue
		}
		rs.curIdx = idx
		profile := rs.profileStates[idx].Profile

		p, err := registry.Get(profile.ID)
		if err != nil {
			return nil, fmt.Errorf("runloop: provider lookup %s: %w", profile.ID, err)
		}

		emit(event.Event{Type: event.LLMStart, Data: event.LLMStartData{Iteration: iteration, ProfileID: profile.ID}})

		req := &provider.CompletionRequest{
			Model:    cfg.ModelID,
			Messages: provider.ConvertToEinoMessages(systemPrompt, rs.messages),
			Tools:    toolInfos,
		}

		msg, callErr := p.Complete(ctx, req)
		if callErr == nil {
			rs.profileStates[idx].MarkGood()
			emit(event.Event{Type: event.LLMEnd, Data: event.LLMEndData{Iteration: iteration, Message: msg}})
			return msg, nil
		}

		cat := failover.Classify(failover.Failure{Status: statusFromErr(callErr), Message: callErr.Error()})

		if cat == failover.ContextOverflow {
			if !rs.compactionAttempted {
				rs.compactionAttempted = true
				before := len(rs.messages)
				compacted, mutated, cerr := overflow.Compact(ctx, rs.messages, overflow.DefaultCompactionWindow, summarize)
				if cerr != nil {
					return nil, fmt.Errorf("runloop: compaction: %w", cerr)
				}
				if mutated {
					rs.messages = compacted
					emit(event.Event{Type: event.Compaction, Data: event.CompactionData{OldCount: before, NewCount: len(rs.messages)}})
					continue
				}
			}
			if !rs.truncationAttempted {
				rs.truncationAttempted = true
				before := len(rs.messages)
				truncated, mutated := overflow.TruncateToolResults(rs.messages, overflow.DefaultToolResultCap)
				if mutated {
					rs.messages = truncated
					emit(event.Event{Type: event.Compaction, Data: event.CompactionData{OldCount: before, NewCount: len(rs.messages)}})
					continue
				}
			}
			return nil, fmt.Errorf("%w: %v", ErrTerminalOverflow, callErr)
		}

		if cat.Retriable() {
			rs.profileStates[idx].MarkFailed(time.Now())
			nextIdx := failover.NextIndex(idx, len(rs.profileStates))
			attemptsUsed++
			emit(event.Event{Type: event.Retry, Data: event.RetryData{
				Attempt:   attemptsUsed,
				Reason:    string(cat),
				ProfileID: rs.profileStates[nextIdx].Profile.ID,
			}})
			rs.curIdx = nextIdx
			if attemptsUsed >= maxAttempts {
				return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, callErr)
			}
			continue
		}

		return nil, fmt.Errorf("runloop: provider error: %w", callErr)
	}
}

// finish persists the new transcript tail, refreshes the session
// index, and assembles the Result. It is the single exit for both the
// tool-free-reply and max-iterations-reached termination paths.
func (e *Engine) finish(
	sessionKey string,
	cfg *config.RunConfig,
	rs *runState,
	historyBase int,
	cumulative types.Usage,
	lastCallUsage types.Usage,
	iterations int,
	maxReached bool,
	emit func(event.Event),
) (*Result, error) {
	tail := rs.messages[historyBase:]
	if err := e.transcripts.AppendBatch(sessionKey, convert.MessagesToTranscript(tail)); err != nil {
		return nil, fmt.Errorf("runloop: persist transcript: %w", err)
	}
	if _, err := e.index.UpsertMeta(sessionKey, types.SessionEntry{
		Model:       cfg.ModelID,
		TotalTokens: cumulative.TotalTokens,
	}); err != nil {
		return nil, fmt.Errorf("runloop: update session index: %w", err)
	}

	reason := "completed"
	if maxReached {
		reason = "max_iterations"
	}
	emit(event.Event{Type: event.Done, Data: event.DoneData{Reason: reason}})

	return &Result{
		Reply:                lastAssistantText(rs.messages),
		Usage:                cumulative,
		LastCallUsage:        lastCallUsage,
		Iterations:           iterations,
		MaxIterationsReached: maxReached,
	}, nil
}

func lastAssistantText(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if am, ok := messages[i].(*types.AssistantMessage); ok {
			return am.Text()
		}
	}
	return ""
}

func doneReason(err error) string {
	if errors.Is(err, ErrCancelled) {
		return "cancelled"
	}
	return "error"
}

// statusCoder is implemented by provider errors that expose an HTTP
// status code directly, letting the classifier skip message-pattern
// matching.
type statusCoder interface {
	StatusCode() int
}

func statusFromErr(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
