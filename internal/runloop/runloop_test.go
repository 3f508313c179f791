package runloop

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/components/model"

	"github.com/myclaw-dev/myclaw/internal/config"
	"github.com/myclaw-dev/myclaw/internal/event"
	"github.com/myclaw-dev/myclaw/internal/failover"
	"github.com/myclaw-dev/myclaw/internal/provider"
	"github.com/myclaw-dev/myclaw/pkg/types"
)

// statusErr is a provider failure carrying an HTTP status code, used
// to drive failover.Classify without a real provider SDK error type.
type statusErr struct {
	status int
	msg    string
}

func (e *statusErr) Error() string   { return e.msg }
func (e *statusErr) StatusCode() int { return e.status }

// scriptedProvider replays a fixed sequence of Complete results, one
// per call, panicking if called more times than scripted.
type scriptedProvider struct {
	id      string
	replies []func(req *provider.CompletionRequest) (*types.AssistantMessage, error)
	calls   int
}

func (p *scriptedProvider) ID() string                             { return p.id }
func (p *scriptedProvider) Name() string                            { return p.id }
func (p *scriptedProvider) Models() []types.Model                   { return nil }
func (p *scriptedProvider) ChatModel() model.ToolCallingChatModel    { return nil }
func (p *scriptedProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	return nil, errors.New("scriptedProvider: streaming not used by runloop")
}
func (p *scriptedProvider) Complete(ctx context.Context, req *provider.CompletionRequest) (*types.AssistantMessage, error) {
	if p.calls >= len(p.replies) {
		return nil, fmt.Errorf("scriptedProvider %s: no more scripted replies (call %d)", p.id, p.calls)
	}
	reply := p.replies[p.calls]
	p.calls++
	return reply(req)
}

func textReply(text string) func(*provider.CompletionRequest) (*types.AssistantMessage, error) {
	return func(*provider.CompletionRequest) (*types.AssistantMessage, error) {
		return &types.AssistantMessage{Content: []types.Part{&types.TextPart{Text: text}}}, nil
	}
}

func toolCallReply(id, name string, args map[string]any) func(*provider.CompletionRequest) (*types.AssistantMessage, error) {
	return func(*provider.CompletionRequest) (*types.AssistantMessage, error) {
		return &types.AssistantMessage{Content: []types.Part{&types.ToolCallPart{ID: id, Name: name, Args: args}}}, nil
	}
}

func errReply(err error) func(*provider.CompletionRequest) (*types.AssistantMessage, error) {
	return func(*provider.CompletionRequest) (*types.AssistantMessage, error) {
		return nil, err
	}
}

func testConfig(t *testing.T) *config.RunConfig {
	t.Helper()
	return &config.RunConfig{
		ProviderName:  "anthropic",
		ModelID:       "test-model",
		WorkspaceDir:  filepath.Join(t.TempDir(), "workspace"),
		MaxIterations: 25,
		MaxRetries:    3,
		ToolResultCap: 50_000,
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "sessions"))
}

func collectEvents() (func(event.Event), *[]event.Event) {
	var got []event.Event
	return func(ev event.Event) {
		got = append(got, ev)
	}, &got
}

func eventTypes(events []event.Event) []event.EventType {
	out := make([]event.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestRun_HappyPathNoTools(t *testing.T) {
	e := newEngine(t)
	cfg := testConfig(t)

	p := &scriptedProvider{id: "primary", replies: []func(*provider.CompletionRequest) (*types.AssistantMessage, error){
		textReply("Hello!"),
	}}
	registry := provider.NewRegistry()
	registry.RegisterProfile("primary", p)
	profiles := []failover.Profile{{ID: "primary", APIKey: "k"}}

	onEvent, events := collectEvents()
	result, err := e.Run(context.Background(), cfg, registry, profiles, "sess-1", "Hi", onEvent)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Reply != "Hello!" {
		t.Errorf("reply = %q, want %q", result.Reply, "Hello!")
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", result.Iterations)
	}
	if result.MaxIterationsReached {
		t.Error("MaxIterationsReached should be false")
	}

	got := eventTypes(*events)
	want := []event.EventType{event.LLMStart, event.LLMEnd, event.Done}
	if !eventTypesEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	records, err := e.transcripts.Load("sess-1")
	if err != nil {
		t.Fatalf("load transcript: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 transcript records (user, assistant), got %d", len(records))
	}
	if records[0].Role != types.RoleUser || records[0].Content != "Hi" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].Role != types.RoleAssistant || records[1].Content != "Hello!" {
		t.Errorf("unexpected second record: %+v", records[1])
	}
}

func TestRun_ToolCallThenReply(t *testing.T) {
	e := newEngine(t)
	cfg := testConfig(t)

	p := &scriptedProvider{id: "primary", replies: []func(*provider.CompletionRequest) (*types.AssistantMessage, error){
		toolCallReply("call-1", "todoread", map[string]any{}),
		textReply("Done."),
	}}
	registry := provider.NewRegistry()
	registry.RegisterProfile("primary", p)
	profiles := []failover.Profile{{ID: "primary", APIKey: "k"}}

	onEvent, events := collectEvents()
	result, err := e.Run(context.Background(), cfg, registry, profiles, "sess-2", "list my todos", onEvent)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Reply != "Done." {
		t.Errorf("reply = %q, want %q", result.Reply, "Done.")
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}

	got := eventTypes(*events)
	want := []event.EventType{
		event.LLMStart, event.LLMEnd,
		event.ToolStart, event.ToolEnd,
		event.LLMStart, event.LLMEnd,
		event.Done,
	}
	if !eventTypesEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	toolEnd := (*events)[3].Data.(event.ToolEndData)
	if toolEnd.ToolName != "todoread" || toolEnd.IsError {
		t.Errorf("unexpected tool_end data: %+v", toolEnd)
	}
}

func TestRun_AuthFailureThenSuccess(t *testing.T) {
	e := newEngine(t)
	cfg := testConfig(t)

	primary := &scriptedProvider{id: "primary", replies: []func(*provider.CompletionRequest) (*types.AssistantMessage, error){
		errReply(&statusErr{status: 401, msg: "unauthorized"}),
	}}
	fallback := &scriptedProvider{id: "fallback", replies: []func(*provider.CompletionRequest) (*types.AssistantMessage, error){
		textReply("recovered"),
	}}
	registry := provider.NewRegistry()
	registry.RegisterProfile("primary", primary)
	registry.RegisterProfile("fallback", fallback)
	profiles := []failover.Profile{{ID: "primary", APIKey: "k1"}, {ID: "fallback", APIKey: "k2"}}

	onEvent, events := collectEvents()
	result, err := e.Run(context.Background(), cfg, registry, profiles, "sess-3", "hi", onEvent)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Reply != "recovered" {
		t.Errorf("reply = %q, want %q", result.Reply, "recovered")
	}

	var retryEv *event.RetryData
	for _, ev := range *events {
		if ev.Type == event.Retry {
			d := ev.Data.(event.RetryData)
			retryEv = &d
		}
	}
	if retryEv == nil {
		t.Fatal("expected a retry event")
	}
	if retryEv.Attempt != 1 || retryEv.Reason != "auth" || retryEv.ProfileID != "fallback" {
		t.Errorf("retry event = %+v, want {Attempt:1 Reason:auth ProfileID:fallback}", retryEv)
	}
}

func TestRun_MaxIterationsReached(t *testing.T) {
	e := newEngine(t)
	cfg := testConfig(t)
	cfg.MaxIterations = 3

	var replies []func(*provider.CompletionRequest) (*types.AssistantMessage, error)
	for i := 0; i < 3; i++ {
		replies = append(replies, toolCallReply(fmt.Sprintf("call-%d", i), "todoread", map[string]any{}))
	}
	p := &scriptedProvider{id: "primary", replies: replies}
	registry := provider.NewRegistry()
	registry.RegisterProfile("primary", p)
	profiles := []failover.Profile{{ID: "primary", APIKey: "k"}}

	result, err := e.Run(context.Background(), cfg, registry, profiles, "sess-4", "loop forever", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.MaxIterationsReached {
		t.Error("expected MaxIterationsReached to be true")
	}
	if result.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", result.Iterations)
	}
	if p.calls != 3 {
		t.Errorf("provider calls = %d, want 3", p.calls)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	e := newEngine(t)
	cfg := testConfig(t)

	p := &scriptedProvider{id: "primary"}
	registry := provider.NewRegistry()
	registry.RegisterProfile("primary", p)
	profiles := []failover.Profile{{ID: "primary", APIKey: "k"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, cfg, registry, profiles, "sess-5", "hi", nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	records, loadErr := e.transcripts.Load("sess-5")
	if loadErr != nil {
		t.Fatalf("load transcript: %v", loadErr)
	}
	if len(records) != 0 {
		t.Errorf("expected no persisted records after cancellation, got %d", len(records))
	}
}

func TestRun_RetriesExhaustedPropagatesWithoutPersisting(t *testing.T) {
	e := newEngine(t)
	cfg := testConfig(t)
	cfg.MaxRetries = 1

	failing := errReply(&statusErr{status: 500, msg: "upstream error"})
	a := &scriptedProvider{id: "a", replies: []func(*provider.CompletionRequest) (*types.AssistantMessage, error){failing}}
	b := &scriptedProvider{id: "b", replies: []func(*provider.CompletionRequest) (*types.AssistantMessage, error){failing}}
	registry := provider.NewRegistry()
	registry.RegisterProfile("a", a)
	registry.RegisterProfile("b", b)
	profiles := []failover.Profile{{ID: "a", APIKey: "k1"}, {ID: "b", APIKey: "k2"}}

	_, err := e.Run(context.Background(), cfg, registry, profiles, "sess-6", "hi", nil)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}

	records, loadErr := e.transcripts.Load("sess-6")
	if loadErr != nil {
		t.Fatalf("load transcript: %v", loadErr)
	}
	if len(records) != 0 {
		t.Errorf("expected no persisted records after exhausted retries, got %d", len(records))
	}
}

func eventTypesEqual(a, b []event.EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
