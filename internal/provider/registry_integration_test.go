package provider

import (
	"context"
	"os"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/joho/godotenv"
)

// providerIntegrationConfig defines a provider configuration for
// table-driven live-API tests. Each entry is skipped unless its API
// key env var is set.
type providerIntegrationConfig struct {
	Name           string
	Kind           string
	APIKeyEnv      string
	BaseURLEnv     string
	ModelIDEnv     string
	DefaultModelID string
	SkipToolTest   bool
}

var providerIntegrationConfigs = []providerIntegrationConfig{
	{
		Name:           "Anthropic",
		Kind:           "anthropic",
		APIKeyEnv:      "ANTHROPIC_API_KEY",
		ModelIDEnv:     "ANTHROPIC_MODEL_ID",
		DefaultModelID: "claude-3-5-haiku-20241022",
	},
	{
		Name:           "OpenAI",
		Kind:           "openai",
		APIKeyEnv:      "OPENAI_API_KEY",
		BaseURLEnv:     "OPENAI_BASE_URL",
		ModelIDEnv:     "OPENAI_MODEL_ID",
		DefaultModelID: "gpt-4o-mini",
	},
	{
		Name:           "ARK",
		Kind:           "ark",
		APIKeyEnv:      "ARK_API_KEY",
		BaseURLEnv:     "ARK_BASE_URL",
		ModelIDEnv:     "ARK_MODEL_ID",
		DefaultModelID: "",
		SkipToolTest:   true,
	},
}

func TestRegistry_LLMIntegration(t *testing.T) {
	_ = godotenv.Load("../../.env")

	for _, tc := range providerIntegrationConfigs {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			apiKey := os.Getenv(tc.APIKeyEnv)
			if apiKey == "" {
				t.Skipf("%s not set, skipping %s integration test", tc.APIKeyEnv, tc.Name)
			}

			modelID := os.Getenv(tc.ModelIDEnv)
			if modelID == "" {
				if tc.DefaultModelID == "" {
					t.Skipf("%s not set and no default, skipping %s test", tc.ModelIDEnv, tc.Name)
				}
				modelID = tc.DefaultModelID
			}

			baseURL := ""
			if tc.BaseURLEnv != "" {
				baseURL = os.Getenv(tc.BaseURLEnv)
			}

			ctx := context.Background()
			registry, _, err := BuildProviders(ctx, []ProfileSpec{
				{ID: tc.Kind, Kind: tc.Kind, APIKey: apiKey, BaseURL: baseURL, Model: modelID},
			})
			if err != nil {
				t.Fatalf("Failed to build providers: %v", err)
			}

			provider, err := registry.Get(tc.Kind)
			if err != nil {
				t.Fatalf("Failed to get provider %s from registry: %v", tc.Kind, err)
			}

			runProviderIntegrationTests(t, provider, modelID, tc.SkipToolTest)
		})
	}
}

func runProviderIntegrationTests(t *testing.T, provider Provider, modelID string, skipToolTest bool) {
	ctx := context.Background()

	if provider.ID() == "" {
		t.Error("Expected non-empty provider ID")
	}
	if provider.Name() == "" {
		t.Error("Expected non-empty provider name")
	}

	t.Run("SimpleCompletion", func(t *testing.T) {
		testSimpleCompletion(t, ctx, provider, modelID)
	})

	t.Run("StreamingChunks", func(t *testing.T) {
		testStreamingChunks(t, ctx, provider, modelID)
	})

	t.Run("MultiTurnConversation", func(t *testing.T) {
		testMultiTurnConversation(t, ctx, provider, modelID)
	})

	t.Run("BufferedComplete", func(t *testing.T) {
		testBufferedComplete(t, ctx, provider, modelID)
	})

	if !skipToolTest {
		t.Run("ToolBinding", func(t *testing.T) {
			testToolBinding(t, provider)
		})
	}
}

func testSimpleCompletion(t *testing.T, ctx context.Context, provider Provider, modelID string) {
	req := &CompletionRequest{
		Model: modelID,
		Messages: []*schema.Message{
			{Role: schema.User, Content: "Say 'Hello, World!' and nothing else."},
		},
		MaxTokens:   100,
		Temperature: 0.0,
	}

	stream, err := provider.CreateCompletion(ctx, req)
	if err != nil {
		t.Fatalf("Failed to create completion: %v", err)
	}
	defer stream.Close()

	var fullResponse string
	for {
		msg, err := stream.Recv()
		if err != nil {
			break
		}
		if msg != nil {
			fullResponse += msg.Content
		}
	}

	if fullResponse == "" {
		t.Error("Expected non-empty response")
	}

	t.Logf("[%s] Response: %s", provider.Name(), fullResponse)
}

func testStreamingChunks(t *testing.T, ctx context.Context, provider Provider, modelID string) {
	req := &CompletionRequest{
		Model: modelID,
		Messages: []*schema.Message{
			{Role: schema.User, Content: "Count from 1 to 5, one number per line."},
		},
		MaxTokens:   100,
		Temperature: 0.0,
	}

	stream, err := provider.CreateCompletion(ctx, req)
	if err != nil {
		t.Fatalf("Failed to create completion: %v", err)
	}
	defer stream.Close()

	chunkCount := 0
	for {
		msg, err := stream.Recv()
		if err != nil {
			break
		}
		if msg != nil {
			chunkCount++
		}
	}

	if chunkCount == 0 {
		t.Error("Expected to receive at least one chunk")
	}
	t.Logf("[%s] Received %d chunks", provider.Name(), chunkCount)
}

func testMultiTurnConversation(t *testing.T, ctx context.Context, provider Provider, modelID string) {
	req := &CompletionRequest{
		Model: modelID,
		Messages: []*schema.Message{
			{Role: schema.User, Content: "Remember the number 42."},
			{Role: schema.Assistant, Content: "I'll remember the number 42."},
			{Role: schema.User, Content: "What number did I ask you to remember? Reply with just the number."},
		},
		MaxTokens:   50,
		Temperature: 0.0,
	}

	stream, err := provider.CreateCompletion(ctx, req)
	if err != nil {
		t.Fatalf("Failed to create completion: %v", err)
	}
	defer stream.Close()

	var fullResponse string
	for {
		msg, err := stream.Recv()
		if err != nil {
			break
		}
		if msg != nil {
			fullResponse += msg.Content
		}
	}

	if fullResponse == "" {
		t.Error("Expected non-empty response")
	}
	t.Logf("[%s] Response: %s", provider.Name(), fullResponse)
}

func testBufferedComplete(t *testing.T, ctx context.Context, provider Provider, modelID string) {
	req := &CompletionRequest{
		Model: modelID,
		Messages: []*schema.Message{
			{Role: schema.User, Content: "Reply with exactly one word: hi"},
		},
		MaxTokens:   20,
		Temperature: 0.0,
	}

	msg, err := provider.Complete(ctx, req)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if msg.Text() == "" {
		t.Error("expected non-empty assistant text")
	}
}

func testToolBinding(t *testing.T, provider Provider) {
	tools := []*schema.ToolInfo{
		{
			Name: "calculator",
			Desc: "Performs arithmetic calculations",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"expression": {Type: schema.String, Desc: "The mathematical expression to evaluate"},
			}),
		},
	}

	chatModel := provider.ChatModel()
	boundModel, err := chatModel.WithTools(tools)
	if err != nil {
		t.Fatalf("Failed to bind tools: %v", err)
	}
	if boundModel == nil {
		t.Error("Expected non-nil bound model")
	}
}

func TestRegistry_MultiProvider(t *testing.T) {
	_ = godotenv.Load("../../.env")

	var specs []ProfileSpec
	for _, tc := range providerIntegrationConfigs {
		apiKey := os.Getenv(tc.APIKeyEnv)
		if apiKey == "" {
			continue
		}
		modelID := os.Getenv(tc.ModelIDEnv)
		if modelID == "" {
			modelID = tc.DefaultModelID
		}
		if modelID == "" {
			continue
		}
		baseURL := ""
		if tc.BaseURLEnv != "" {
			baseURL = os.Getenv(tc.BaseURLEnv)
		}
		specs = append(specs, ProfileSpec{ID: tc.Kind, Kind: tc.Kind, APIKey: apiKey, BaseURL: baseURL, Model: modelID})
	}

	if len(specs) == 0 {
		t.Skip("No provider API keys configured, skipping multi-provider test")
	}

	ctx := context.Background()
	registry, profiles, err := BuildProviders(ctx, specs)
	if err != nil {
		t.Fatalf("Failed to build providers: %v", err)
	}

	if len(registry.List()) != len(specs) {
		t.Errorf("Expected %d providers, got %d", len(specs), len(registry.List()))
	}
	if len(profiles) != len(specs) {
		t.Errorf("Expected %d failover profiles, got %d", len(specs), len(profiles))
	}

	for _, spec := range specs {
		provider, err := registry.Get(spec.ID)
		if err != nil {
			t.Errorf("Failed to get provider %s: %v", spec.ID, err)
			continue
		}
		t.Logf("Provider %s: ID=%s, Name=%s, Models=%d", spec.ID, provider.ID(), provider.Name(), len(provider.Models()))
	}
}
