// Package provider provides an LLM provider abstraction layer for the
// agent run loop.
//
// This package implements a unified interface for different Large Language
// Model providers using the Eino framework. It supports Anthropic Claude,
// OpenAI GPT (and OpenAI-compatible endpoints), and Volcengine ARK models.
//
// # Core Components
//
//   - Provider: the interface every backing service implements (ID, Models,
//     ChatModel, CreateCompletion, Complete)
//   - Registry: holds one Provider per credential profile ID
//   - ProfileSpec / BuildProviders: declarative construction of a Registry
//     plus the matching failover.Profile list, one pair per configured
//     credential
//   - CompletionRequest/CompletionStream: streaming chat completions
//   - Tool conversion utilities for function calling
//
// # Supported Providers
//
// ## Anthropic (Claude)
//
// Supports Claude models including Claude 4 Sonnet, Claude 4 Opus, and Claude
// 3.5 series. Features include:
//
//   - Direct API access or AWS Bedrock integration
//   - Extended thinking support for reasoning tasks
//   - Prompt caching for improved performance
//   - Vision and tool calling capabilities
//
//	provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{
//	    ID:        "anthropic-primary",
//	    APIKey:    "sk-...",
//	    Model:     "claude-sonnet-4-20250514",
//	    MaxTokens: 8192,
//	})
//
// ## OpenAI (GPT)
//
// Supports OpenAI models and OpenAI-compatible endpoints including:
//
//   - Native OpenAI API access
//   - Azure OpenAI Service
//   - Local and self-hosted OpenAI-compatible servers
//
//	provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{
//	    ID:        "openai-fallback",
//	    APIKey:    "sk-...",
//	    Model:     "gpt-4o",
//	    MaxTokens: 4096,
//	})
//
// ## Volcengine ARK
//
// Supports Volcengine's ARK platform for accessing Chinese language models:
//
//	provider, err := NewArkProvider(ctx, &ArkConfig{
//	    APIKey:    "...",
//	    Model:     "endpoint-id",
//	    MaxTokens: 4096,
//	})
//
// # Building a Registry from Configuration
//
// The run loop never constructs providers directly. It builds a RunConfig
// (internal/config) into a list of ProfileSpec, one per credential profile,
// and calls BuildProviders once at startup:
//
//	specs := []provider.ProfileSpec{
//	    {ID: "primary", Kind: "anthropic", APIKey: key, Model: "claude-sonnet-4-20250514"},
//	    {ID: "backup", Kind: "openai", APIKey: otherKey, Model: "gpt-4o"},
//	}
//	registry, profiles, err := provider.BuildProviders(ctx, specs)
//
// registry.Get(profileID) then resolves a Provider for the profile the
// failover chain (internal/failover) selected for the current attempt.
//
// # Streaming and Buffered Completions
//
// Providers support both a streaming call and a buffered one:
//
//	stream, err := provider.CreateCompletion(ctx, &CompletionRequest{
//	    Model:    "claude-sonnet-4-20250514",
//	    Messages: messages,
//	    Tools:    tools,
//	})
//	for {
//	    msg, err := stream.Recv()
//	    if err != nil {
//	        break
//	    }
//	}
//	stream.Close()
//
// The run loop uses the buffered form, Complete, which returns the final
// assistant message directly without a caller-visible stream, so it emits
// no llm.stream events.
//
// # Tool Calling
//
// The package provides utilities for converting between different tool
// calling formats:
//
//	// Convert internal tool definitions to Eino format
//	einoTools := ConvertToEinoTools(tools)
//
//	// Convert messages between formats
//	einoMessages := ConvertToEinoMessages(systemPrompt, messages)
//
// # Error Handling
//
// The package uses Go's standard error handling patterns. Common error
// scenarios:
//   - Missing API keys or credentials
//   - Invalid model configurations
//   - Network connectivity issues
//   - Provider-specific API errors
//
// BuildProviders wraps every construction failure with the offending
// profile ID so misconfiguration is traceable back to a single entry in
// RunConfig.Profiles.
//
// # Integration with Eino
//
// This package is built on top of the Eino framework
// (https://github.com/cloudwego/eino), which provides:
//   - Standardized LLM interfaces
//   - Built-in tool calling support
//   - Streaming capabilities
//   - Message schema definitions
//
// The abstraction lets the run loop support multiple providers through a
// single, consistent interface while leveraging Eino's foundation.
package provider
