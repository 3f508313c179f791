/*
Package event provides a type-safe pub/sub event bus for the agent run loop.

The event system lets the run loop emit progress notifications without a
direct dependency on whatever is consuming them: a CLI printing to stderr,
a channel adapter relaying to chat, or a test harness asserting on ordering.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while
maintaining direct-call semantics to preserve type information. It provides
both synchronous and asynchronous event publishing patterns.

# Event Types

The run loop emits one event per notable transition:

  - llm.start: a completion call is about to be issued (LLMStartData)
  - llm.stream: a streamed delta from the provider (LLMStreamData); the type
    is defined, but the run loop calls providers through the buffered
    Complete and does not emit it
  - llm.end: a completion call returned (LLMEndData)
  - tool.start: a tool call is about to execute (ToolStartData)
  - tool.end: a tool call finished, successfully or not (ToolEndData)
  - retry: a provider call failed and is being retried on another profile (RetryData)
  - compaction: the transcript was summarized to keep it under budget (CompactionData)
  - done: the turn finished, successfully or with an error (DoneData)
  - file.edited: a tool wrote to a file in the workspace (FileEditedData)

# Basic Usage

Publishing events:

	// Asynchronous publishing (non-blocking)
	event.Publish(event.Event{
		Type: event.ToolStart,
		Data: event.ToolStartData{ToolName: "read", ToolCallID: call.ID},
	})

	// Synchronous publishing (blocking until all subscribers complete)
	event.PublishSync(event.Event{
		Type: event.Done,
		Data: event.DoneData{Reason: "completed"},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.ToolStart, func(e event.Event) {
		data := e.Data.(event.ToolStartData)
		log.Info("tool started", "name", data.ToolName)
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		log.Debug("event received", "type", e.Type)
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the
publisher's goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

Example of a safe subscriber:

	event.SubscribeAll(func(e event.Event) {
	    select {
	    case eventChan <- e:
	        // Event sent successfully
	    default:
	        // Channel full, drop event to avoid blocking
	        log.Warn("event dropped due to full channel", "type", e.Type)
	    }
	})

# Custom Event Bus

For testing or isolation, create a private bus instance instead of the
global one:

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.ToolStart, handler)
	bus.PublishSync(event.Event{Type: event.ToolStart, Data: data})

# Testing

	// Reset global bus state (use in test cleanup)
	event.Reset()

# Thread Safety

The event bus is thread-safe and can be used concurrently from multiple
goroutines. Both publishing and subscribing operations are protected by
internal synchronization.

# Performance Considerations

  - Asynchronous publishing (Publish) creates a goroutine per subscriber per event
  - Synchronous publishing (PublishSync) calls all subscribers in the current goroutine
  - The run loop uses PublishSync so ordering matches the order events were raised
  - Consider subscriber performance impact on PublishSync calls

# Integration with Watermill

The package uses watermill's gochannel internally, providing access to the
underlying pubsub infrastructure for advanced use cases:

	pubsub := event.PubSub()
	// Use watermill features like middleware, routing, etc.

This allows future migration to a distributed broker if a deployment ever
needs to fan run-loop events out across processes.
*/
package event
