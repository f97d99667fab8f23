// Package unifiedllm is a small provider-agnostic streaming client for large
// language models. It wraps the gollm library (github.com/teilomillet/gollm)
// behind a ProviderAdapter interface so callers can swap providers, or plug in
// a fake adapter in tests, without touching the code that consumes the stream.
//
// # Architecture
//
//   - ProviderAdapter: the per-provider contract (Name, Stream).
//   - Client: routes a Request to a registered adapter and applies
//     stream middleware in registration order.
//   - GollmAdapter: the production adapter backed by gollm.
//   - Errors: a typed hierarchy rooted at SDKError with IsRetryable.
//   - Retry: exponential backoff for opening a stream.
//
// # Quick Start
//
//	adapter, _ := unifiedllm.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"))
//	client := unifiedllm.NewClient(unifiedllm.WithProvider("openai", adapter))
//
//	events, _ := client.Stream(ctx, unifiedllm.Request{
//	    Model:    "gpt-4o-mini",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	for ev := range events {
//	    fmt.Print(ev.Delta)
//	}
package unifiedllm
