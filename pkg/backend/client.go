// Package backend defines the interface to model-serving backends.
// The core treats backends as opaque: any provider that can accept a
// prompt payload and report token usage is interchangeable. Concrete
// clients are injected by the embedding application; this package only
// carries the contract and a registry of named clients.
package backend

import (
	"context"
)

// ReasoningEffort requests deeper (costlier) processing on backends
// that support it. Backends that do not support reasoning treat the
// hint as a no-op.
type ReasoningEffort string

const (
	// ReasoningNone indicates no reasoning preference.
	ReasoningNone ReasoningEffort = ""

	// ReasoningLow requests minimal extra reasoning.
	ReasoningLow ReasoningEffort = "low"

	// ReasoningMedium requests moderate reasoning depth.
	ReasoningMedium ReasoningEffort = "medium"

	// ReasoningHigh requests maximum reasoning depth.
	ReasoningHigh ReasoningEffort = "high"
)

// Request contains the payload for a single backend invocation.
type Request struct {
	// Prompt is the opaque task payload sent to the backend.
	Prompt string

	// Model is the backend-specific model identifier.
	Model string

	// MaxTokens limits the response length. Zero means backend default.
	MaxTokens int

	// ReasoningEffort is an optional hint; ignored by backends that do
	// not support it.
	ReasoningEffort ReasoningEffort

	// Metadata carries request tracking information (workflow IDs, etc).
	Metadata map[string]string
}

// Response contains the structured result of a backend invocation.
type Response struct {
	// Text is the generated output.
	Text string

	// TokensIn is the number of input tokens the backend reported billing for.
	TokensIn int

	// TokensOut is the number of output tokens the backend reported.
	TokensOut int

	// Model is the model that actually served the request.
	Model string
}

// Client is the interface all model-serving backends implement.
// Implementations must honor context cancellation and return a
// *errors.BackendError (or an error wrapping one) on provider failure
// so the router can classify it for fallback.
type Client interface {
	// Name returns the unique identifier for this backend
	// (e.g., "openai-mini", "bedrock-mini").
	Name() string

	// Invoke sends a task payload and blocks until the backend responds
	// or ctx is done.
	Invoke(ctx context.Context, req Request) (*Response, error)
}
