// Package adapters connects registered backends to the model runtimes that
// serve them. An adapter executes one single-turn prompt and returns the
// generated text; routing, scoring, and error wrapping stay in the
// orchestrator.
package adapters

import (
	"context"

	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// Adapter executes requests against the runtime behind a backend.
type Adapter interface {
	// Name identifies the adapter implementation, not the backend.
	Name() string

	// Invoke generates a completion for the request's prompt. The backend
	// carries the registry entry the dispatch resolved to, so one adapter
	// instance can serve several registered backends.
	Invoke(ctx context.Context, backend types.Backend, req types.Request) (string, error)
}
