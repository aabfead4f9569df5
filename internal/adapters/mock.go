package adapters

import (
	"context"
	"fmt"

	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// Mock is the default adapter for backends registered without one. It echoes
// the prompt with the backend identity so dispatch flows can be exercised
// without any model runtime.
type Mock struct {
	// Template overrides the default reply. It is formatted with the
	// backend name and the prompt text, in that order.
	Template string
}

// NewMock returns a mock adapter with the default echo reply.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Name() string {
	return "mock"
}

func (m *Mock) Invoke(ctx context.Context, backend types.Backend, req types.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Template != "" {
		return fmt.Sprintf(m.Template, backend.Name, req.PromptText), nil
	}
	return fmt.Sprintf("Mock response from %s: %s", backend.Name, req.PromptText), nil
}

var _ Adapter = (*Mock)(nil)
