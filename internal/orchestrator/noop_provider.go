package orchestrator

import (
	"context"

	"github.com/haasonsaas/nexus/internal/agent"
)

// NoopProvider is an agent.LLMProvider stand-in for environments with no LLM
// credentials configured. The LLM provider itself is out of scope here; this
// exists so the agent turn engine can be wired and exercised (by cmd/
// orchestratord's serve command, and by workflow agent nodes before a real
// provider is attached) without a live API key.
type NoopProvider struct{}

func (NoopProvider) Name() string { return "noop" }

func (NoopProvider) Models() []agent.Model {
	return []agent.Model{{ID: "noop", Name: "No-op placeholder model", ContextSize: 0}}
}

func (NoopProvider) SupportsTools() bool { return false }

func (NoopProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	ch := make(chan *agent.CompletionChunk, 1)
	ch <- &agent.CompletionChunk{
		Text: "no LLM provider configured",
		Done: true,
	}
	close(ch)
	return ch, nil
}
