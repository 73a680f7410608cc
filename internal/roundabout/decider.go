package roundabout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/agent"
)

const (
	defaultResponseTimeout = 1500 * time.Millisecond
	gatingMaxTokens        = 8
)

const gatingSystemPrompt = `You are monitoring a long-running background worker. Given its current ` +
	`state, respond with exactly one word: wait, exit, cancel, or peek. Nothing else.

wait - the worker is making reasonable progress, keep polling
exit - the worker has produced a usable result, hand it back now
cancel - the worker is stuck, looping, or no longer useful, stop it
peek - you need a closer look at its recent output before deciding`

// Decider produces a gating decision from a poll's State.
type Decider interface {
	Decide(ctx context.Context, s State) (Decision, error)
}

// wirePayload is the compact (target <=2KB) JSON shape sent to the gating
// LLM: last few tools only, every free-text field pre-truncated.
type wirePayload struct {
	JobID          string         `json:"job_id"`
	Status         string         `json:"status"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	RecentTools    []ToolActivity `json:"recent_tools"`
	Counts         Counts         `json:"counts"`
	CurrentOp      *CurrentOperation `json:"current_op,omitempty"`
	LogTail        string         `json:"log_tail"`
}

// LLMDecider calls a routing model - distinct from the task model driving
// the worker itself - to produce a gating decision, with a hard response
// timeout and a closed response vocabulary.
type LLMDecider struct {
	provider        agent.LLMProvider
	routingModel    string
	responseTimeout time.Duration
}

// NewLLMDecider builds a Decider against provider using routingModel. A
// zero responseTimeout uses the default 1.5s budget.
func NewLLMDecider(provider agent.LLMProvider, routingModel string, responseTimeout time.Duration) *LLMDecider {
	if responseTimeout <= 0 {
		responseTimeout = defaultResponseTimeout
	}
	return &LLMDecider{provider: provider, routingModel: routingModel, responseTimeout: responseTimeout}
}

// Decide builds the compact payload, calls the routing model under a hard
// timeout, and parses the single-word response. Any timeout, transport
// error, or out-of-vocabulary response falls back to DecisionWait; callers
// distinguish the fallback case via the returned error being non-nil only
// for errors worth recording in Stats (timeout vs. transport vs. parse).
func (d *LLMDecider) Decide(ctx context.Context, s State) (Decision, error) {
	payload := wirePayload{
		JobID:          s.JobID,
		Status:         s.Status,
		ElapsedSeconds: s.ElapsedSeconds,
		RecentTools:    recentToolsRing(s.RecentTools),
		Counts:         s.Counts,
		CurrentOp:      s.CurrentOp,
		LogTail:        truncate(s.LogTail, maxLogTailLen),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return DecisionWait, err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.responseTimeout)
	defer cancel()

	chunks, err := d.provider.Complete(callCtx, &agent.CompletionRequest{
		Model:     d.routingModel,
		System:    gatingSystemPrompt,
		Messages:  []agent.CompletionMessage{{Role: "user", Content: string(body)}},
		MaxTokens: gatingMaxTokens,
	})
	if err != nil {
		return DecisionWait, err
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			if callCtx.Err() != nil {
				return DecisionWait, context.DeadlineExceeded
			}
			return DecisionWait, chunk.Error
		}
		text.WriteString(chunk.Text)
	}

	word := strings.ToLower(strings.TrimSpace(text.String()))
	decision := Decision(word)
	if !ValidDecision(decision) {
		return DecisionWait, errors.New("out of vocabulary gating response: " + word)
	}
	return decision, nil
}
