package roundabout

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultPollInterval = 5 * time.Second

// StateFunc produces the live State for one poll. Callers supply this from
// whatever is tracking the worker (job store, log tailer, tool trace).
type StateFunc func(ctx context.Context) (State, error)

// DecisionFunc is invoked whenever the monitor reaches a non-wait verdict:
// exit (hand the result back), cancel (stop the worker), or peek (look
// closer next poll but take no action now).
type DecisionFunc func(ctx context.Context, s State, d Decision)

// Option configures a Monitor.
type Option func(*Monitor)

// WithPollInterval overrides the default 5s polling cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		if interval > 0 {
			m.pollInterval = interval
		}
	}
}

// WithGuardrails overrides the default interval/budget guardrails.
func WithGuardrails(g Guardrails) Option {
	return func(m *Monitor) {
		m.guardrails = g.withDefaults()
	}
}

// WithLogger overrides the monitor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNow overrides the monitor's clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// Monitor polls a running worker on a ticker, asking its Decider for a
// verdict no more often than its Guardrails allow, and reports any
// non-wait verdict through its DecisionFunc.
type Monitor struct {
	jobID        string
	state        StateFunc
	decide       Decider
	onDecision   DecisionFunc
	guardrails   Guardrails
	pollInterval time.Duration
	stats        Stats
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// NewMonitor builds a Monitor for one job. state supplies the live State on
// every poll; decide produces the gating verdict; onDecision is called for
// every exit/cancel/peek verdict.
func NewMonitor(jobID string, state StateFunc, decide Decider, onDecision DecisionFunc, opts ...Option) *Monitor {
	m := &Monitor{
		jobID:        jobID,
		state:        state,
		decide:       decide,
		onDecision:   onDecision,
		guardrails:   DefaultGuardrails(),
		pollInterval: defaultPollInterval,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats returns a snapshot of this job's gating call counters.
func (m *Monitor) Stats() StatsSnapshot {
	return m.stats.Snapshot()
}

// Start begins polling until ctx is cancelled or a poll yields exit/cancel.
// It returns immediately; callers wait on Stop or ctx cancellation.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()

		pollsSinceLastCall := m.guardrails.Interval
		callsUsed := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stop := m.poll(ctx, &pollsSinceLastCall, &callsUsed)
				if stop {
					return
				}
			}
		}
	}()
}

// Stop blocks until the polling goroutine has exited.
func (m *Monitor) Stop() {
	m.wg.Wait()
}

// poll runs one tick: fetch state, apply guardrails, call the decider if
// due, and report any non-wait decision. It returns true when the monitor
// should stop polling (the job exited or was cancelled).
func (m *Monitor) poll(ctx context.Context, pollsSinceLastCall, callsUsed *int) bool {
	s, err := m.state(ctx)
	if err != nil {
		m.logger.Error("roundabout: failed to read worker state", "job_id", m.jobID, "error", err)
		return false
	}
	s.Counts.MonitoringChecks++

	*pollsSinceLastCall++

	switch m.guardrails.evaluate(*pollsSinceLastCall, *callsUsed) {
	case skipInterval:
		m.stats.recordSkippedInterval()
		return false
	case skipBudget:
		m.stats.recordSkippedBudget()
		return false
	}

	start := m.now()
	decision, decErr := m.decide.Decide(ctx, s)
	elapsed := m.now().Sub(start).Milliseconds()

	*pollsSinceLastCall = 0
	*callsUsed++

	switch {
	case decErr == context.DeadlineExceeded:
		m.stats.recordCall(outcomeTimedOut, elapsed)
	case decErr != nil:
		m.stats.recordCall(outcomeErrored, elapsed)
	default:
		m.stats.recordCall(outcomeSucceeded, elapsed)
	}

	if decision == DecisionWait {
		return false
	}
	if m.onDecision != nil {
		m.onDecision(ctx, s, decision)
	}
	return decision == DecisionExit || decision == DecisionCancel
}
