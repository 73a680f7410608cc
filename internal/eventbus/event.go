// Package eventbus implements the core's in-process pub/sub plus the
// websocket topic-fan-out layer. Subscriptions are per-topic; publish fans
// out to all subscribers of a topic concurrently, isolating one slow or
// failing subscriber from the rest. A separate tracked-task registry backs
// fire-and-forget publishing from synchronous callers so shutdown can drain
// in-flight work instead of abandoning it.
package eventbus

import "time"

// Type is the closed set of event types the bus carries.
type Type string

const (
	TypeAgentCreated   Type = "agent_created"
	TypeAgentUpdated   Type = "agent_updated"
	TypeAgentDeleted   Type = "agent_deleted"
	TypeThreadCreated  Type = "thread_created"
	TypeThreadUpdated  Type = "thread_updated"
	TypeThreadDeleted  Type = "thread_deleted"
	TypeThreadMessage  Type = "thread_message_created"
	TypeRunCreated     Type = "run_created"
	TypeRunUpdated     Type = "run_updated"
	TypeTriggerFired   Type = "trigger_fired"
	TypeNodeState      Type = "node_state_changed"
	TypeExecFinished   Type = "execution_finished"
	TypeNodeLog        Type = "node_log"
	TypeSupervisorStart Type = "supervisor_started"
	TypeSupervisorThink Type = "supervisor_thinking"
	TypeSupervisorDone  Type = "supervisor_complete"
	TypeError          Type = "error"
	TypeSystemStatus   Type = "system_status"
	TypeUserUpdated    Type = "user_updated"
)

// Event is one message published on the bus. Data carries the type-specific
// payload; Topic identifies the channel subscribers filtered on.
type Event struct {
	Type  Type
	Topic string
	Data  any
	TS    time.Time
}

// New builds an Event stamped with the current time.
func New(typ Type, topic string, data any) Event {
	return Event{Type: typ, Topic: topic, Data: data, TS: time.Now()}
}
