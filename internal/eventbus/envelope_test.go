package eventbus

import (
	"encoding/json"
	"testing"
	"time"
)

func TestToEnvelope_Shape(t *testing.T) {
	e := New(TypeRunCreated, "run.r1", map[string]string{"id": "r1"})
	env := toEnvelope(e)

	if env.V != envelopeVersion {
		t.Errorf("V = %d, want %d", env.V, envelopeVersion)
	}
	if env.Type != TypeRunCreated {
		t.Errorf("Type = %q, want %q", env.Type, TypeRunCreated)
	}
	if env.Topic != "run.r1" {
		t.Errorf("Topic = %q, want run.r1", env.Topic)
	}
	if env.ReqID != nil {
		t.Errorf("ReqID should be omitted for server-initiated pushes")
	}
	if env.TS != e.TS.UnixMilli() {
		t.Errorf("TS = %d, want %d", env.TS, e.TS.UnixMilli())
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["req_id"]; ok {
		t.Errorf("req_id should be omitted from wire JSON when nil")
	}
	for _, field := range []string{"v", "type", "topic", "ts", "data"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("missing field %q in wire envelope", field)
		}
	}
}

func TestEvent_New_StampsTime(t *testing.T) {
	before := time.Now()
	e := New(TypeAgentCreated, "agents", nil)
	after := time.Now()

	if e.TS.Before(before) || e.TS.After(after) {
		t.Errorf("TS = %v, want between %v and %v", e.TS, before, after)
	}
}
