package scheduler

import "sync/atomic"

// KillSwitch is a process-wide, instantly-checkable gate that stops every
// new run from starting without needing a config reload or restart.
type KillSwitch struct {
	engaged atomic.Bool
}

// NewKillSwitch returns a disengaged kill switch.
func NewKillSwitch() *KillSwitch {
	return &KillSwitch{}
}

// Engage stops every subsequent Guard.Admit call from succeeding.
func (k *KillSwitch) Engage() { k.engaged.Store(true) }

// Disengage resumes normal admission.
func (k *KillSwitch) Disengage() { k.engaged.Store(false) }

// Engaged reports the current state.
func (k *KillSwitch) Engaged() bool { return k.engaged.Load() }
