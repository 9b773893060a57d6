package workflow

import (
	"sync"

	"github.com/grailbio/base/log"
)

// State is the lifecycle of one caller stage within a run.
type State int

const (
	// Inactive stages were not selected; terminal for the whole run.
	Inactive State = iota
	// Scattering stages are fanning work items out.
	Scattering
	// Collecting stages are waiting on their gather barriers.
	Collecting
	// Complete stages have finalized every bucket.
	Complete
)

func (s State) String() string {
	switch s {
	case Scattering:
		return "scattering"
	case Collecting:
		return "collecting"
	case Complete:
		return "complete"
	}
	return "inactive"
}

// A Tracker records per-stage state transitions. Every activation decision,
// including the decision to leave a stage inactive with its conduits closed,
// is logged at graph-construction time so no partition is silent.
type Tracker struct {
	mu     sync.Mutex
	states map[Step]State
}

// NewTracker initializes every caller stage to Inactive and logs the
// activation decision for each.
func NewTracker(steps Steps) *Tracker {
	t := &Tracker{states: map[Step]State{}}
	for _, c := range Callers {
		t.states[c] = Inactive
		if steps.Active(c) {
			log.Printf("workflow: caller %s active", c)
		} else {
			log.Printf("workflow: caller %s inactive, conduits closed", c)
		}
	}
	return t
}

// Transition moves step to state and logs the edge.
func (t *Tracker) Transition(step Step, state State) {
	t.mu.Lock()
	prev := t.states[step]
	t.states[step] = state
	t.mu.Unlock()
	log.Printf("workflow: %s: %s -> %s", step, prev, state)
}

// State returns the current state of step.
func (t *Tracker) State(step Step) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[step]
}
