package sockauthd

import "fmt"

// workerState represents a small finite state machine. It has the following transitions:
// ∅          → Spawned
// Spawned    → Reading
// Reading    → Validating
// Reading    → Failed
// Validating → Checking
// Validating → Failed
// Checking   → Responding
// Failed     → Responding
// Responding → Done
//
// Reading, Validating and Checking may also abort straight to Done: that is
// the path of a worker stopped or killed mid-request, and of the recover
// boundary after a panic. An aborting worker never responds.
//
// The meaning of each state is described above the state's definition below.
type workerState string

const (
	// Spawned is the initial state: the worker owns its connection but has
	// not started reading from it.
	workerStateSpawned workerState = "spawned"
	// Reading is the state of a worker consuming the four terminator
	// delimited request fields off its connection.
	workerStateReading = "reading"
	// Validating is the state of a worker checking each raw field's
	// declared length against its payload.
	workerStateValidating = "validating"
	// Checking is the state of a worker consulting the credential store.
	// It is only reached when every field validated.
	workerStateChecking = "checking"
	// Failed is the branch taken on a framing or validation failure; it
	// leads straight to Responding with the corrupt-input message.
	workerStateFailed = "failed"
	// Responding is the state of a worker writing its single response
	// message back to the connection.
	workerStateResponding = "responding"
	// Done is the terminal state: connection closed, worker finished.
	workerStateDone = "done"
)

var validWorkerTransitions = map[workerState][]workerState{
	workerStateSpawned: []workerState{
		workerStateReading,
	},
	workerStateReading: []workerState{
		workerStateValidating,
		workerStateFailed,
		workerStateDone,
	},
	workerStateValidating: []workerState{
		workerStateChecking,
		workerStateFailed,
		workerStateDone,
	},
	workerStateChecking: []workerState{
		workerStateResponding,
		workerStateDone,
	},
	workerStateFailed: []workerState{
		workerStateResponding,
	},
	workerStateResponding: []workerState{
		workerStateDone,
	},
	workerStateDone: []workerState{},
}

func (w *workerState) canTransitionTo(state workerState) error {
	validTargets := validWorkerTransitions[*w]

	for _, target := range validTargets {
		if target == state {
			return nil
		}
	}
	return fmt.Errorf("unable to transition from %s to %s", *w, state)
}

func (w *workerState) transitionTo(state workerState) error {
	if err := w.canTransitionTo(state); err != nil {
		return err
	}
	*w = state
	return nil
}
