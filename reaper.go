package sockauthd

// The reaper half of worker lifecycle. The registry maps live worker ids to
// their shutdown retry counters and is owned exclusively by the
// supervisor's control loop: workers announce their own termination on a
// channel, and the loop folds those notifications in between accepts.
// Nothing here runs in a signal context, so the loop never races a handler
// for the map.

// workerProc is the registry's view of a worker: just enough to drive the
// shutdown escalation. Narrowed to an interface so the escalation loop can
// be tested against a deliberately unresponsive stub.
type workerProc interface {
	signalStop()
	forceKill()
	exited() bool
}

type trackedWorker struct {
	proc workerProc
	// retries counts graceful stop attempts made during shutdown; past
	// maxStopRetries the worker is killed instead.
	retries int
}

type registry struct {
	live map[uint64]*trackedWorker
}

func newRegistry() *registry {
	return &registry{live: map[uint64]*trackedWorker{}}
}

func (r *registry) add(id uint64, proc workerProc) {
	r.live[id] = &trackedWorker{proc: proc}
}

// reap removes the given worker, but only once its termination is
// confirmed; a notification for a still-live worker is ignored. Reap is
// idempotent, so duplicate notifications arriving close together are
// harmless.
func (r *registry) reap(id uint64) bool {
	tw, ok := r.live[id]
	if !ok {
		return false
	}
	if !tw.proc.exited() {
		return false
	}
	delete(r.live, id)
	return true
}

// remove drops a worker unconditionally. Only the shutdown escalation uses
// this, after a forced kill.
func (r *registry) remove(id uint64) {
	delete(r.live, id)
}

func (r *registry) len() int {
	return len(r.live)
}
