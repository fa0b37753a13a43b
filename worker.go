package sockauthd

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/sockauth/sockauthd/creds"
	"github.com/sockauth/sockauthd/internal/proto"
)

// aLongTimeAgo is a deadline in the distant past; setting it forces any
// blocked read or write on a connection to return immediately.
var aLongTimeAgo = time.Unix(1, 0)

// worker owns exactly one accepted connection end to end: it reads the four
// request fields, validates them, consults the credential store, writes the
// response and closes the connection. It reports nothing back to the
// supervisor other than its eventual termination, announced on reapC.
//
// A worker is an isolated goroutine, not a child process. Crash containment
// is a recover boundary in finish rather than an address space: a panic
// anywhere in request handling takes down only this worker. The trade
// against true process isolation is spawn cost; what matters here is that a
// malformed or hostile client can never take the daemon down.
type worker struct {
	id      uint64
	conn    net.Conn
	checker creds.Checker
	l       log15.Logger

	// state is only ever touched from the worker's own goroutine.
	state workerState

	stopOnce sync.Once
	killOnce sync.Once
	stopC    chan struct{}
	doneC    chan struct{}
	reapC    chan<- uint64
}

func newWorker(id uint64, conn net.Conn, checker creds.Checker, l log15.Logger, reapC chan<- uint64) *worker {
	return &worker{
		id:      id,
		conn:    conn,
		checker: checker,
		l:       l.New("worker", id),
		state:   workerStateSpawned,
		stopC:   make(chan struct{}),
		doneC:   make(chan struct{}),
		reapC:   reapC,
	}
}

func (w *worker) run() {
	defer w.finish()

	w.mustTransitionTo(workerStateReading)
	raw, err := proto.ReadRawRequest(bufio.NewReader(w.conn))
	if err != nil {
		if w.stopping() {
			return
		}
		w.l.Debug("request framing failed", "err", err)
		w.failRespond()
		return
	}

	w.mustTransitionTo(workerStateValidating)
	req, ok := proto.ParseRequest(raw)
	if !ok {
		w.l.Debug("request validation failed")
		w.failRespond()
		return
	}

	w.mustTransitionTo(workerStateChecking)
	// identity and service are logged only; the verdict is a function of
	// username and password alone
	w.l.Debug("checking credentials",
		"identity", string(req.Identity),
		"username", string(req.Username),
		"service", string(req.Service))
	verdict, err := w.checker.Check(string(req.Username), string(req.Password))
	if err != nil {
		w.l.Warn("credential store error", "err", err)
		verdict = false
	}

	msg := proto.RespWrongLogin
	if verdict {
		msg = proto.RespPasswordOK
	}
	w.respond(msg)
}

// failRespond is the Failed branch: any framing or validation problem
// produces the corrupt-input response, never a crash.
func (w *worker) failRespond() {
	w.mustTransitionTo(workerStateFailed)
	w.respond(proto.RespCorrupt)
}

func (w *worker) respond(msg []byte) {
	w.mustTransitionTo(workerStateResponding)
	// a single unbuffered write, nothing left to flush after it
	if _, err := w.conn.Write(proto.EncodeResponse(msg)); err != nil {
		w.l.Debug("response write failed", "err", err)
	}
}

// finish releases everything the worker owns. It also recovers panics out
// of request handling so a crashing worker stays contained.
func (w *worker) finish() {
	if r := recover(); r != nil {
		w.l.Warn("worker panicked", "panic", fmt.Sprint(r))
	}
	if err := w.state.transitionTo(workerStateDone); err != nil {
		w.l.Warn("worker finished in unexpected state", "state", w.state, "err", err)
	}
	w.conn.Close()
	close(w.doneC)
	// announce termination; if the buffer is somehow full the supervisor
	// will still observe doneC during shutdown
	select {
	case w.reapC <- w.id:
	default:
	}
}

func (w *worker) mustTransitionTo(state workerState) {
	if err := w.state.transitionTo(state); err != nil {
		panic(fmt.Sprintf("BUG: error transitioning to %q: %v", state, err))
	}
}

// signalStop asks the worker to wind down: pending I/O is interrupted by an
// immediate deadline and the worker exits without responding. Safe to call
// repeatedly.
func (w *worker) signalStop() {
	w.stopOnce.Do(func() {
		close(w.stopC)
		_ = w.conn.SetDeadline(aLongTimeAgo)
	})
}

// forceKill unconditionally closes the connection out from under the
// worker. Used only by the supervisor's shutdown escalation.
func (w *worker) forceKill() {
	w.killOnce.Do(func() {
		w.conn.Close()
	})
}

func (w *worker) exited() bool {
	select {
	case <-w.doneC:
		return true
	default:
		return false
	}
}

func (w *worker) stopping() bool {
	select {
	case <-w.stopC:
		return true
	default:
		return false
	}
}
