package sockauthd

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/inconshreveable/log15"
	"k8s.io/utils/clock"

	"github.com/sockauth/sockauthd/creds"
)

// Defaults for the command-line surface. The socket lives under the runtime
// directory and is handed to the mail group, which is who talks to us.
const (
	DefaultSocketPath  = "/var/run/sockauthd/socket"
	DefaultSocketGroup = "mail"
	DefaultStorePath   = "/etc/sockauthd/passwd"
)

// DefaultShutdownRetryDelay is the pause between graceful stop attempts
// during shutdown escalation. With the retry budget of maxStopRetries this
// bounds how long shutdown can take even with every worker unresponsive.
const DefaultShutdownRetryDelay = 200 * time.Millisecond

// maxStopRetries is the per-worker budget of graceful stop attempts during
// shutdown; a worker still alive past it is killed.
const maxStopRetries = 5

// Config is the daemon's static configuration, normally populated from the
// command line.
type Config struct {
	// SocketPath is where the listening socket is bound.
	SocketPath string
	// Group is the name of the group allowed to use the socket.
	Group string
	// LockfilePath holds the single-instance lockfile. Empty means
	// SocketPath + ".lock".
	LockfilePath string
	// Foreground keeps the daemon attached to its terminal instead of
	// detaching into a new session.
	Foreground bool
}

// Supervisor owns the daemon's entire lifecycle: the singleton lockfile,
// the socket, one worker per accepted connection, and the signal-driven
// shutdown state machine. There is exactly one control loop; the live
// worker registry is mutated only from it. The signal path records the
// signal, flips the stop flag and closes the listener, nothing else.
type Supervisor struct {
	cfg     Config
	checker creds.Checker

	l          log15.Logger
	clock      clock.Clock
	retryDelay time.Duration
	os         osIface

	lnMu sync.Mutex
	ln   *net.UnixListener
	pf   *pidfile
	reg  *registry

	nextID uint64
	reapC  chan uint64

	stopOnce sync.Once
	stopping atomic.Bool
	reason   atomic.Value
}

// Option is an option function for Supervisor.
// See Rob Pike's post on the topic for more information on this pattern:
// https://commandcenter.blogspot.com/2014/01/self-referential-functions-and-design.html
type Option func(s *Supervisor)

// WithLogger configures the logger for daemon operations. By default,
// nothing will be logged.
func WithLogger(l log15.Logger) Option {
	return func(s *Supervisor) {
		s.l = l
	}
}

// WithClock configures the clock used to pace shutdown escalation, mostly
// so tests can fake it.
func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) {
		s.clock = c
	}
}

// WithShutdownRetryDelay allows configuring the pause between graceful stop
// attempts during shutdown. If a duration of 0 or less is specified, the
// default will be used.
func WithShutdownRetryDelay(d time.Duration) Option {
	return func(s *Supervisor) {
		s.retryDelay = d
		if s.retryDelay <= 0 {
			s.retryDelay = DefaultShutdownRetryDelay
		}
	}
}

// New constructs a supervisor for the given configuration and credential
// store. Nothing touches the filesystem until Run.
func New(cfg Config, checker creds.Checker, opts ...Option) *Supervisor {
	return newSupervisor(realOS{}, cfg, checker, opts...)
}

func newSupervisor(osi osIface, cfg Config, checker creds.Checker, opts ...Option) *Supervisor {
	noopLogger := log15.New()
	noopLogger.SetHandler(log15.DiscardHandler())
	s := &Supervisor{
		cfg:        cfg,
		checker:    checker,
		l:          noopLogger,
		clock:      clock.RealClock{},
		retryDelay: DefaultShutdownRetryDelay,
		os:         osi,
		reg:        newRegistry(),
		reapC:      make(chan uint64, 128),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Supervisor) lockfilePath() string {
	if s.cfg.LockfilePath != "" {
		return s.cfg.LockfilePath
	}
	return s.cfg.SocketPath + ".lock"
}

// Run executes the daemon until a termination signal (or Stop) arrives and
// every worker has been driven down. It returns nil on a clean shutdown and
// on the parent side of a detach; any startup failure comes back as an
// error with no connection ever accepted.
func (s *Supervisor) Run() error {
	inherited := inheritedListener()

	if inherited == nil {
		if err := ensureNoLockfile(s.lockfilePath()); err != nil {
			return err
		}
	}

	var ln *net.UnixListener
	var err error
	if inherited != nil {
		ln, err = adoptListener(inherited)
	} else {
		ln, err = listen(s.l, s.cfg.SocketPath, s.cfg.Group)
	}
	if err != nil {
		return err
	}

	if !s.cfg.Foreground && inherited == nil {
		if err := detach(s.l, ln); err != nil {
			ln.Close()
			return err
		}
		// the detached copy owns the socket now; closing our copy of the
		// listener must not unlink it
		ln.SetUnlinkOnClose(false)
		ln.Close()
		return nil
	}

	s.lnMu.Lock()
	s.ln = ln
	s.lnMu.Unlock()
	pf, err := acquirePidfile(s.os, s.l, s.lockfilePath())
	if err != nil {
		s.closeSocket()
		return err
	}
	s.pf = pf

	stopWatching := s.watchSignals()
	defer stopWatching()

	s.l.Info("accepting connections", "socket", s.cfg.SocketPath, "pid", s.os.Getpid())
	s.acceptLoop()

	s.l.Info("shutting down", "signal", s.stopReason(), "live_workers", s.reg.len())
	s.terminateWorkers()
	s.pf.release()
	s.closeSocket()
	s.l.Info("shutdown complete")
	return nil
}

// Stop triggers the same shutdown path as a termination signal. Safe to
// call from any goroutine, and more than once.
func (s *Supervisor) Stop() {
	s.initiateStop("stop requested")
}

// initiateStop is all the work the signal path is allowed to do: record the
// trigger, flip the flag, and close the listener so the blocked accept
// returns. Cleanup happens back in Run once the loop observes the flag.
func (s *Supervisor) initiateStop(reason string) {
	s.stopOnce.Do(func() {
		s.reason.Store(reason)
		s.stopping.Store(true)
		s.lnMu.Lock()
		if s.ln != nil {
			s.ln.Close()
		}
		s.lnMu.Unlock()
	})
}

func (s *Supervisor) stopReason() string {
	if r, ok := s.reason.Load().(string); ok {
		return r
	}
	return ""
}

func (s *Supervisor) watchSignals() func() {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT)
	quitC := make(chan struct{})
	go func() {
		select {
		case sig := <-sigC:
			s.initiateStop(sig.String())
		case <-quitC:
		}
	}()
	return func() {
		signal.Stop(sigC)
		close(quitC)
	}
}

// acceptLoop blocks on accept until shutdown is requested. Each accepted
// connection is handed in its entirety to a fresh worker; the supervisor
// keeps no reference to it. Accept failures without a pending shutdown are
// transient and retried.
func (s *Supervisor) acceptLoop() {
	for !s.stopping.Load() {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.stopping.Load() {
				return
			}
			s.l.Warn("accept failed, retrying", "err", err)
			continue
		}
		s.drainReaped()
		s.nextID++
		id := s.nextID
		w := newWorker(id, conn, s.checker, s.l, s.reapC)
		s.reg.add(id, w)
		s.l.Debug("worker spawned", "worker", id)
		go w.run()
	}
}

// drainReaped folds pending termination notifications into the registry.
// Called only from the control loop, and never blocks.
func (s *Supervisor) drainReaped() {
	for {
		select {
		case id := <-s.reapC:
			if s.reg.reap(id) {
				s.l.Debug("worker reaped", "worker", id)
			}
		default:
			return
		}
	}
}

// terminateWorkers drives every live worker through the shutdown
// escalation: a graceful stop request per pass, and a forced kill once a
// worker's personal retry budget is spent. The loop always finishes in
// bounded time, even with every worker unresponsive.
func (s *Supervisor) terminateWorkers() {
	for {
		s.drainReaped()
		for id, tw := range s.reg.live {
			tw.proc.signalStop()
			if tw.proc.exited() {
				s.reg.remove(id)
				s.l.Debug("worker stopped", "worker", id)
				continue
			}
			tw.retries++
			if tw.retries > maxStopRetries {
				s.l.Warn("worker unresponsive, killing", "worker", id, "stop_attempts", maxStopRetries)
				tw.proc.forceKill()
				s.reg.remove(id)
			}
		}
		if s.reg.len() == 0 {
			return
		}
		s.clock.Sleep(s.retryDelay)
	}
}

func (s *Supervisor) closeSocket() {
	s.ln.Close()
	// adopted listeners don't unlink on close; remove the path explicitly
	// either way
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		s.l.Debug("could not remove socket", "path", s.cfg.SocketPath, "err", err)
	}
}
