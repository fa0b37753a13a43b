package sockauthd

import (
	"fmt"
	"os"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/rkt/rkt/pkg/lock"
)

// ErrLockfileExists is returned when the lockfile path is already present
// at startup. The daemon refuses to touch it: it may belong to a running
// instance, or to an unrelated file, or be left over from a crash that an
// operator has to clean up.
var ErrLockfileExists = errors.New("lockfile already exists")

// ensureNoLockfile is the singleton guard run before anything else mutates
// the system. It only checks existence; actually acquiring the lock happens
// later, after the socket is up and the process has detached. The window
// between the two is a known race and is preserved deliberately: the
// existence check is what keeps us from clobbering a file we don't own.
func ensureNoLockfile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return errors.Wrapf(ErrLockfileExists, "%s", path)
	}
	if !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not stat lockfile %s", path)
	}
	return nil
}

// pidfile is the daemon's sole persisted artifact: its own pid as one plain
// text line, held under an exclusive non-blocking advisory lock for the
// daemon's entire lifetime. Removed on clean shutdown, left behind on a
// crash.
type pidfile struct {
	path  string
	f     *os.File
	flock *lock.FileLock
	l     log15.Logger
}

func acquirePidfile(osi osIface, l log15.Logger, path string) (*pidfile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open lockfile %s", path)
	}
	flock, err := lock.TryExclusiveLock(path, lock.RegFile)
	if err != nil {
		f.Close()
		if err == lock.ErrLocked {
			return nil, errors.Wrapf(err, "another instance holds the lock on %s", path)
		}
		return nil, errors.Wrapf(err, "could not lock %s", path)
	}
	// write and sync immediately so external tooling can always read the
	// current owner
	if _, err := fmt.Fprintf(f, "%d\n", osi.Getpid()); err != nil {
		flock.Close()
		f.Close()
		return nil, errors.Wrapf(err, "could not write pid to %s", path)
	}
	if err := f.Sync(); err != nil {
		flock.Close()
		f.Close()
		return nil, errors.Wrapf(err, "could not sync %s", path)
	}
	l.Debug("lockfile acquired", "path", path)
	return &pidfile{path: path, f: f, flock: flock, l: l}, nil
}

func (p *pidfile) release() {
	if err := p.flock.Unlock(); err != nil {
		p.l.Warn("could not unlock lockfile", "path", p.path, "err", err)
	}
	p.f.Close()
	if err := os.Remove(p.path); err != nil {
		p.l.Warn("could not remove lockfile", "path", p.path, "err", err)
	}
	p.l.Debug("lockfile released", "path", p.path)
}
