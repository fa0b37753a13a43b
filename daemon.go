package sockauthd

import (
	"net"
	"os"
	"os/exec"
	"syscall"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

// resumeEnv marks the detached copy of the daemon in its environment. The
// already-bound listener travels alongside it as fd 3 via ExtraFiles, so
// the socket is bound exactly once no matter how the process detaches.
const resumeEnv = "SOCKAUTHD_RESUME_FD"

// inheritedListener returns the listener file passed down by a detaching
// parent, or nil when this process was started directly.
func inheritedListener() *os.File {
	if os.Getenv(resumeEnv) == "" {
		return nil
	}
	return os.NewFile(3, "inherited-listener")
}

func adoptListener(f *os.File) (*net.UnixListener, error) {
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, errors.Wrap(err, "could not adopt inherited listener")
	}
	uln, ok := ln.(*net.UnixListener)
	if !ok {
		ln.Close()
		return nil, errors.Errorf("inherited fd is a %T, not a unix listener", ln)
	}
	return uln, nil
}

// detach starts a copy of this process in a new session, its standard
// streams pointed at the null device, handing over the bound listener. The
// caller is the still-attached parent; it exits cleanly once this returns.
func detach(l log15.Logger, ln *net.UnixListener) error {
	f, err := ln.File()
	if err != nil {
		return errors.Wrap(err, "could not dup listener for detached copy")
	}
	defer f.Close()

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "could not resolve own executable")
	}
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrap(err, "could not open null device")
	}
	defer devnull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), resumeEnv+"=3")
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.ExtraFiles = []*os.File{f}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "could not start detached copy")
	}
	l.Info("detached copy started", "pid", cmd.Process.Pid)
	// the detached copy outlives us; it is never waited on
	return cmd.Process.Release()
}
