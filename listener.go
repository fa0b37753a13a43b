package sockauthd

import (
	"net"
	"os"
	"os/user"
	"strconv"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// listen binds the daemon's unix socket and restricts it to the given
// group. A stale socket left at the path is removed best effort first; a
// bind failure is fatal to the caller.
//
// The umask is tightened across the bind so the socket never exists with
// looser permissions than its final owner/group read-write mode, not even
// between bind and chmod.
func listen(l log15.Logger, path, group string) (*net.UnixListener, error) {
	if _, err := os.Stat(path); err == nil {
		l.Debug("removing stale socket", "path", path)
		if err := os.Remove(path); err != nil {
			l.Warn("could not remove stale socket", "path", path, "err", err)
		}
	}

	oldMask := unix.Umask(0117)
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	unix.Umask(oldMask)
	if err != nil {
		return nil, errors.Wrapf(err, "could not bind socket at %s", path)
	}

	if err := restrictSocket(path, group); err != nil {
		ln.Close()
		return nil, err
	}
	l.Debug("socket bound", "path", path, "group", group)
	return ln, nil
}

// restrictSocket hands the socket to the configured group and narrows its
// mode to owner and group read-write, so only cooperating processes in that
// group may connect.
func restrictSocket(path, group string) error {
	g, err := user.LookupGroup(group)
	if err != nil {
		return errors.Wrapf(err, "unknown socket group %q", group)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return errors.Wrapf(err, "non-numeric gid %q for group %q", g.Gid, group)
	}
	if err := os.Chown(path, -1, gid); err != nil {
		return errors.Wrapf(err, "could not set socket group to %q", group)
	}
	if err := os.Chmod(path, 0660); err != nil {
		return errors.Wrapf(err, "could not set socket mode")
	}
	return nil
}
