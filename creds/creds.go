// Package creds is the daemon's boundary to the credential store: an
// opaque capability answering "is this username/password pair valid". The
// daemon core never sees how a verdict is produced.
//
// A reference file-backed store ships here as well. Its format is one
// credential per line, username and bcrypt hash separated by a colon, with
// blank lines and '#' comments ignored:
//
//	alice:$2a$10$N9qo8uLOickgx2ZMRZoMye...
//
// The file is read fresh on every check and only ever read, so concurrent
// workers need no locking against each other.
package creds

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Checker produces a boolean verdict for a username/password pair. A false
// verdict is not an error; errors are reserved for the store itself being
// unavailable or unreadable.
type Checker interface {
	Check(username, password string) (bool, error)
}

// CheckerFunc adapts a plain function to the Checker interface.
type CheckerFunc func(username, password string) (bool, error)

func (f CheckerFunc) Check(username, password string) (bool, error) {
	return f(username, password)
}

// FileStore is the reference Checker over a colon-separated credential
// file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Check scans the file for the username and verifies the password against
// its bcrypt hash. An unknown username and a wrong password are the same
// negative verdict, so callers can't distinguish the two by timing a
// response template.
func (s *FileStore) Check(username, password string) (bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return false, errors.Wrapf(err, "could not open credential file %s", s.path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, hash, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if name != username {
			continue
		}
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
	}
	if err := scanner.Err(); err != nil {
		return false, errors.Wrapf(err, "error reading credential file %s", s.path)
	}
	return false, nil
}
