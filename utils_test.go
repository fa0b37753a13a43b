package sockauthd

import (
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"testing"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/sockauth/sockauthd/internal/proto"
)

var l = log15.New()

func tmpDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "sockauthd_test")
	if err != nil {
		panic(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// testGroup returns a group name the current user belongs to, so socket
// chown in tests doesn't need privileges.
func testGroup(t *testing.T) string {
	t.Helper()
	u, err := user.Current()
	if err != nil {
		t.Skipf("cannot determine current user: %v", err)
	}
	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		t.Skipf("cannot resolve primary group %s: %v", u.Gid, err)
	}
	return g.Name
}

func testConfig(t *testing.T) Config {
	dir := tmpDir(t)
	return Config{
		SocketPath:   filepath.Join(dir, "socket"),
		Group:        testGroup(t),
		LockfilePath: filepath.Join(dir, "lock"),
		Foreground:   true,
	}
}

func waitForPath(t *testing.T, path string) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s never appeared", path)
}

// sendRequest writes one framed request and returns the decoded response
// message. The connection is consumed to EOF, since the daemon closes it
// after responding.
func sendRequest(t *testing.T, conn net.Conn, req *proto.Request) []byte {
	t.Helper()
	wire, err := proto.EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if _, err := conn.Write(wire); err != nil {
		t.Fatalf("write error: %v", err)
	}
	return readResponse(t, conn)
}

func readResponse(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	msg, ok := proto.DecodeResponse(data)
	if !ok {
		t.Fatalf("bad response frame %q", data)
	}
	return msg
}

func validRequest() *proto.Request {
	return &proto.Request{
		Identity: []byte("sasld"),
		Username: []byte("alice"),
		Password: []byte("secret"),
		Service:  []byte("imap"),
	}
}
