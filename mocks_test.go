package sockauthd

import "github.com/sockauth/sockauthd/creds"

type mockOS struct {
	pid int
}

func (m mockOS) Getpid() int {
	return m.pid
}

// stubProc is a deliberately unresponsive worker: it ignores graceful stop
// requests and only goes away when killed.
type stubProc struct {
	stops  int
	killed bool
}

func (p *stubProc) signalStop() {
	p.stops++
}

func (p *stubProc) forceKill() {
	p.killed = true
}

func (p *stubProc) exited() bool {
	return p.killed
}

// aliceChecker accepts exactly alice/secret.
var aliceChecker = creds.CheckerFunc(func(username, password string) (bool, error) {
	return username == "alice" && password == "secret", nil
})

func verdictChecker(verdict bool) creds.Checker {
	return creds.CheckerFunc(func(username, password string) (bool, error) {
		return verdict, nil
	})
}
