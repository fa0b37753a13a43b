package sockauthd

import "os"

type osIface interface {
	Getpid() int
}

type realOS struct{}

func (realOS) Getpid() int {
	return os.Getpid()
}
