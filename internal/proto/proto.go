package proto

// Request is a decoded request. The identity and service fields ride along
// with every request and are logged by the daemon, but only the username and
// password feed the credential check.
type Request struct {
	Identity []byte
	Username []byte
	Password []byte
	Service  []byte
}
