// Package sockauthd implements a local authentication broker daemon.
//
// A mail or SASL front-end connects over a group-restricted unix socket,
// sends identity, username, password and service as length-prefixed fields,
// and receives one of three fixed verdict messages. Verification itself is
// delegated to a credential store behind the creds.Checker interface; this
// package owns everything around it: singleton enforcement through a locked
// pidfile, socket lifecycle and permissions, one isolated worker per
// accepted connection, and a signal-driven shutdown that escalates from
// graceful stop requests to forced kills under a bounded retry budget.
//
// The supervisor is a single control loop blocking only on accept. Workers
// run as independent goroutines with a recover boundary, so a slow, hostile
// or crashing client affects nothing but its own connection. Terminated
// workers are reclaimed asynchronously through a notification channel the
// loop drains between accepts.
//
// Only the daemon's own process detaches; the socket is bound exactly once
// and handed to the detached copy as an inherited file descriptor.
package sockauthd
