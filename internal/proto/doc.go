// Package proto encapsulates the wire framing shared by the daemon and any
// front-end speaking to it, as well as the functions for reading and writing
// that data off the wire.
//
// The protocol is a versionless binary framing over a local stream socket.
// A request is four fields in fixed order: identity, username, password,
// service. Each field is framed as
//
//	[1-byte declared length][payload bytes][terminator byte]
//
// with a single zero byte as the terminator and no other delimiter between
// fields. A response is a single message framed as
//
//	[terminator byte][1-byte declared length][message bytes][terminator byte]
//
// On both sides the declared length must equal the length of the payload that
// follows it. A mismatch in any one field invalidates the entire request, not
// just that field.
//
// Two framing quirks fall out of the zero-byte terminator. A payload
// containing a zero byte cannot be framed, since the reader splits fields on
// the first zero it sees. A zero-length field cannot be framed either: its
// length byte is itself the terminator value, so the reader consumes it as an
// empty frame and the request decodes as corrupt. Both cases surface as the
// corrupt-input response rather than an error.
//
// Encode and decode are pure functions over byte strings, independent of
// socket I/O, so both sides of a test can exercise them without a live
// connection.
package proto
