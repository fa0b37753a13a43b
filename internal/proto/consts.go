package proto

const (
	// Terminator is the single byte ending every field and response frame.
	Terminator byte = 0x00
	// MaxFieldLen is the largest payload representable by the 1-byte
	// declared length.
	MaxFieldLen = 255
	// RequestFields is the number of fields in a request, in the fixed
	// order identity, username, password, service.
	RequestFields = 4
)

// The three response messages. A response is always exactly one of these;
// the front-end matches on the full message bytes.
var (
	RespPasswordOK = []byte("OK - Password ok")
	RespWrongLogin = []byte("NO - Wrong login or password")
	RespCorrupt    = []byte("NO - Input corrupt")
)
