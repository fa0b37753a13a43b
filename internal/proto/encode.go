package proto

import (
	"bufio"
	"bytes"

	"github.com/pkg/errors"
)

// ErrFieldTooLong is returned when a payload does not fit the 1-byte
// declared length.
var ErrFieldTooLong = errors.New("field payload longer than 255 bytes")

// EncodeField frames a single payload as length byte, payload, terminator.
func EncodeField(payload []byte) ([]byte, error) {
	if len(payload) > MaxFieldLen {
		return nil, ErrFieldTooLong
	}
	buf := make([]byte, 0, len(payload)+2)
	buf = append(buf, byte(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, Terminator)
	return buf, nil
}

// DecodeField decodes one raw field as read off the wire: trailing
// terminator bytes are stripped, the first remaining byte is the declared
// length, and the rest is the payload. ok is false unless the declared
// length equals the payload length exactly.
func DecodeField(raw []byte) ([]byte, bool) {
	raw = bytes.TrimRight(raw, "\x00")
	if len(raw) < 1 {
		return nil, false
	}
	declared := int(raw[0])
	payload := raw[1:]
	if declared != len(payload) {
		return nil, false
	}
	return payload, true
}

// EncodeRequest frames all four request fields in wire order. It is the
// client half of the protocol, kept here so the daemon and any front-end
// reimplementation agree on framing.
func EncodeRequest(req *Request) ([]byte, error) {
	var buf bytes.Buffer
	for _, payload := range [][]byte{req.Identity, req.Username, req.Password, req.Service} {
		field, err := EncodeField(payload)
		if err != nil {
			return nil, err
		}
		buf.Write(field)
	}
	return buf.Bytes(), nil
}

// ReadRawRequest reads the four terminator-delimited fields of one request.
// The fields are returned raw, terminator included, for DecodeField to
// validate. A stream that ends before all four fields arrive is a framing
// failure.
func ReadRawRequest(r *bufio.Reader) ([][]byte, error) {
	fields := make([][]byte, 0, RequestFields)
	for i := 0; i < RequestFields; i++ {
		raw, err := r.ReadBytes(Terminator)
		if err != nil {
			return nil, errors.Wrapf(err, "short request: got %d of %d fields", i, RequestFields)
		}
		fields = append(fields, raw)
	}
	return fields, nil
}

// ParseRequest validates the four raw fields of a request and decodes them.
// A declared-length mismatch in any one field invalidates the whole request.
func ParseRequest(raw [][]byte) (*Request, bool) {
	if len(raw) != RequestFields {
		return nil, false
	}
	decoded := make([][]byte, RequestFields)
	for i, field := range raw {
		payload, ok := DecodeField(field)
		if !ok {
			return nil, false
		}
		decoded[i] = payload
	}
	return &Request{
		Identity: decoded[0],
		Username: decoded[1],
		Password: decoded[2],
		Service:  decoded[3],
	}, true
}

// EncodeResponse frames a response message: terminator, length byte,
// message, terminator. The message must be one of the fixed response
// messages, all of which fit the length byte.
func EncodeResponse(msg []byte) []byte {
	buf := make([]byte, 0, len(msg)+3)
	buf = append(buf, Terminator, byte(len(msg)))
	buf = append(buf, msg...)
	buf = append(buf, Terminator)
	return buf
}

// DecodeResponse strips the leading terminator of a response frame and
// decodes the remainder with the field-decode logic.
func DecodeResponse(raw []byte) ([]byte, bool) {
	if len(raw) < 1 || raw[0] != Terminator {
		return nil, false
	}
	return DecodeField(raw[1:])
}
