package proto

import (
	"bufio"
	"bytes"
	"testing"
	"testing/quick"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		Identity: []byte("sasld"),
		Username: []byte("alice"),
		Password: []byte("secret"),
		Service:  []byte("imap"),
	}
	wire, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	raw, err := ReadRawRequest(bufio.NewReader(bytes.NewReader(wire)))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	decoded, ok := ParseRequest(raw)
	if !ok {
		t.Fatalf("request did not validate")
	}
	if !bytes.Equal(decoded.Identity, req.Identity) ||
		!bytes.Equal(decoded.Username, req.Username) ||
		!bytes.Equal(decoded.Password, req.Password) ||
		!bytes.Equal(decoded.Service, req.Service) {
		t.Fatalf("roundtrip mismatch: %+v != %+v", decoded, req)
	}
}

// sanitize makes an arbitrary byte string representable on the wire: no
// terminator bytes, within the length byte, non-empty.
func sanitize(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != Terminator {
			out = append(out, c)
		}
	}
	if len(out) > MaxFieldLen {
		out = out[:MaxFieldLen]
	}
	if len(out) == 0 {
		out = []byte{'x'}
	}
	return out
}

func TestQuickcheckFieldRoundTrip(t *testing.T) {
	if err := quick.Check(func(payload []byte) bool {
		payload = sanitize(payload)
		wire, err := EncodeField(payload)
		if err != nil {
			t.Errorf("encode error for %q: %v", payload, err)
			return false
		}
		got, ok := DecodeField(wire)
		if !ok {
			t.Errorf("decode failed for %q (wire %q)", payload, wire)
			return false
		}
		return bytes.Equal(got, payload)
	}, &quick.Config{}); err != nil {
		t.Error(err)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	for _, msg := range [][]byte{RespPasswordOK, RespWrongLogin, RespCorrupt} {
		got, ok := DecodeResponse(EncodeResponse(msg))
		if !ok {
			t.Fatalf("response %q did not decode", msg)
		}
		if !bytes.Equal(got, msg) {
			t.Fatalf("response roundtrip: got %q, want %q", got, msg)
		}
	}
}

func TestDecodeFieldLengthMismatch(t *testing.T) {
	// declared length 3, payload is 5 bytes
	raw := append([]byte{3}, []byte("hello")...)
	raw = append(raw, Terminator)
	if payload, ok := DecodeField(raw); ok {
		t.Fatalf("expected mismatch to fail validation, got %q", payload)
	}
}

func TestDecodeFieldEmpty(t *testing.T) {
	// a lone terminator decodes as corrupt, not as an empty payload
	if _, ok := DecodeField([]byte{Terminator}); ok {
		t.Fatal("expected empty frame to fail validation")
	}
}

func TestParseRequestOneBadFieldCorruptsAll(t *testing.T) {
	good := func(payload string) []byte {
		f, err := EncodeField([]byte(payload))
		if err != nil {
			t.Fatalf("encode error: %v", err)
		}
		return f
	}
	bad := append([]byte{3}, []byte("hello")...)
	bad = append(bad, Terminator)

	for i := 0; i < RequestFields; i++ {
		raw := [][]byte{good("sasld"), good("alice"), good("secret"), good("imap")}
		raw[i] = bad
		if req, ok := ParseRequest(raw); ok {
			t.Fatalf("field %d malformed but request validated: %+v", i, req)
		}
	}
}

func TestReadRawRequestShortStream(t *testing.T) {
	// only two of the four fields arrive before EOF
	var wire bytes.Buffer
	for _, payload := range []string{"sasld", "alice"} {
		f, err := EncodeField([]byte(payload))
		if err != nil {
			t.Fatalf("encode error: %v", err)
		}
		wire.Write(f)
	}
	if _, err := ReadRawRequest(bufio.NewReader(&wire)); err == nil {
		t.Fatal("expected a framing error on short stream")
	}
}

func TestEncodeFieldTooLong(t *testing.T) {
	if _, err := EncodeField(make([]byte, MaxFieldLen+1)); err != ErrFieldTooLong {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
}
