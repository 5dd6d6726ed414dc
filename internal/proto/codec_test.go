package proto

import (
	"bytes"
	"errors"
	"testing"

	"gotest.tools/assert"

	"dev.c0redev.nfchain/internal/fault"
)

func TestEncodeHeaderExact(t *testing.T) {
	b := EncodeHeader(Header{Version: 1, Type: TypeForwardStart, ArgsLen: 5, BodyLen: 10})
	want := []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x0A}
	assert.DeepEqual(t, b[:], want)

	h, err := DecodeHeader(want)
	assert.NilError(t, err)
	assert.Equal(t, h, Header{Version: 1, Type: TypeForwardStart, ArgsLen: 5, BodyLen: 10})
}

func TestFrameRoundTrip(t *testing.T) {
	frames := []*Frame{
		NewFrame(TypeForwardData, nil, []byte("hello")),
		NewFrame(TypeForwardDataRes, []byte("note"), []byte{0, 1, 2, 0xff}),
		NewFrame(TypeForwardEnd, nil, nil),
		NewFrame(TypeForwardEndRes, []byte("bye"), nil),
		{Version: 7, Type: TypeForwardData, Body: []byte("other version")},
	}
	for _, f := range frames {
		var buf bytes.Buffer
		assert.NilError(t, WriteFrame(&buf, f))
		assert.Equal(t, buf.Len(), HeaderSize+len(f.Args)+len(f.Body))
		dec, err := ReadFrame(&buf)
		assert.NilError(t, err)
		assert.DeepEqual(t, dec, f)
		assert.Equal(t, buf.Len(), 0)
	}
}

func TestStartFrameRoundTrip(t *testing.T) {
	args := &HandshakeArgs{TargetAddress: "x:1", LinkAddress: []string{"x:1", "y:2"}}
	var buf bytes.Buffer
	assert.NilError(t, WriteFrame(&buf, NewStartFrame(args)))
	dec, err := ReadFrame(&buf)
	assert.NilError(t, err)
	assert.Equal(t, dec.Type, TypeForwardStart)
	assert.DeepEqual(t, dec.Start, args)
	assert.Equal(t, string(dec.Args), `{"target_address":"x:1","link_address":["x:1","y:2"]}`)
	assert.Equal(t, dec.Start.Head(), "x:1")
	assert.DeepEqual(t, dec.Start.Tail(), []string{"y:2"})
}

func TestStartFrameKeepsRawArgs(t *testing.T) {
	raw := []byte(`{"link_address":["a&b:1"],"target_address":"t","x":1}`)
	h := EncodeHeader(Header{Version: Version, Type: TypeForwardStart, ArgsLen: uint32(len(raw))})
	wire := append(h[:], raw...)

	dec, err := ReadFrame(bytes.NewReader(wire))
	assert.NilError(t, err)
	assert.DeepEqual(t, dec.Start, &HandshakeArgs{TargetAddress: "t", LinkAddress: []string{"a&b:1"}})

	var buf bytes.Buffer
	assert.NilError(t, WriteFrame(&buf, dec))
	assert.DeepEqual(t, buf.Bytes(), wire)

	again, err := ReadFrame(&buf)
	assert.NilError(t, err)
	assert.DeepEqual(t, again, dec)
}

func TestUnknownTypeByteKept(t *testing.T) {
	h := EncodeHeader(Header{Version: Version, Type: MessageType(0x42), BodyLen: 2})
	wire := append(h[:], 'h', 'i')

	dec, err := ReadFrame(bytes.NewReader(wire))
	assert.NilError(t, err)
	assert.Equal(t, dec.Type, TypeNone)
	assert.Equal(t, dec.Wire, uint8(0x42))

	var buf bytes.Buffer
	assert.NilError(t, WriteFrame(&buf, dec))
	assert.DeepEqual(t, buf.Bytes(), wire)
}

func TestStatusFrame(t *testing.T) {
	f, err := NewStatusFrame(&Status{Code: StatusDialFailed, Msg: "refused"})
	assert.NilError(t, err)
	var buf bytes.Buffer
	assert.NilError(t, WriteFrame(&buf, f))
	dec, err := ReadFrame(&buf)
	assert.NilError(t, err)
	assert.Equal(t, string(dec.Args), `{"code":3,"msg":"refused","data":null}`)
	s, err := dec.ParseStatus()
	assert.NilError(t, err)
	assert.Equal(t, s.Code, StatusDialFailed)
	assert.Equal(t, s.Msg, "refused")
	assert.Assert(t, !s.OK())

	_, err = NewFrame(TypeForwardData, nil, nil).ParseStatus()
	assert.Assert(t, fault.Is(err, fault.KindProtocol))
}

func TestReadFrameShortHeader(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x01, 0x02, 0x00}))
	assert.Assert(t, fault.Is(err, fault.KindIO), "got %v", err)

	_, err = ReadFrame(bytes.NewReader(nil))
	assert.Assert(t, fault.Is(err, fault.KindIO), "got %v", err)
}

func TestReadFrameTruncatedBody(t *testing.T) {
	h := EncodeHeader(Header{Version: Version, Type: TypeForwardData, BodyLen: 10})
	_, err := ReadFrame(bytes.NewReader(append(h[:], 'a', 'b')))
	assert.Assert(t, fault.Is(err, fault.KindIO), "got %v", err)
}

func TestReadFrameBadArgs(t *testing.T) {
	bad := []byte{0xff, 0xfe}
	h := EncodeHeader(Header{Version: Version, Type: TypeForwardData, ArgsLen: uint32(len(bad))})
	_, err := ReadFrame(bytes.NewReader(append(h[:], bad...)))
	assert.Assert(t, fault.Is(err, fault.KindEncoding), "got %v", err)

	js := []byte(`{"link_address":`)
	h = EncodeHeader(Header{Version: Version, Type: TypeForwardStart, ArgsLen: uint32(len(js))})
	_, err = ReadFrame(bytes.NewReader(append(h[:], js...)))
	assert.Assert(t, fault.Is(err, fault.KindDecode), "got %v", err)

	// same bytes are opaque for other types
	h = EncodeHeader(Header{Version: Version, Type: TypeForwardEnd, ArgsLen: uint32(len(js))})
	f, err := ReadFrame(bytes.NewReader(append(h[:], js...)))
	assert.NilError(t, err)
	assert.Assert(t, f.Start == nil)
	assert.Equal(t, string(f.Args), string(js))
}

func TestReadFrameOversize(t *testing.T) {
	h := EncodeHeader(Header{Version: Version, Type: TypeForwardData, BodyLen: MaxBodySize + 1})
	_, err := ReadFrame(bytes.NewReader(h[:]))
	assert.Assert(t, fault.Is(err, fault.KindProtocol), "got %v", err)
}

func TestUnknownTypeIsNone(t *testing.T) {
	assert.Equal(t, ParseMessageType(0x42), TypeNone)
	assert.Equal(t, ParseMessageType(0x82), TypeForwardDataRes)
	assert.Equal(t, TypeForwardStart.Response(), TypeForwardStartRes)
	assert.Equal(t, TypeForwardData.Response(), TypeForwardDataRes)
	assert.Equal(t, TypeForwardEnd.Response(), TypeForwardEndRes)
	assert.Equal(t, TypeForwardEndRes.Response(), TypeForwardEndRes)
}

type failWriter struct{ after int }

func (w *failWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("broken pipe")
	}
	w.after--
	return len(p), nil
}

func TestWriteFrameShortWrite(t *testing.T) {
	err := WriteFrame(&failWriter{after: 1}, NewFrame(TypeForwardData, []byte("a"), []byte("b")))
	assert.Assert(t, fault.Is(err, fault.KindIO), "got %v", err)
}
