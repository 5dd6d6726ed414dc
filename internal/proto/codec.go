package proto

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"unicode/utf8"

	"dev.c0redev.nfchain/internal/fault"
)

// EncodeHeader: version, type, args_len (BE u32), body_len (BE u64).
func EncodeHeader(h Header) [HeaderSize]byte {
	var b [HeaderSize]byte
	b[0] = h.Version
	b[1] = byte(h.Type)
	binary.BigEndian.PutUint32(b[2:6], h.ArgsLen)
	binary.BigEndian.PutUint64(b[6:14], h.BodyLen)
	return b
}

// DecodeHeader parses the first HeaderSize bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fault.Protocolf("header needs %d bytes, got %d", HeaderSize, len(b))
	}
	return Header{
		Version: b[0],
		Type:    ParseMessageType(b[1]),
		ArgsLen: binary.BigEndian.Uint32(b[2:6]),
		BodyLen: binary.BigEndian.Uint64(b[6:14]),
	}, nil
}

// ReadFrame reads one complete frame. Partial frames are never returned.
func ReadFrame(r io.Reader) (*Frame, error) {
	var hb [HeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return nil, fault.IO(err, "read frame header")
	}
	h, err := DecodeHeader(hb[:])
	if err != nil {
		return nil, err
	}
	if h.ArgsLen > MaxArgsSize {
		return nil, fault.Protocolf("args length %d exceeds %d", h.ArgsLen, MaxArgsSize)
	}
	if h.BodyLen > MaxBodySize {
		return nil, fault.Protocolf("body length %d exceeds %d", h.BodyLen, MaxBodySize)
	}
	f := &Frame{Version: h.Version, Type: h.Type}
	if h.Type == TypeNone {
		f.Wire = hb[1]
	}
	if h.ArgsLen > 0 {
		f.Args = make([]byte, h.ArgsLen)
		if _, err := io.ReadFull(r, f.Args); err != nil {
			return nil, fault.IO(err, "read frame args")
		}
		if !utf8.Valid(f.Args) {
			return nil, fault.Encodingf("%s args are not valid utf-8", h.Type)
		}
		if h.Type == TypeForwardStart {
			var a HandshakeArgs
			if err := json.Unmarshal(f.Args, &a); err != nil {
				return nil, fault.Decode(err, "parse ForwardStart args")
			}
			f.Start = &a
		}
	}
	if h.BodyLen > 0 {
		f.Body = make([]byte, h.BodyLen)
		if _, err := io.ReadFull(r, f.Body); err != nil {
			return nil, fault.IO(err, "read frame body")
		}
	}
	return f, nil
}

// WriteFrame writes header + args + body as one unit (writev where supported).
// Raw Args always win; a ForwardStart without Args gets them JSON-encoded
// from Start.
func WriteFrame(w io.Writer, f *Frame) error {
	args := f.Args
	if len(args) == 0 && f.Type == TypeForwardStart && f.Start != nil {
		b, err := json.Marshal(f.Start)
		if err != nil {
			return fault.Decode(err, "encode ForwardStart args")
		}
		args = b
	}
	if len(args) > MaxArgsSize {
		return fault.Protocolf("args length %d exceeds %d", len(args), MaxArgsSize)
	}
	if len(f.Body) > MaxBodySize {
		return fault.Protocolf("body length %d exceeds %d", len(f.Body), MaxBodySize)
	}
	typ := f.Type
	if typ == TypeNone && f.Wire != 0 {
		typ = MessageType(f.Wire)
	}
	hb := EncodeHeader(Header{
		Version: f.Version,
		Type:    typ,
		ArgsLen: uint32(len(args)),
		BodyLen: uint64(len(f.Body)),
	})
	bufs := net.Buffers{hb[:]}
	if len(args) > 0 {
		bufs = append(bufs, args)
	}
	if len(f.Body) > 0 {
		bufs = append(bufs, f.Body)
	}
	if _, err := bufs.WriteTo(w); err != nil {
		return fault.IO(err, "write frame")
	}
	return nil
}

// NewStatusFrame builds a ForwardStartRes carrying s.
func NewStatusFrame(s *Status) (*Frame, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fault.Decode(err, "encode status")
	}
	return NewFrame(TypeForwardStartRes, b, nil), nil
}

// ParseStatus decodes the envelope of a ForwardStartRes frame.
func (f *Frame) ParseStatus() (*Status, error) {
	if f.Type != TypeForwardStartRes {
		return nil, fault.Protocolf("expected %s, got %s", TypeForwardStartRes, f.Type)
	}
	if len(f.Args) == 0 {
		return nil, fault.Protocolf("%s without status args", f.Type)
	}
	var s Status
	if err := json.Unmarshal(f.Args, &s); err != nil {
		return nil, fault.Decode(err, "parse status")
	}
	return &s, nil
}
