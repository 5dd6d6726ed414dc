package forward

import (
	"bufio"
	"io"
	"net"

	"dev.c0redev.nfchain/internal/crypto"
	"dev.c0redev.nfchain/internal/fault"
	"dev.c0redev.nfchain/internal/proto"
)

// MaxChunk bounds one plain read and so one data frame body.
const MaxChunk = 1024 * 1024

const readBufferSize = 64 * 1024

// Role: which end of a framed leg this node plays.
type Role struct {
	name    string
	dataOut proto.MessageType
	dataIn  proto.MessageType
	endOut  proto.MessageType
	endIn   proto.MessageType
}

var (
	// EntryRole: sends requests upstream of the exit (ForwardData, ForwardEnd).
	EntryRole = Role{"entry", proto.TypeForwardData, proto.TypeForwardDataRes, proto.TypeForwardEnd, proto.TypeForwardEndRes}
	// ExitRole: answers with responses (ForwardDataRes, ForwardEndRes).
	ExitRole = Role{"exit", proto.TypeForwardDataRes, proto.TypeForwardData, proto.TypeForwardEndRes, proto.TypeForwardEnd}
)

func (r Role) String() string { return r.name }

type plainSide struct {
	conn net.Conn
	buf  []byte
}

// Plain: raw bytes, chunks of at most MaxChunk, returned as fresh slices.
func Plain(conn net.Conn) Side[[]byte] {
	return &plainSide{conn: conn, buf: make([]byte, readBufferSize)}
}

func (s *plainSide) Read() ([]byte, error) {
	n, err := s.conn.Read(s.buf)
	if n > 0 {
		return append([]byte(nil), s.buf[:n]...), nil
	}
	if err == nil || err == io.EOF {
		return nil, io.EOF
	}
	return nil, fault.IO(err, "plain read")
}

func (s *plainSide) Write(b []byte) error {
	if _, err := s.conn.Write(b); err != nil {
		return fault.IO(err, "plain write")
	}
	return nil
}

func (s *plainSide) Close() error { return s.conn.Close() }

type framedSide struct {
	conn   net.Conn
	r      *bufio.Reader
	role   Role
	cipher crypto.Cipher
}

// Framed: data frames of role, bodies decrypted on read and encrypted on write.
func Framed(conn net.Conn, role Role, c crypto.Cipher) Side[[]byte] {
	return &framedSide{conn: conn, r: bufio.NewReaderSize(conn, readBufferSize), role: role, cipher: c}
}

func (s *framedSide) Read() ([]byte, error) {
	f, err := proto.ReadFrame(s.r)
	if err != nil {
		return nil, err
	}
	if f.Version != proto.Version {
		return nil, fault.Protocolf("%s leg: unsupported version %d", s.role, f.Version)
	}
	switch f.Type {
	case s.role.dataIn:
		if len(f.Body) == 0 {
			return nil, fault.Protocolf("%s leg: %s without body", s.role, f.Type)
		}
		return crypto.Transform(crypto.OutOfProtocol, s.cipher, f.Body)
	case s.role.endIn:
		return nil, io.EOF
	}
	return nil, fault.Protocolf("%s leg: unexpected %s", s.role, f.Type)
}

func (s *framedSide) Write(b []byte) error {
	body, err := crypto.Transform(crypto.IntoProtocol, s.cipher, b)
	if err != nil {
		return err
	}
	return proto.WriteFrame(s.conn, proto.NewFrame(s.role.dataOut, nil, body))
}

// Finish sends the role's end frame.
func (s *framedSide) Finish() error {
	return proto.WriteFrame(s.conn, proto.NewFrame(s.role.endOut, nil, nil))
}

func (s *framedSide) Close() error { return s.conn.Close() }

type relaySide struct {
	conn net.Conn
	r    *bufio.Reader
}

// Relay: whole frames passed through untouched; only the version is checked.
func Relay(conn net.Conn) Side[*proto.Frame] {
	return &relaySide{conn: conn, r: bufio.NewReaderSize(conn, readBufferSize)}
}

func (s *relaySide) Read() (*proto.Frame, error) {
	f, err := proto.ReadFrame(s.r)
	if err != nil {
		return nil, err
	}
	if f.Version != proto.Version {
		return nil, fault.Protocolf("relay leg: unsupported version %d", f.Version)
	}
	return f, nil
}

func (s *relaySide) Write(f *proto.Frame) error { return proto.WriteFrame(s.conn, f) }

func (s *relaySide) Close() error { return s.conn.Close() }
