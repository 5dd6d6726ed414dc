package forward

import (
	"net"

	"dev.c0redev.nfchain/internal/crypto"
	"dev.c0redev.nfchain/internal/proto"
)

// PlainToPlain: byte copy both ways.
func PlainToPlain(a, b net.Conn) (Stats, error) {
	return Pump[[]byte](Plain(a), Plain(b))
}

// PlainToFramed: plain client in, framed chain out (this node is the entry).
func PlainToFramed(plain, framed net.Conn, c crypto.Cipher) (Stats, error) {
	return Pump[[]byte](Plain(plain), Framed(framed, EntryRole, c))
}

// FramedToPlain: framed chain in, plain target out (this node is the exit).
func FramedToPlain(framed, plain net.Conn, c crypto.Cipher) (Stats, error) {
	return Pump[[]byte](Framed(framed, ExitRole, c), Plain(plain))
}

// FramedToFramed: middle hop, frames relayed verbatim.
func FramedToFramed(a, b net.Conn) (Stats, error) {
	return Pump[*proto.Frame](Relay(a), Relay(b))
}
