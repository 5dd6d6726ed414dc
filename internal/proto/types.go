package proto

import "fmt"

// MessageType: 1-byte type on wire. Response = request + 0x80.
type MessageType uint8

const (
	TypeNone         MessageType = 0x00
	TypeForwardStart MessageType = 0x01
	TypeForwardData  MessageType = 0x02
	TypeForwardEnd   MessageType = 0x03

	TypeForwardStartRes MessageType = 0x81
	TypeForwardDataRes  MessageType = 0x82
	TypeForwardEndRes   MessageType = 0x83
)

// responseBit marks response types.
const responseBit = 0x80

// Version is the only protocol version.
const Version uint8 = 0x01

// HeaderSize: 1 + 1 + 4 + 8 = 14 bytes (version, type, args_len, body_len).
const HeaderSize = 14

// MaxArgsSize caps args (1MiB).
const MaxArgsSize = 1024 * 1024

// MaxBodySize caps body (16MiB).
const MaxBodySize = 1024 * 1024 * 16

// ParseMessageType maps a wire byte; unknown -> TypeNone.
func ParseMessageType(b uint8) MessageType {
	switch t := MessageType(b); t {
	case TypeForwardStart, TypeForwardData, TypeForwardEnd,
		TypeForwardStartRes, TypeForwardDataRes, TypeForwardEndRes:
		return t
	}
	return TypeNone
}

// Response returns the response type for a request type.
func (t MessageType) Response() MessageType {
	if t == TypeNone || t.IsResponse() {
		return t
	}
	return t | responseBit
}

// IsResponse true for 0x8x types.
func (t MessageType) IsResponse() bool { return t&responseBit != 0 }

func (t MessageType) String() string {
	switch t {
	case TypeNone:
		return "None"
	case TypeForwardStart:
		return "ForwardStart"
	case TypeForwardData:
		return "ForwardData"
	case TypeForwardEnd:
		return "ForwardEnd"
	case TypeForwardStartRes:
		return "ForwardStartRes"
	case TypeForwardDataRes:
		return "ForwardDataRes"
	case TypeForwardEndRes:
		return "ForwardEndRes"
	}
	return fmt.Sprintf("MessageType(0x%02x)", uint8(t))
}

// Status codes carried in ForwardStartRes.
const (
	StatusOK = 0
	// StatusEmptyLink: handshake carried no hops.
	StatusEmptyLink = 1
	// StatusBadRequest: first frame was not a usable ForwardStart.
	StatusBadRequest = 2
	// StatusDialFailed: next hop could not be reached.
	StatusDialFailed = 3
)
