package proto

// Header: fixed 14-byte prefix of every frame.
type Header struct {
	Version uint8
	Type    MessageType
	ArgsLen uint32
	BodyLen uint64
}

// Frame: one protocol message (header + opt args + opt body).
type Frame struct {
	Version uint8
	Type    MessageType
	// Wire raw type byte of a frame read as TypeNone; written back as is.
	Wire uint8
	// Args raw UTF-8 bytes as on the wire.
	Args []byte
	// Start parsed args of a ForwardStart frame.
	Start *HandshakeArgs
	// Body opaque payload.
	Body []byte
}

// HandshakeArgs: ForwardStart payload. TargetAddress is informational.
type HandshakeArgs struct {
	TargetAddress string   `json:"target_address"`
	LinkAddress   []string `json:"link_address"`
}

// Head next hop to dial ("" if none).
func (a *HandshakeArgs) Head() string {
	if a == nil || len(a.LinkAddress) == 0 {
		return ""
	}
	return a.LinkAddress[0]
}

// Tail hops to forward onward.
func (a *HandshakeArgs) Tail() []string {
	if a == nil || len(a.LinkAddress) < 2 {
		return nil
	}
	return append([]string(nil), a.LinkAddress[1:]...)
}

// Status: ForwardStartRes payload (code 0 = success).
type Status struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// OK true if Code is StatusOK.
func (s *Status) OK() bool { return s.Code == StatusOK }

// NewFrame builds a current-version frame.
func NewFrame(t MessageType, args, body []byte) *Frame {
	return &Frame{Version: Version, Type: t, Args: args, Body: body}
}

// NewStartFrame builds a ForwardStart carrying args.
func NewStartFrame(args *HandshakeArgs) *Frame {
	return &Frame{Version: Version, Type: TypeForwardStart, Start: args}
}

// Header returns the header matching f's current args and body.
func (f *Frame) Header() Header {
	return Header{
		Version: f.Version,
		Type:    f.Type,
		ArgsLen: uint32(len(f.Args)),
		BodyLen: uint64(len(f.Body)),
	}
}
