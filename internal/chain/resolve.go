package chain

import (
	"context"
	"net"

	"go.uber.org/zap"

	"dev.c0redev.nfchain/internal/fault"
	"dev.c0redev.nfchain/internal/proto"
)

// Shape: framing of the inbound and outbound legs.
type Shape uint8

const (
	PlainToPlain Shape = iota
	PlainToFramed
	FramedToPlain
	FramedToFramed
)

func (s Shape) String() string {
	switch s {
	case PlainToPlain:
		return "plain-plain"
	case PlainToFramed:
		return "plain-framed"
	case FramedToPlain:
		return "framed-plain"
	case FramedToFramed:
		return "framed-framed"
	}
	return "unknown"
}

// Route: a resolved connection pair ready to pump.
type Route struct {
	Shape    Shape
	Inbound  net.Conn
	Outbound net.Conn
	// Next: address actually dialed.
	Next string
	// Target: informational final destination.
	Target string
}

// Resolver turns an accepted conn into a Route according to the config's mode.
type Resolver struct {
	cfg    *Config
	dialer Dialer
	log    *zap.Logger
}

// NewResolver; log may be nil.
func NewResolver(cfg *Config, d Dialer, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{cfg: cfg, dialer: d, log: log}
}

// Resolve dials the next hop for in. target is the SOCKS-requested
// destination in entry+socks mode and ignored otherwise.
// On chain failures in handshake mode the upstream peer has already been told.
func (r *Resolver) Resolve(ctx context.Context, in net.Conn, target string) (*Route, error) {
	switch m := r.cfg.Mode().(type) {
	case StaticRelay:
		return r.static(ctx, in, m)
	case Entry:
		return r.entry(ctx, in, m, target)
	default:
		return r.handshake(ctx, in)
	}
}

func (r *Resolver) static(ctx context.Context, in net.Conn, m StaticRelay) (*Route, error) {
	next := m.Next[0]
	out, err := r.dialer.DialContext(ctx, "tcp", next)
	if err != nil {
		return nil, fault.Chainf(proto.StatusDialFailed, "dial %s: %v", next, err)
	}
	return &Route{Shape: FramedToFramed, Inbound: in, Outbound: out, Next: next}, nil
}

func (r *Resolver) entry(ctx context.Context, in net.Conn, m Entry, target string) (*Route, error) {
	link := append([]string(nil), m.Link...)
	if m.Socks {
		if target == "" {
			return nil, fault.Chainf(proto.StatusBadRequest, "socks entry without target")
		}
		link = append(link, target)
	}
	if len(link) == 0 {
		return nil, fault.Chainf(proto.StatusEmptyLink, "empty entry chain")
	}
	out, err := OpenForwardConnect(ctx, r.dialer, link[0], link[1:])
	if err != nil {
		return nil, err
	}
	rt := &Route{Shape: PlainToFramed, Inbound: in, Outbound: out, Next: link[0], Target: link[len(link)-1]}
	if len(link) == 1 {
		rt.Shape = PlainToPlain
	}
	return rt, nil
}

func (r *Resolver) handshake(ctx context.Context, in net.Conn) (*Route, error) {
	f, err := proto.ReadFrame(in)
	if err != nil {
		if k := fault.KindOf(err); k == fault.KindDecode || k == fault.KindEncoding || k == fault.KindProtocol {
			r.reply(in, proto.StatusBadRequest, err.Error())
		}
		return nil, err
	}
	if f.Version != proto.Version {
		r.reply(in, proto.StatusBadRequest, "unsupported version")
		return nil, fault.Protocolf("handshake version %d", f.Version)
	}
	if f.Type != proto.TypeForwardStart || f.Start == nil {
		r.reply(in, proto.StatusBadRequest, "expected ForwardStart")
		return nil, fault.Protocolf("handshake expected %s with args, got %s", proto.TypeForwardStart, f.Type)
	}
	args := f.Start
	next := args.Head()
	if next == "" {
		r.reply(in, proto.StatusEmptyLink, "link_address is empty")
		return nil, fault.Chainf(proto.StatusEmptyLink, "handshake with empty link_address")
	}
	r.log.Debug("handshake", zap.String("target", args.TargetAddress), zap.Strings("link", args.LinkAddress))
	tail := args.Tail()
	out, err := OpenForwardConnect(ctx, r.dialer, next, tail)
	if err != nil {
		code := fault.CodeOf(err)
		if code == proto.StatusOK {
			code = proto.StatusDialFailed
		}
		msg := fault.Message(err)
		if fault.KindOf(err) != fault.KindChain {
			msg = next + ": " + msg
		}
		r.reply(in, code, msg)
		return nil, err
	}
	if err := r.reply(in, proto.StatusOK, "ok"); err != nil {
		out.Close()
		return nil, err
	}
	rt := &Route{Shape: FramedToFramed, Inbound: in, Outbound: out, Next: next, Target: args.TargetAddress}
	if len(tail) == 0 {
		rt.Shape = FramedToPlain
	}
	return rt, nil
}

func (r *Resolver) reply(in net.Conn, code int, msg string) error {
	f, err := proto.NewStatusFrame(&proto.Status{Code: code, Msg: msg})
	if err != nil {
		return err
	}
	if err := proto.WriteFrame(in, f); err != nil {
		r.log.Debug("status reply failed", zap.Int("code", code), zap.Error(err))
		return err
	}
	return nil
}
