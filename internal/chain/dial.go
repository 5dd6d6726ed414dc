package chain

import (
	"context"
	"net"
	"time"

	"dev.c0redev.nfchain/internal/fault"
	"dev.c0redev.nfchain/internal/proto"
)

// Dialer opens next-hop connections. *net.Dialer and transport.Dialer satisfy it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// OpenForwardConnect dials address. With remaining hops it performs the
// ForwardStart handshake; the returned conn then carries framed traffic.
// Without remaining hops the conn is plain.
func OpenForwardConnect(ctx context.Context, d Dialer, address string, remaining []string) (net.Conn, error) {
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fault.Chainf(proto.StatusDialFailed, "dial %s: %v", address, err)
	}
	if len(remaining) == 0 {
		return conn, nil
	}
	if err := handshake(ctx, conn, address, remaining); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func handshake(ctx context.Context, conn net.Conn, address string, remaining []string) error {
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
		defer conn.SetDeadline(time.Time{})
	}
	start := proto.NewStartFrame(&proto.HandshakeArgs{
		TargetAddress: address,
		LinkAddress:   remaining,
	})
	if err := proto.WriteFrame(conn, start); err != nil {
		return err
	}
	// Read straight off the conn: data pipelined after the reply belongs to the pump.
	f, err := proto.ReadFrame(conn)
	if err != nil {
		return err
	}
	if f.Version != proto.Version {
		return fault.Protocolf("%s replied with version %d", address, f.Version)
	}
	st, err := f.ParseStatus()
	if err != nil {
		return err
	}
	if !st.OK() {
		return fault.Chainf(st.Code, "%s: %s", address, st.Msg)
	}
	return nil
}
