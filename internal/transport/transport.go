// Package transport: hop dialing and listening over TCP or QUIC.
package transport

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pires/go-proxyproto"
	"github.com/pkg/errors"
)

// QUICScheme prefixes hop addresses reached over QUIC.
const QUICScheme = "quic://"

// SplitScheme returns the bare host:port and whether it was a QUIC address.
func SplitScheme(address string) (string, bool) {
	if strings.HasPrefix(address, QUICScheme) {
		return strings.TrimPrefix(address, QUICScheme), true
	}
	return address, false
}

// Dialer: TCP by default, QUIC for quic:// addresses. Timeout bounds the dial.
type Dialer struct {
	Timeout time.Duration
	tcp     net.Dialer
}

// NewDialer with the given dial timeout (0 = none).
func NewDialer(timeout time.Duration) *Dialer {
	return &Dialer{Timeout: timeout, tcp: net.Dialer{KeepAlive: 30 * time.Second}}
}

// DialContext network is ignored for quic:// addresses.
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	if addr, ok := SplitScheme(address); ok {
		return DialStream(ctx, addr, nil)
	}
	return d.tcp.DialContext(ctx, network, address)
}

// ListenOptions for Listen.
type ListenOptions struct {
	// ProxyProtocol accepts PROXY protocol v1/v2 headers on TCP listeners.
	ProxyProtocol bool
	// ProxyHeaderTimeout bounds the wait for a PROXY header.
	ProxyHeaderTimeout time.Duration
}

// Listen on address (quic:// for QUIC).
func Listen(address string, opts ListenOptions) (net.Listener, error) {
	if addr, ok := SplitScheme(address); ok {
		if opts.ProxyProtocol {
			return nil, errors.New("proxy protocol is not supported on quic listeners")
		}
		ln, err := ListenQUIC(addr, nil)
		return ln, errors.Wrapf(err, "listen %s", address)
	}
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", address)
	}
	if opts.ProxyProtocol {
		return WithProxyProtocol(ln, opts.ProxyHeaderTimeout), nil
	}
	return ln, nil
}

// WithProxyProtocol wraps ln; connections without a header pass through unchanged.
func WithProxyProtocol(ln net.Listener, timeout time.Duration) net.Listener {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &proxyproto.Listener{
		Listener: ln,
		Policy: func(upstream net.Addr) (proxyproto.Policy, error) {
			return proxyproto.USE, nil
		},
		ReadHeaderTimeout: timeout,
	}
}
