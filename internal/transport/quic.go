package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// alpn for hop-to-hop QUIC.
const alpn = "nfchain"

var quicConfig = &quic.Config{
	MaxIdleTimeout:  30 * time.Second,
	KeepAlivePeriod: 10 * time.Second,
}

// streamConn: the single stream of a QUIC connection as a net.Conn.
type streamConn struct {
	*quic.Stream
	conn *quic.Conn
}

func (c *streamConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *streamConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// lingerTimeout lets queued stream data drain before the connection closes.
const lingerTimeout = 2 * time.Second

// Close finishes the stream and closes its connection after lingerTimeout.
func (c *streamConn) Close() error {
	c.Stream.CancelRead(0)
	err := c.Stream.Close()
	time.AfterFunc(lingerTimeout, func() { c.conn.CloseWithError(0, "") })
	return err
}

// DefaultQUICClientTLS: hops are addressed, not authenticated; payload crypto is separate.
func DefaultQUICClientTLS() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{alpn},
	}
}

// DialStream dials QUIC to addr and opens one stream.
func DialStream(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	if tlsConfig == nil {
		tlsConfig = DefaultQUICClientTLS()
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, err
	}
	return &streamConn{Stream: stream, conn: conn}, nil
}

// quicListener: accepted QUIC connections, first stream each, as net.Conns.
type quicListener struct {
	ln     *quic.Listener
	ctx    context.Context
	cancel context.CancelFunc
	conns  chan net.Conn
	once   sync.Once
	err    error
	done   chan struct{}
}

// ListenQUIC listens on addr. A nil tlsConfig gets a fresh self-signed certificate.
func ListenQUIC(addr string, tlsConfig *tls.Config) (net.Listener, error) {
	if tlsConfig == nil {
		cert, err := selfSignedCert()
		if err != nil {
			return nil, err
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
			NextProtos:   []string{alpn},
		}
	}
	ln, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &quicListener{
		ln:     ln,
		ctx:    ctx,
		cancel: cancel,
		conns:  make(chan net.Conn),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

func (l *quicListener) run() {
	for {
		qc, err := l.ln.Accept(l.ctx)
		if err != nil {
			l.fail(err)
			return
		}
		go l.acceptStream(qc)
	}
}

func (l *quicListener) acceptStream(qc *quic.Conn) {
	st, err := qc.AcceptStream(l.ctx)
	if err != nil {
		qc.CloseWithError(0, "")
		return
	}
	c := &streamConn{Stream: st, conn: qc}
	select {
	case l.conns <- c:
	case <-l.done:
		c.Close()
	}
}

func (l *quicListener) fail(err error) {
	l.once.Do(func() {
		l.err = err
		close(l.done)
	})
}

func (l *quicListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, l.err
	}
}

func (l *quicListener) Close() error {
	l.fail(net.ErrClosed)
	l.cancel()
	return l.ln.Close()
}

func (l *quicListener) Addr() net.Addr { return l.ln.Addr() }

func selfSignedCert() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: alpn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
