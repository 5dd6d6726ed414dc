// Package client opens chains from Go code: the returned net.Conn speaks
// plain bytes and the chain does the framing.
package client

import (
	"context"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"dev.c0redev.nfchain/internal/chain"
	"dev.c0redev.nfchain/internal/crypto"
	"dev.c0redev.nfchain/internal/forward"
)

// Conn: plain view of a framed chain. Safe for one reader and one writer.
type Conn struct {
	net.Conn
	side    forward.Side[[]byte]
	readBuf []byte
	wmu     sync.Mutex
	once    sync.Once
	target  string
}

// Dial opens link (hop addresses, last = target). A single-element link is a
// direct TCP connection; otherwise the first hop receives a ForwardStart for
// the rest and payload is encrypted with c.
func Dial(ctx context.Context, d chain.Dialer, c crypto.Cipher, link []string) (net.Conn, error) {
	if len(link) == 0 {
		return nil, errors.New("empty link")
	}
	conn, err := chain.OpenForwardConnect(ctx, d, link[0], link[1:])
	if err != nil {
		return nil, err
	}
	if len(link) == 1 {
		return conn, nil
	}
	if c == nil {
		c = crypto.None{}
	}
	return &Conn{
		Conn:   conn,
		side:   forward.Framed(conn, forward.EntryRole, c),
		target: link[len(link)-1],
	}, nil
}

// Target final hop of the chain.
func (c *Conn) Target() string { return c.target }

// Read returns decrypted payload; io.EOF after the exit's end frame.
func (c *Conn) Read(b []byte) (int, error) {
	for len(c.readBuf) == 0 {
		p, err := c.side.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, err
		}
		c.readBuf = p
	}
	n := copy(b, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

// Write sends b as one or more data frames.
func (c *Conn) Write(b []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	written := 0
	for len(b) > 0 {
		n := len(b)
		if n > forward.MaxChunk {
			n = forward.MaxChunk
		}
		if err := c.side.Write(b[:n]); err != nil {
			return written, err
		}
		written += n
		b = b[n:]
	}
	return written, nil
}

// CloseWrite sends the end frame; the exit closes the target and the chain.
func (c *Conn) CloseWrite() error {
	var err error
	c.once.Do(func() {
		c.wmu.Lock()
		defer c.wmu.Unlock()
		if f, ok := c.side.(forward.Finisher); ok {
			err = f.Finish()
		}
	})
	return err
}

// Close sends the end frame if not yet sent, then closes the hop connection.
func (c *Conn) Close() error {
	c.CloseWrite()
	return c.side.Close()
}
