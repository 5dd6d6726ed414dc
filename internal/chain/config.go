// Package chain decides, per accepted connection, where it goes next and how
// the two legs are framed.
package chain

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"dev.c0redev.nfchain/internal/crypto"
)

// DefaultListenAddress when none is configured.
const DefaultListenAddress = "127.0.0.1:8000"

// DefaultDialTimeout for next-hop dials.
const DefaultDialTimeout = 10 * time.Second

// Config: immutable process configuration shared by all connections.
type Config struct {
	ListenAddress string
	// StaticLinkNodes: static relay hops. Only the first is dialed.
	StaticLinkNodes []string
	// EntryLinkNodes: chain built with handshakes for plain clients.
	EntryLinkNodes []string
	// Socks: entry accepts SOCKS5 CONNECT; the target becomes the last hop.
	Socks       bool
	Cipher      crypto.Cipher
	DialTimeout time.Duration
}

// Validate checks hop lists and fills defaults.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Cipher == nil {
		c.Cipher = crypto.None{}
	}
	if len(c.StaticLinkNodes) > 0 && (len(c.EntryLinkNodes) > 0 || c.Socks) {
		return errors.New("static link and entry chain are mutually exclusive")
	}
	for _, hops := range [][]string{c.StaticLinkNodes, c.EntryLinkNodes} {
		for _, h := range hops {
			if strings.TrimSpace(h) == "" {
				return errors.New("empty hop address")
			}
		}
	}
	return nil
}

// Mode selects the relay mode. Evaluated per connection from the same config.
func (c *Config) Mode() Mode {
	switch {
	case len(c.EntryLinkNodes) > 0 || c.Socks:
		return Entry{Link: c.EntryLinkNodes, Socks: c.Socks}
	case len(c.StaticLinkNodes) > 0:
		return StaticRelay{Next: c.StaticLinkNodes}
	}
	return HandshakeDriven{}
}

// Mode: StaticRelay, HandshakeDriven or Entry.
type Mode interface {
	String() string
	mode()
}

// StaticRelay: forward framed traffic to Next[0] without a handshake.
type StaticRelay struct {
	Next []string
}

// HandshakeDriven: the first frame on each connection names the chain.
type HandshakeDriven struct{}

// Entry: accept plain clients and build Link with handshakes.
type Entry struct {
	Link  []string
	Socks bool
}

func (StaticRelay) mode()     {}
func (HandshakeDriven) mode() {}
func (Entry) mode()           {}

func (m StaticRelay) String() string { return "static(" + strings.Join(m.Next, ",") + ")" }

func (HandshakeDriven) String() string { return "handshake" }

func (m Entry) String() string {
	if m.Socks {
		return "entry+socks(" + strings.Join(m.Link, ",") + ")"
	}
	return "entry(" + strings.Join(m.Link, ",") + ")"
}

// SplitHops parses a comma-separated hop list, dropping blanks.
func SplitHops(s string) []string {
	var hops []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hops = append(hops, h)
		}
	}
	return hops
}
