// Package config: node settings from a TOML file, environment and flags.
// Precedence: flags > environment > file > defaults.
package config

import (
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"dev.c0redev.nfchain/internal/chain"
	"dev.c0redev.nfchain/internal/crypto"
)

// EnvKey overrides the file key without putting it on the command line.
const EnvKey = "NFCHAIN_KEY"

// Duration decodes "10s"-style TOML strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// File: the TOML document.
type File struct {
	Listen        string   `toml:"listen"`
	Link          []string `toml:"link"`
	Entry         []string `toml:"entry"`
	Socks         bool     `toml:"socks"`
	Crypt         string   `toml:"crypt"`
	Key           string   `toml:"key"`
	Debug         bool     `toml:"debug"`
	LogFile       string   `toml:"log_file"`
	Ledger        string   `toml:"ledger"`
	ProxyProtocol bool     `toml:"proxy_protocol"`
	DialTimeout   Duration `toml:"dial_timeout"`
}

// LoadFile decodes path. Unknown keys are an error.
func LoadFile(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	if und := md.Undecoded(); len(und) > 0 {
		keys := make([]string, len(und))
		for i, k := range und {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return &f, nil
}

// Node: resolved settings for cmd/node.
type Node struct {
	Chain         chain.Config
	Debug         bool
	LogFile       string
	Ledger        string
	ProxyProtocol bool
}

type flagValues struct {
	config, listen, link, entry, crypt, key, logFile, ledger string
	socks, debug, proxyProtocol                              bool
	dialTimeout                                              time.Duration
}

// Parse reads args (without the program name). flag.ErrHelp is returned as is.
func Parse(args []string, output io.Writer) (*Node, error) {
	fs := flag.NewFlagSet("nfchain-node", flag.ContinueOnError)
	fs.SetOutput(output)
	var v flagValues
	fs.StringVar(&v.config, "config", "", "TOML config file; flags override it")
	for _, name := range []string{"l", "listen"} {
		fs.StringVar(&v.listen, name, chain.DefaultListenAddress, "listen address (quic://host:port for QUIC)")
	}
	for _, name := range []string{"L", "link"} {
		fs.StringVar(&v.link, name, "", "static relay hops, comma separated")
	}
	for _, name := range []string{"E", "entry"} {
		fs.StringVar(&v.entry, name, "", "entry chain, comma separated; last is the target unless -socks")
	}
	fs.BoolVar(&v.socks, "socks", false, "entry accepts SOCKS5 CONNECT")
	for _, name := range []string{"c", "crypt"} {
		fs.StringVar(&v.crypt, name, crypto.AlgNone, "payload crypt: none, rc4, aes, chacha20")
	}
	for _, name := range []string{"k", "key"} {
		fs.StringVar(&v.key, name, "", "crypt key (aes and chacha20: 32 bytes); env "+EnvKey)
	}
	for _, name := range []string{"d", "debug"} {
		fs.BoolVar(&v.debug, name, false, "debug logging (default warn)")
	}
	fs.StringVar(&v.logFile, "log-file", "", "also log to this file, rotated")
	fs.StringVar(&v.ledger, "ledger", "", "sqlite session ledger path")
	fs.BoolVar(&v.proxyProtocol, "proxy-protocol", false, "accept PROXY protocol headers")
	fs.DurationVar(&v.dialTimeout, "dial-timeout", chain.DefaultDialTimeout, "next hop dial timeout")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	f := &File{}
	if v.config != "" {
		var err error
		if f, err = LoadFile(v.config); err != nil {
			return nil, err
		}
	}
	if k, ok := os.LookupEnv(EnvKey); ok {
		f.Key = k
	}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "l", "listen":
			f.Listen = v.listen
		case "L", "link":
			f.Link = chain.SplitHops(v.link)
		case "E", "entry":
			f.Entry = chain.SplitHops(v.entry)
		case "socks":
			f.Socks = v.socks
		case "c", "crypt":
			f.Crypt = v.crypt
		case "k", "key":
			f.Key = v.key
		case "d", "debug":
			f.Debug = v.debug
		case "log-file":
			f.LogFile = v.logFile
		case "ledger":
			f.Ledger = v.ledger
		case "proxy-protocol":
			f.ProxyProtocol = v.proxyProtocol
		case "dial-timeout":
			f.DialTimeout.Duration = v.dialTimeout
		}
	})
	return f.Node()
}

// Node validates f and resolves the cipher.
func (f *File) Node() (*Node, error) {
	c, err := crypto.New(f.Crypt, f.Key)
	if err != nil {
		return nil, err
	}
	n := &Node{
		Chain: chain.Config{
			ListenAddress:   f.Listen,
			StaticLinkNodes: f.Link,
			EntryLinkNodes:  f.Entry,
			Socks:           f.Socks,
			Cipher:          c,
			DialTimeout:     f.DialTimeout.Duration,
		},
		Debug:         f.Debug,
		LogFile:       f.LogFile,
		Ledger:        f.Ledger,
		ProxyProtocol: f.ProxyProtocol,
	}
	if err := n.Chain.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}
