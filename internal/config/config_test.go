package config

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/assert"

	"dev.c0redev.nfchain/internal/chain"
	"dev.c0redev.nfchain/internal/crypto"
)

const key32 = "1234567890qwertyuiopasdfghjklzxc"

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "node.toml")
	assert.NilError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefaults(t *testing.T) {
	n, err := Parse(nil, &bytes.Buffer{})
	assert.NilError(t, err)
	assert.Equal(t, n.Chain.ListenAddress, chain.DefaultListenAddress)
	assert.Equal(t, n.Chain.DialTimeout, chain.DefaultDialTimeout)
	assert.Equal(t, n.Chain.Cipher.Name(), crypto.AlgNone)
	assert.Equal(t, n.Chain.Mode().String(), "handshake")
	assert.Assert(t, !n.Debug)
}

func TestFlags(t *testing.T) {
	n, err := Parse([]string{"-l", "0.0.0.0:9000", "-L", "a:1, b:2", "-c", "aes", "-k", key32, "-d"}, &bytes.Buffer{})
	assert.NilError(t, err)
	assert.Equal(t, n.Chain.ListenAddress, "0.0.0.0:9000")
	assert.DeepEqual(t, n.Chain.StaticLinkNodes, []string{"a:1", "b:2"})
	assert.Equal(t, n.Chain.Cipher.Name(), crypto.AlgAES)
	assert.Assert(t, n.Debug)
	assert.Equal(t, n.Chain.Mode().String(), "static(a:1,b:2)")
}

func TestLongFlags(t *testing.T) {
	n, err := Parse([]string{"-entry", "a:1,t:80", "-crypt", "rc4", "-key", "k", "-dial-timeout", "3s", "-ledger", "x.db"}, &bytes.Buffer{})
	assert.NilError(t, err)
	assert.DeepEqual(t, n.Chain.EntryLinkNodes, []string{"a:1", "t:80"})
	assert.Equal(t, n.Chain.DialTimeout, 3*time.Second)
	assert.Equal(t, n.Ledger, "x.db")
	assert.Equal(t, n.Chain.Cipher.Name(), crypto.AlgRC4)
}

func TestFileWithFlagOverride(t *testing.T) {
	p := writeFile(t, `
listen = "127.0.0.1:7000"
entry = ["a:1"]
socks = true
crypt = "chacha20"
key = "`+key32+`"
log_file = "/tmp/nfchain.log"
proxy_protocol = true
dial_timeout = "2s"
`)
	n, err := Parse([]string{"-config", p, "-l", "127.0.0.1:7001"}, &bytes.Buffer{})
	assert.NilError(t, err)
	assert.Equal(t, n.Chain.ListenAddress, "127.0.0.1:7001")
	assert.DeepEqual(t, n.Chain.EntryLinkNodes, []string{"a:1"})
	assert.Assert(t, n.Chain.Socks)
	assert.Equal(t, n.Chain.Cipher.Name(), crypto.AlgChaCha20)
	assert.Equal(t, n.LogFile, "/tmp/nfchain.log")
	assert.Assert(t, n.ProxyProtocol)
	assert.Equal(t, n.Chain.DialTimeout, 2*time.Second)
}

func TestEnvKey(t *testing.T) {
	t.Setenv(EnvKey, key32)
	n, err := Parse([]string{"-c", "aes"}, &bytes.Buffer{})
	assert.NilError(t, err)
	assert.Equal(t, n.Chain.Cipher.Name(), crypto.AlgAES)
}

func TestErrors(t *testing.T) {
	_, err := Parse([]string{"-c", "aes", "-k", "short"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "32 bytes")

	_, err = Parse([]string{"-L", "a:1", "-E", "b:2"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = Parse([]string{"-c", "blowfish"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown crypt")

	_, err = Parse([]string{"extra"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unexpected arguments")

	_, err = Parse([]string{"-h"}, &bytes.Buffer{})
	assert.Equal(t, err, flag.ErrHelp)

	p := writeFile(t, "listen = \"x:1\"\nlsten = \"typo\"\n")
	_, err = Parse([]string{"-config", p}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown keys lsten")

	_, err = Parse([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "missing.toml")
}
