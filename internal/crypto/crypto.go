// Package crypto: payload transforms applied where bytes cross a plain/framed boundary.
package crypto

import (
	"strings"

	"github.com/pkg/errors"

	"dev.c0redev.nfchain/internal/fault"
)

// Direction: which way payload crosses the protocol boundary.
type Direction uint8

const (
	// IntoProtocol: plain bytes about to become a frame body (encrypt).
	IntoProtocol Direction = iota
	// OutOfProtocol: frame body about to reach the plain side (decrypt).
	OutOfProtocol
)

func (d Direction) String() string {
	if d == IntoProtocol {
		return "into"
	}
	return "out"
}

// Algorithm selector names.
const (
	AlgNone     = "none"
	AlgRC4      = "rc4"
	AlgAES      = "aes"
	AlgChaCha20 = "chacha20"
)

// KeySize for aes and chacha20.
const KeySize = 32

// DefaultIV fixed AES-CBC IV (16 bytes).
const DefaultIV = "qwertyuiopASDFGH"

// Cipher: one configured algorithm. Implementations: None, RC4, AES256CBC, ChaCha20.
type Cipher interface {
	// Name algorithm selector.
	Name() string
	// Seal transforms plain bytes into a frame body.
	Seal(plain []byte) ([]byte, error)
	// Open transforms a frame body back into plain bytes.
	Open(body []byte) ([]byte, error)
}

// Transform applies c in direction dir. Errors are fault.KindCrypto.
func Transform(dir Direction, c Cipher, b []byte) ([]byte, error) {
	if c == nil {
		return b, nil
	}
	var out []byte
	var err error
	if dir == IntoProtocol {
		out, err = c.Seal(b)
	} else {
		out, err = c.Open(b)
	}
	if err != nil {
		return nil, fault.Crypto(err, c.Name()+" "+dir.String()+" transform")
	}
	return out, nil
}

// New resolves an algorithm selector and key. Empty alg = none.
func New(alg, key string) (Cipher, error) {
	switch strings.ToLower(strings.TrimSpace(alg)) {
	case "", AlgNone:
		return None{}, nil
	case AlgRC4:
		if key == "" {
			return nil, errors.New("rc4 needs a key")
		}
		return NewRC4([]byte(key))
	case AlgAES:
		return NewAES256CBC([]byte(key), []byte(DefaultIV))
	case AlgChaCha20:
		return NewChaCha20([]byte(key), []byte(defaultNonce))
	}
	return nil, errors.Errorf("unknown crypt algorithm %q (none, rc4, aes, chacha20)", alg)
}

// None: identity.
type None struct{}

func (None) Name() string                  { return AlgNone }
func (None) Seal(b []byte) ([]byte, error) { return b, nil }
func (None) Open(b []byte) ([]byte, error) { return b, nil }
