package crypto

import (
	"crypto/rc4"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20"
)

// defaultNonce fixed ChaCha20 nonce (12 bytes).
const defaultNonce = "nfchain-once"

// RC4: fresh keystream per call, so Seal and Open are the same operation.
type RC4 struct {
	key []byte
}

// NewRC4 validates key (1..256 bytes).
func NewRC4(key []byte) (*RC4, error) {
	if _, err := rc4.NewCipher(key); err != nil {
		return nil, errors.Wrap(err, "rc4 key")
	}
	return &RC4{key: append([]byte(nil), key...)}, nil
}

func (c *RC4) Name() string { return AlgRC4 }

func (c *RC4) Seal(b []byte) ([]byte, error) { return c.xor(b) }

func (c *RC4) Open(b []byte) ([]byte, error) { return c.xor(b) }

func (c *RC4) xor(b []byte) ([]byte, error) {
	s, err := rc4.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	s.XORKeyStream(out, b)
	return out, nil
}

// ChaCha20: unauthenticated stream cipher, fixed nonce, fresh keystream per call.
type ChaCha20 struct {
	key, nonce []byte
}

// NewChaCha20 key 32 bytes, nonce 12 bytes.
func NewChaCha20(key, nonce []byte) (*ChaCha20, error) {
	if len(key) != chacha20.KeySize {
		return nil, errors.Errorf("chacha20 key must be %d bytes, got %d", chacha20.KeySize, len(key))
	}
	if len(nonce) != chacha20.NonceSize {
		return nil, errors.Errorf("chacha20 nonce must be %d bytes, got %d", chacha20.NonceSize, len(nonce))
	}
	return &ChaCha20{key: append([]byte(nil), key...), nonce: append([]byte(nil), nonce...)}, nil
}

func (c *ChaCha20) Name() string { return AlgChaCha20 }

func (c *ChaCha20) Seal(b []byte) ([]byte, error) { return c.xor(b) }

func (c *ChaCha20) Open(b []byte) ([]byte, error) { return c.xor(b) }

func (c *ChaCha20) xor(b []byte) ([]byte, error) {
	s, err := chacha20.NewUnauthenticatedCipher(c.key, c.nonce)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	s.XORKeyStream(out, b)
	return out, nil
}
