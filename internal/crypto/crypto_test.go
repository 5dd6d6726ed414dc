package crypto

import (
	"bytes"
	"testing"

	"gotest.tools/assert"

	"dev.c0redev.nfchain/internal/fault"
)

const testKey = "1234567890qwertyuiopasdfghjklzxc"

func TestRC4SelfInverse(t *testing.T) {
	for _, key := range []string{"key", "k", testKey} {
		c, err := New(AlgRC4, key)
		assert.NilError(t, err)
		for _, data := range [][]byte{[]byte("luna"), {}, bytes.Repeat([]byte{0xab}, 4096)} {
			once, err := Transform(IntoProtocol, c, data)
			assert.NilError(t, err)
			if len(data) > 0 {
				assert.Assert(t, !bytes.Equal(once, data))
			}
			// same call, either direction, undoes itself
			twice, err := Transform(IntoProtocol, c, once)
			assert.NilError(t, err)
			assert.DeepEqual(t, twice, data)
			back, err := Transform(OutOfProtocol, c, once)
			assert.NilError(t, err)
			assert.DeepEqual(t, back, data)
		}
	}
}

func TestAESRoundTrip(t *testing.T) {
	c, err := New(AlgAES, testKey)
	assert.NilError(t, err)
	for _, msg := range []string{"", "Hello World!", "0123456789abcdef", string(bytes.Repeat([]byte("x"), 1000))} {
		enc, err := Transform(IntoProtocol, c, []byte(msg))
		assert.NilError(t, err)
		assert.Equal(t, len(enc)%16, 0)
		assert.Assert(t, len(enc) > len(msg))
		dec, err := Transform(OutOfProtocol, c, enc)
		assert.NilError(t, err)
		assert.Equal(t, string(dec), msg)
	}
}

func TestAESDeterministic(t *testing.T) {
	c, err := NewAES256CBC([]byte(testKey), []byte(DefaultIV))
	assert.NilError(t, err)
	a, _ := c.Seal([]byte("ping"))
	b, _ := c.Seal([]byte("ping"))
	assert.DeepEqual(t, a, b)
}

func TestAESWrongDirectionCorrupts(t *testing.T) {
	c, _ := New(AlgAES, testKey)
	// decrypting plaintext is not the inverse of anything useful
	out, err := Transform(OutOfProtocol, c, []byte("0123456789abcdef"))
	if err == nil {
		assert.Assert(t, string(out) != "0123456789abcdef")
	} else {
		assert.Assert(t, fault.Is(err, fault.KindCrypto))
	}
}

func TestAESWrongKey(t *testing.T) {
	good, _ := New(AlgAES, testKey)
	bad, _ := New(AlgAES, "zyxwvutsrqponmlkjihgfedcba987654")
	enc, err := Transform(IntoProtocol, good, []byte("ping"))
	assert.NilError(t, err)
	dec, err := Transform(OutOfProtocol, bad, enc)
	if err == nil {
		assert.Assert(t, string(dec) != "ping")
	} else {
		assert.Assert(t, fault.Is(err, fault.KindCrypto))
	}
}

func TestAESBadCiphertext(t *testing.T) {
	c, _ := New(AlgAES, testKey)
	_, err := Transform(OutOfProtocol, c, []byte("short"))
	assert.Assert(t, fault.Is(err, fault.KindCrypto), "got %v", err)
	_, err = Transform(OutOfProtocol, c, nil)
	assert.Assert(t, fault.Is(err, fault.KindCrypto), "got %v", err)
}

func TestChaCha20SelfInverse(t *testing.T) {
	c, err := New(AlgChaCha20, testKey)
	assert.NilError(t, err)
	enc, err := Transform(IntoProtocol, c, []byte("ping"))
	assert.NilError(t, err)
	assert.Assert(t, string(enc) != "ping")
	dec, err := Transform(OutOfProtocol, c, enc)
	assert.NilError(t, err)
	assert.Equal(t, string(dec), "ping")
}

func TestNewValidation(t *testing.T) {
	c, err := New("", "")
	assert.NilError(t, err)
	assert.Equal(t, c.Name(), AlgNone)
	c, err = New("NONE", "ignored")
	assert.NilError(t, err)
	out, _ := Transform(IntoProtocol, c, []byte("same"))
	assert.Equal(t, string(out), "same")

	_, err = New(AlgAES, "too-short")
	assert.ErrorContains(t, err, "32 bytes")
	_, err = New(AlgChaCha20, "too-short")
	assert.ErrorContains(t, err, "32 bytes")
	_, err = New(AlgRC4, "")
	assert.ErrorContains(t, err, "needs a key")
	_, err = New("des", testKey)
	assert.ErrorContains(t, err, "unknown crypt algorithm")
}

func TestTransformNilCipher(t *testing.T) {
	out, err := Transform(OutOfProtocol, nil, []byte("raw"))
	assert.NilError(t, err)
	assert.Equal(t, string(out), "raw")
}
