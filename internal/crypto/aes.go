package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"

	"github.com/pkg/errors"
)

// AES256CBC: PKCS#7 padded CBC with a fixed IV. Deterministic per plaintext.
type AES256CBC struct {
	block cipher.Block
	iv    []byte
}

// NewAES256CBC key 32 bytes, iv 16 bytes.
func NewAES256CBC(key, iv []byte) (*AES256CBC, error) {
	if len(key) != KeySize {
		return nil, errors.Errorf("aes key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.Errorf("aes iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &AES256CBC{block: block, iv: append([]byte(nil), iv...)}, nil
}

func (c *AES256CBC) Name() string { return AlgAES }

// Seal encrypts; output is a multiple of the block size, never empty.
func (c *AES256CBC) Seal(plain []byte) ([]byte, error) {
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	buf := make([]byte, len(plain)+pad)
	copy(buf, plain)
	copy(buf[len(plain):], bytes.Repeat([]byte{byte(pad)}, pad))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(buf, buf)
	return buf, nil
}

// Open decrypts and strips padding.
func (c *AES256CBC) Open(body []byte) ([]byte, error) {
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, errors.Errorf("aes ciphertext length %d is not a positive multiple of %d", len(body), aes.BlockSize)
	}
	buf := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(buf, body)
	pad := int(buf[len(buf)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, errors.New("aes bad padding")
	}
	for _, b := range buf[len(buf)-pad:] {
		if int(b) != pad {
			return nil, errors.New("aes bad padding")
		}
	}
	return buf[:len(buf)-pad], nil
}
