package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/fluree/fluree-go/pkg/apperr"
)

// valueCipher applies symmetric AES-CTR encryption uniformly to every
// byte-level write of a store and reverses it on read. The key is derived
// from the configured secret; the IV is prepended to the ciphertext.
type valueCipher struct {
	block cipher.Block
}

func newValueCipher(secret string) (*valueCipher, error) {
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidConfiguration, err, "deriving encryption key")
	}

	return &valueCipher{block: block}, nil
}

func (c *valueCipher) Encrypt(plain []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, apperr.Wrap(apperr.KindIOError, err, "generating IV")
	}

	out := make([]byte, aes.BlockSize+len(plain))
	copy(out, iv)
	cipher.NewCTR(c.block, iv).XORKeyStream(out[aes.BlockSize:], plain)

	return out, nil
}

func (c *valueCipher) Decrypt(stored []byte) ([]byte, error) {
	if len(stored) < aes.BlockSize {
		return nil, apperr.New(apperr.KindIntegrity, "encrypted value shorter than IV")
	}

	iv := stored[:aes.BlockSize]
	out := make([]byte, len(stored)-aes.BlockSize)
	cipher.NewCTR(c.block, iv).XORKeyStream(out, stored[aes.BlockSize:])

	return out, nil
}
