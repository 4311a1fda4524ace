// Package crypto seals the sensitive subset of a payment request into an
// opaque blob for storage.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/payguard/transaction-engine/internal/models"
)

// Codec encodes and decodes payment instruments. Implementations must use
// authenticated encryption; decode fails on any tampering.
type Codec interface {
	Encode(instrument models.PaymentInstrument) (string, error)
	Decode(blob string) (models.PaymentInstrument, error)
}

// AEADCodec seals instruments with XChaCha20-Poly1305. The envelope is
// base64(nonce || ciphertext).
type AEADCodec struct {
	key []byte
}

// NewAEADCodec creates a codec from a 32-byte key.
func NewAEADCodec(key []byte) (*AEADCodec, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("codec key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return &AEADCodec{key: cp}, nil
}

// NewEphemeralCodec creates a codec with a random key. Sealed data does not
// survive a restart; intended for development and tests.
func NewEphemeralCodec() (*AEADCodec, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate codec key: %w", err)
	}
	return &AEADCodec{key: key}, nil
}

// Encode seals the instrument into an opaque base64 envelope.
func (c *AEADCodec) Encode(instrument models.PaymentInstrument) (string, error) {
	plaintext, err := json.Marshal(instrument)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payment data: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode opens a sealed envelope. It fails if the blob was produced with a
// different key or modified in any way.
func (c *AEADCodec) Decode(blob string) (models.PaymentInstrument, error) {
	var instrument models.PaymentInstrument

	sealed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return instrument, fmt.Errorf("malformed payment data envelope: %w", err)
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return instrument, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize() {
		return instrument, fmt.Errorf("malformed payment data envelope: too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return instrument, fmt.Errorf("payment data authentication failed: %w", err)
	}

	if err := json.Unmarshal(plaintext, &instrument); err != nil {
		return instrument, fmt.Errorf("failed to deserialize payment data: %w", err)
	}

	return instrument, nil
}

var _ Codec = (*AEADCodec)(nil)
