package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// CipherMode selects how identities are encrypted at rest.
type CipherMode string

const (
	// CipherDeterministic derives the nonce from the plaintext, so equal
	// identities always produce equal ciphertexts. This lets the store keep a
	// unique index on the ciphertext but leaks equality between records.
	CipherDeterministic CipherMode = "deterministic"
	// CipherRandomized uses a fresh nonce per encryption.
	CipherRandomized CipherMode = "randomized"
)

var ErrCiphertext = errors.New("malformed identity ciphertext")

// IdentityCipher encrypts usernames with a store-wide key using AES-256-GCM.
type IdentityCipher struct {
	aead   cipher.AEAD
	macKey []byte
	mode   CipherMode
}

// NewIdentityCipher derives encryption and nonce keys from key with HKDF.
func NewIdentityCipher(key []byte, mode CipherMode) (*IdentityCipher, error) {
	if len(key) == 0 {
		return nil, errors.New("identity key is empty")
	}
	switch mode {
	case "":
		mode = CipherDeterministic
	case CipherDeterministic, CipherRandomized:
	default:
		return nil, fmt.Errorf("unknown identity cipher mode %q", mode)
	}

	kdf := hkdf.New(sha256.New, key, nil, []byte("staff-portal identity v1"))
	encKey := make([]byte, 32)
	macKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, encKey); err != nil {
		return nil, fmt.Errorf("deriving identity key: %w", err)
	}
	if _, err := io.ReadFull(kdf, macKey); err != nil {
		return nil, fmt.Errorf("deriving identity key: %w", err)
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("identity cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("identity cipher: %w", err)
	}

	return &IdentityCipher{aead: aead, macKey: macKey, mode: mode}, nil
}

// Deterministic reports whether equal plaintexts encrypt to equal ciphertexts.
func (c *IdentityCipher) Deterministic() bool {
	return c.mode == CipherDeterministic
}

// Encrypt returns base64(nonce || ciphertext).
func (c *IdentityCipher) Encrypt(identity string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if c.Deterministic() {
		mac := hmac.New(sha256.New, c.macKey)
		mac.Write([]byte(identity))
		copy(nonce, mac.Sum(nil))
	} else if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(identity), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *IdentityCipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCiphertext, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", ErrCiphertext
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCiphertext, err)
	}
	return string(plain), nil
}
