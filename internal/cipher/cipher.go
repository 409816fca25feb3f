// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package cipher encrypts message text at rest. AES-256-GCM with a random
// nonce per message; the key is derived from the configured secret with
// HKDF-SHA256 so operators can rotate a passphrase without handling raw key
// material.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/parleychat/parley/internal/models"
)

// ErrDecrypt is returned for malformed ciphertext or a wrong key. Callers
// map it to "message unavailable" rather than failing the read path.
var ErrDecrypt = errors.New("cipher: decrypt failed")

// hkdfInfo binds derived keys to this usage so the same secret cannot be
// reused for another purpose with the same output.
const hkdfInfo = "parley/message-at-rest/v1"

// Cipher seals and opens message text payloads.
type Cipher struct {
	aead gocipher.AEAD
}

// New derives a 256-bit key from secret and returns a ready Cipher.
func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("cipher: empty secret")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("cipher: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: init aes: %w", err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: init gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext string) (*models.EncryptedText, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cipher: nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return &models.EncryptedText{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Decrypt opens a sealed payload. Any malformed input or authentication
// failure returns an error wrapping ErrDecrypt.
func (c *Cipher) Decrypt(box *models.EncryptedText) (string, error) {
	if box == nil {
		return "", fmt.Errorf("%w: nil payload", ErrDecrypt)
	}

	nonce, err := base64.StdEncoding.DecodeString(box.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: bad nonce encoding", ErrDecrypt)
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: bad nonce length", ErrDecrypt)
	}
	sealed, err := base64.StdEncoding.DecodeString(box.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecrypt)
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
