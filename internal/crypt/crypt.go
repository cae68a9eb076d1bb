// Package crypt defines the envelope-encryption gateway the registration
// workflow uses to protect secrets that transit through tokens and URLs.
// The key itself never leaves the external service.
package crypt

import (
	"context"
	"errors"
)

var (
	ErrEncrypt = errors.New("crypt: encrypt failed")
	ErrDecrypt = errors.New("crypt: decrypt failed")
)

// Gateway encrypts and decrypts small payloads under a managed key.
// Failure of either call is fatal to the enclosing operation: callers
// must abort rather than fall back to plaintext handling.
type Gateway interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}
