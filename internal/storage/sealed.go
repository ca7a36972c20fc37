package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a sealing key in bytes.
const KeySize = chacha20poly1305.KeySize

// ErrSealOpen means stored data could not be authenticated with the key.
var ErrSealOpen = errors.New("storage: sealed value failed authentication")

// Sealed encrypts values with XChaCha20-Poly1305 before handing them to the
// wrapped cache. The key name is bound as associated data, so a value
// copied under another key does not open.
type Sealed struct {
	next Cache
	key  []byte
}

var _ Cache = (*Sealed)(nil)

func NewSealed(next Cache, key []byte) (*Sealed, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", KeySize, len(key))
	}
	return &Sealed{next: next, key: append([]byte(nil), key...)}, nil
}

// ParseKey decodes a hex-encoded sealing key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode sealing key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

func (s *Sealed) Save(ctx context.Context, key string, value []byte) error {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	return s.next.Save(ctx, key, aead.Seal(nonce, nonce, value, []byte(key)))
}

func (s *Sealed) Load(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, ok, err := s.next.Load(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, false, fmt.Errorf("init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, false, ErrSealOpen
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, false, ErrSealOpen
	}
	return plain, true, nil
}
