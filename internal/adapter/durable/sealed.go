package durable

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"bookstore/internal/domain"
)

// ErrUnseal is returned when a sealed value cannot be opened with the
// configured secret.
var ErrUnseal = errors.New("durable: cannot unseal value")

const nonceSize = 24

type sealed struct {
	kv  domain.KV
	key [32]byte
}

// Sealed returns a KV that encrypts values with a key derived from secret
// before handing them to kv.
func Sealed(kv domain.KV, secret []byte) (domain.KV, error) {
	if len(secret) == 0 {
		return nil, errors.New("durable: empty sealing secret")
	}
	s := &sealed{kv: kv}
	r := hkdf.New(sha256.New, secret, nil, []byte("bookstore durable seal v1"))
	if _, err := io.ReadFull(r, s.key[:]); err != nil {
		return nil, fmt.Errorf("durable: derive key: %w", err)
	}
	return s, nil
}

func (s *sealed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	box, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, false, fmt.Errorf("%s: %w", key, ErrUnseal)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, false, fmt.Errorf("%s: %w", key, ErrUnseal)
	}
	return plain, true, nil
}

func (s *sealed) Put(ctx context.Context, key string, value []byte) error {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("durable: nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], value, &nonce, &s.key)
	return s.kv.Put(ctx, key, box)
}

func (s *sealed) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}
