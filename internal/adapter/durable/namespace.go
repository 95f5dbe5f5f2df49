package durable

import (
	"context"

	"bookstore/internal/domain"
)

type namespaced struct {
	kv     domain.KV
	prefix string
}

// Namespace returns a KV that stores every key under prefix in kv.
func Namespace(kv domain.KV, prefix string) domain.KV {
	return &namespaced{kv: kv, prefix: prefix + "/"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespaced) Put(ctx context.Context, key string, value []byte) error {
	return n.kv.Put(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.prefix+key)
}
