// Package storage provides the blob persistence layer. Session logs and
// identity state are stored as opaque values under string keys; the KV
// contract is shared by the durable backends and the in-process guest
// store, so callers never branch on the backend in use.
package storage

import "context"

// KV is the minimal contract a blob backend must satisfy. Get returns
// ErrNotFound for absent keys; Delete of an absent key is a no-op.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
