package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "estate-agent/errors"
)

const boltBucket = "blobs"

// BoltStore persists blobs in a single-file bbolt database. The handle
// stays open for the process lifetime; Close releases the file lock.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.WrapErrorf(err, "create bolt directory for %s", path)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, apperrors.WrapErrorf(err, "open bolt store at %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, apperrors.WrapError(err, "create bolt bucket")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return apperrors.ErrNotFound
		}
		value := b.Get([]byte(key))
		if value == nil {
			return apperrors.ErrNotFound
		}
		// Bolt values are only valid inside the transaction.
		out = make([]byte, len(value))
		copy(out, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), value)
	})
	if err != nil {
		return apperrors.WrapErrorf(apperrors.ErrStorageOperation, "put %s: %v", key, err)
	}
	return nil
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete([]byte(key))
	})
	if err != nil {
		return apperrors.WrapErrorf(apperrors.ErrStorageOperation, "delete %s: %v", key, err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
