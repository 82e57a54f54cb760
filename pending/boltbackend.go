package pending

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketIncompleteTokenTxs = []byte("incomplete_token_txs")

// BoltBackend persists pending records in a bbolt database, one JSON value
// per key.
type BoltBackend struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Backend = (*BoltBackend)(nil)

// OpenBoltBackend opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltBackend(dbPath string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("pending: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("pending: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketIncompleteTokenTxs); err != nil {
			return fmt.Errorf("boltbackend: create bucket %q: %w", bucketIncompleteTokenTxs, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pending: create bucket: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

// Close closes the underlying database.
func (b *BoltBackend) Close() error { return b.db.Close() }

// Put stores p under key.
func (b *BoltBackend) Put(key Key, p Params) error {
	if err := key.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("boltbackend: encode record: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketIncompleteTokenTxs).Put(key.bytes(), data); err != nil {
			return fmt.Errorf("boltbackend: put record: %w", err)
		}
		return nil
	})
}

// Get returns the record for key.
func (b *BoltBackend) Get(key Key) (Params, error) {
	var p Params
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIncompleteTokenTxs).Get(key.bytes())
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptRecord, err)
		}
		return nil
	})
	if err != nil {
		return Params{}, err
	}
	return p, nil
}

// Delete removes the record for key.
func (b *BoltBackend) Delete(key Key) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketIncompleteTokenTxs).Delete(key.bytes()); err != nil {
			return fmt.Errorf("boltbackend: delete record: %w", err)
		}
		return nil
	})
}

// LoadAll returns every stored record. Records that fail to decode are
// skipped and reported in the returned error alongside the good ones.
func (b *BoltBackend) LoadAll() (map[Key]Params, error) {
	out := make(map[Key]Params)
	var bad int
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIncompleteTokenTxs).ForEach(func(k, v []byte) error {
			key, err := keyFromBytes(k)
			if err != nil {
				bad++
				return nil
			}
			var p Params
			if err := json.Unmarshal(v, &p); err != nil {
				bad++
				return nil
			}
			out[key] = p
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltbackend: load: %w", err)
	}
	if bad > 0 {
		return out, fmt.Errorf("%w: %d unreadable records skipped", ErrCorruptRecord, bad)
	}
	return out, nil
}
