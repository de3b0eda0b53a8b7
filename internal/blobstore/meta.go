package blobstore

import (
	"errors"

	badger "github.com/dgraph-io/badger/v4"
)

// metaKeyPrefix keeps the free-form metadata keyspace apart from the
// per-blob records.
const metaKeyPrefix = "meta:"

// GetMeta reads one repository-local metadata value, such as the
// discard history head pointer. Missing keys return ErrNotFound.
func (s *Store) GetMeta(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// PutMeta writes one metadata value.
func (s *Store) PutMeta(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaKeyPrefix+key), value)
	})
}

// DeleteMeta removes one metadata value. Deleting a missing key is not
// an error.
func (s *Store) DeleteMeta(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(metaKeyPrefix + key))
	})
}
