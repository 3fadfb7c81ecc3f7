// Package authstate persists authenticated browser state per account in a
// bolt database.
package authstate

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketState    = []byte("storage_state")
	bucketAccounts = []byte("accounts")
)

type accountRecord struct {
	Username string    `json:"username"`
	SavedAt  time.Time `json:"savedAt"`
}

// Store implements the registry's Persister over a bolt database.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening auth state db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketState, bucketAccounts} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing auth state db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the storage-state snapshot and the resolved username for the
// account. An empty username is recorded as-is; resolution is best effort.
func (s *Store) Save(account, username string, state []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketState).Put([]byte(account), state); err != nil {
			return fmt.Errorf("storing storage state: %w", err)
		}
		rec, err := json.Marshal(accountRecord{Username: username, SavedAt: time.Now()})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAccounts).Put([]byte(account), rec)
	})
}

// Status reports whether the account has persisted credentials and the
// username they were saved under.
func (s *Store) Status(account string) (bool, string, error) {
	var (
		authenticated bool
		username      string
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get([]byte(account))
		if data == nil {
			return nil
		}
		var rec accountRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decoding account record: %w", err)
		}
		authenticated = tx.Bucket(bucketState).Get([]byte(account)) != nil
		username = rec.Username
		return nil
	})
	return authenticated, username, err
}

// StorageState returns the raw storage-state snapshot saved for the account,
// or nil when none exists.
func (s *Store) StorageState(account string) ([]byte, error) {
	var state []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketState).Get([]byte(account)); data != nil {
			state = append([]byte(nil), data...)
		}
		return nil
	})
	return state, err
}
