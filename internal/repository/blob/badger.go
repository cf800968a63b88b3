package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// SoundKeyPrefix namespaces uploaded sounds.
const SoundKeyPrefix = "sound/"

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("blob not found")
	// ErrEmpty is returned when storing an empty sound.
	ErrEmpty = errors.New("blob is empty")
	// ErrNotSound is returned when a key outside SoundKeyPrefix is passed to DeleteSound.
	ErrNotSound = errors.New("not an uploaded sound")
)

// Store persists blobs in a Badger database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenInMemory opens a store that keeps everything in memory.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory blob store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)

		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}

		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	return value, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

// PutSound stores an uploaded sound under a generated key and returns the key.
func (s *Store) PutSound(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}

	key := SoundKeyPrefix + uuid.NewString()
	if err := s.Put(ctx, key, data); err != nil {
		return "", err
	}

	return key, nil
}

// DeleteSound removes an uploaded sound. Keys outside SoundKeyPrefix are refused.
func (s *Store) DeleteSound(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, SoundKeyPrefix) {
		return fmt.Errorf("%w: %s", ErrNotSound, key)
	}

	return s.Delete(ctx, key)
}
