// Package privatestate provides stores for board private state: a
// bbolt-backed store that survives restarts and an in-memory store.
package privatestate

import (
	"context"
	"fmt"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
)

// DefaultStoreName is the bucket private state is kept in.
const DefaultStoreName = "bboard-private-state"

// Compile-time interface check.
var _ bboard.PrivateStateProvider = (*BoltStore)(nil)

// BoltStore keeps private states in one bucket of a bbolt database,
// encoded with cramberry.
type BoltStore struct {
	database *bolt.DB
	bucket   []byte
}

// OpenBolt opens, creating if needed, the database at path and the
// bucket named storeName.
func OpenBolt(ctx context.Context, path, storeName string) (*BoltStore, error) {
	zerolog.Ctx(ctx).Debug().Msgf("opening private state database at %s", path)

	if storeName == "" {
		storeName = DefaultStoreName
	}
	database, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open private state database %s: %w", path, err)
	}

	bucket := []byte(storeName)
	err = database.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return fmt.Errorf("error creating bucket %s: %w", storeName, err)
		}
		return nil
	})
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("error creating database structure: %w", err)
	}
	return &BoltStore{database: database, bucket: bucket}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) (*types.PrivateState, error) {
	var state *types.PrivateState
	err := s.database.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		// bbolt memory is only valid inside the transaction.
		data = append([]byte(nil), data...)
		var ps types.PrivateState
		if err := cramberry.Unmarshal(data, &ps); err != nil {
			return fmt.Errorf("decode private state %s: %w", key, err)
		}
		state = &ps
		return nil
	})
	return state, err
}

func (s *BoltStore) Set(_ context.Context, key string, state types.PrivateState) error {
	data, err := cramberry.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode private state %s: %w", key, err)
	}
	return s.database.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) Remove(_ context.Context, key string) error {
	return s.database.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Keys lists the stored keys in order.
func (s *BoltStore) Keys(_ context.Context) ([]string, error) {
	var keys []string
	err := s.database.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.database.Close()
}
