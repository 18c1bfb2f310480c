package entrylog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/gjump/kvstore"
)

// SnapshotKey is the fixed key the log is persisted under.
const SnapshotKey = "gj_entries"

// Store persists the whole log as one list.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// KVStore serialises the log as a JSON array under a single key.
type KVStore struct {
	kv  kvstore.Store
	key string
}

// NewKVStore returns a Store writing under SnapshotKey.
func NewKVStore(kv kvstore.Store) *KVStore {
	return &KVStore{kv: kv, key: SnapshotKey}
}

// Load returns the persisted list. A missing key is an empty log.
func (s *KVStore) Load(ctx context.Context) ([]Entry, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("entrylog: decode snapshot: %w", err)
	}
	return entries, nil
}

// Save overwrites the persisted list.
func (s *KVStore) Save(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("entrylog: encode snapshot: %w", err)
	}
	return s.kv.Put(ctx, s.key, data)
}
