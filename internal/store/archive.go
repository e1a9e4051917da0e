package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/pmll/casefile/internal/model"
)

// MemArchive is an in-process Archive.
type MemArchive struct {
	mu     sync.RWMutex
	events []model.Event
}

// NewMemArchive returns an empty in-process archive.
func NewMemArchive() *MemArchive {
	return &MemArchive{}
}

func (a *MemArchive) Append(_ context.Context, events []model.Event) error {
	a.mu.Lock()
	a.events = append(a.events, events...)
	a.mu.Unlock()
	return nil
}

func (a *MemArchive) Len(_ context.Context) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.events), nil
}

func (a *MemArchive) All(_ context.Context) ([]model.Event, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Event, len(a.events))
	copy(out, a.events)
	return out, nil
}

// MemKeyStore is an in-process KeyStore.
type MemKeyStore struct {
	mu   sync.Mutex
	keys map[string][]byte
}

// NewMemKeyStore returns an empty in-process key store.
func NewMemKeyStore() *MemKeyStore {
	return &MemKeyStore{keys: make(map[string][]byte)}
}

func (k *MemKeyStore) PutKey(_ context.Context, reportID string, key []byte) error {
	if reportID == "" {
		return fmt.Errorf("report id is required")
	}
	k.mu.Lock()
	k.keys[reportID] = append([]byte(nil), key...)
	k.mu.Unlock()
	return nil
}

func (k *MemKeyStore) GetKey(_ context.Context, reportID string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	key, ok := k.keys[reportID]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrKeyNotFound)
	}
	return append([]byte(nil), key...), nil
}

func (k *MemKeyStore) DeleteKey(_ context.Context, reportID string) error {
	k.mu.Lock()
	delete(k.keys, reportID)
	k.mu.Unlock()
	return nil
}

func (k *MemKeyStore) PendingKeys(_ context.Context) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.keys), nil
}
