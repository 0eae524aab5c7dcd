// Package store defines the portal's persistent key/value space. It plays the
// role browser localStorage plays for the web client: one shared namespace
// with statically known keys per writer.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Keys owned by the session manager.
const (
	KeyAuthToken = "authToken"
	KeyAuthUser  = "authUser"
)

const progressPrefix = "progress_"

// ProgressKey returns the key under which a user's progress snapshot lives.
func ProgressKey(email string) string {
	return progressPrefix + email
}

// ProgressPrefix is the key prefix shared by all progress snapshots.
func ProgressPrefix() string {
	return progressPrefix
}

// Store is a durable string key/value store.
// Removing a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Memory is an in-memory Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
