package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ErrCodeNotFound is returned when a code was never issued, expired or was already redeemed
var ErrCodeNotFound = errors.New("code not found")

// CodeStore holds short-lived single-use values such as authorization codes
// and OAuth state
type CodeStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Redeem returns the value and removes it; a second call fails
	Redeem(ctx context.Context, key string) (string, error)
	Close()
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryCodeStore is a process-local CodeStore
type MemoryCodeStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCodeStore creates an empty store
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryCodeStore) Put(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = memoryEntry{value: value, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Redeem(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", ErrCodeNotFound
	}
	delete(s.entries, key)
	if s.now().After(e.expires) {
		return "", ErrCodeNotFound
	}
	return e.value, nil
}

func (s *MemoryCodeStore) Close() {}

// ValkeyCodeStore keeps codes in valkey so several dev servers can share them
type ValkeyCodeStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyCodeStore connects to the valkey instance at addr
func NewValkeyCodeStore(addr string) (*ValkeyCodeStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, err
	}
	return &ValkeyCodeStore{client: client, prefix: "learnportal:"}, nil
}

func (s *ValkeyCodeStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Do(ctx, s.client.B().Set().Key(s.prefix+key).Value(value).Ex(ttl).Build()).Error()
}

func (s *ValkeyCodeStore) Redeem(ctx context.Context, key string) (string, error) {
	value, err := s.client.Do(ctx, s.client.B().Getdel().Key(s.prefix+key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *ValkeyCodeStore) Close() {
	s.client.Close()
}
