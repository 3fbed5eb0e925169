package linking

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/osse101/adlink/internal/domain"
)

// Store is the shared key-value store the relay writes callback results
// into and the listener polls. Only the listener deletes entries.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// LRUStore is an in-process Store whose entries expire after a TTL
type LRUStore struct {
	cache *expirable.LRU[string, string]
}

// NewLRUStore creates a store holding at most size entries, each for ttl
func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	if size <= 0 {
		size = DefaultStoreSize
	}
	return &LRUStore{
		cache: expirable.NewLRU[string, string](size, nil, ttl),
	}
}

// Get returns the value for key
func (s *LRUStore) Get(key string) (string, bool) {
	return s.cache.Get(key)
}

// Set stores value under key
func (s *LRUStore) Set(key, value string) {
	s.cache.Add(key, value)
}

// Delete removes key
func (s *LRUStore) Delete(key string) {
	s.cache.Remove(key)
}

// Len returns the number of live entries
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

// CodeKey is the store key for a session's authorization code
func CodeKey(provider domain.Provider, sessionID string) string {
	return fmt.Sprintf(StoreKeyCodeFormat, provider, sessionID)
}

// TimestampKey is the store key for the time a session's code was written
func TimestampKey(provider domain.Provider, sessionID string) string {
	return fmt.Sprintf(StoreKeyTimestampFormat, provider, sessionID)
}

// WriteCallback records a code for sessionID. The code is written before the
// timestamp so a poller that sees both always sees a complete pair.
func WriteCallback(store Store, provider domain.Provider, sessionID, code string, at time.Time) {
	store.Set(CodeKey(provider, sessionID), code)
	store.Set(TimestampKey(provider, sessionID), strconv.FormatInt(at.UnixMilli(), 10))
}
