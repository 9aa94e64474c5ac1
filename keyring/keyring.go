// Package keyring rotates through a pool of API keys for one external service.
//
// Free-tier model and search accounts are rate limited per key, so operators
// configure several keys (GEMINI_API_KEY_1..10, TAVILY_API_KEY_1..10). Clients
// read Current before each request and call RotateFrom with that key when the
// service rejects it with a rate-limit or auth error.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/smallnest/researchflow/log"
)

// MaxNumberedKeys is the highest numbered suffix FromEnv looks up.
const MaxNumberedKeys = 10

// ErrNoKeys is returned when a ring has no usable key.
var ErrNoKeys = errors.New("no API keys available")

// Ring is a concurrency-safe round-robin pool of keys.
type Ring struct {
	name   string
	mu     sync.Mutex
	keys   []string
	index  int
	logger log.Logger
}

// New creates a ring named after the service it serves. Empty keys and
// duplicates are dropped while preserving order.
func New(name string, keys []string, logger log.Logger) *Ring {
	seen := make(map[string]bool, len(keys))
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		clean = append(clean, k)
	}
	return &Ring{name: name, keys: clean, logger: log.OrDefault(logger)}
}

// FromEnv collects PREFIX, then PREFIX_1 .. PREFIX_10 using lookup, which is
// usually os.LookupEnv.
func FromEnv(prefix string, lookup func(string) (string, bool)) []string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var keys []string
	if v, ok := lookup(prefix); ok {
		keys = append(keys, v)
	}
	for i := 1; i <= MaxNumberedKeys; i++ {
		if v, ok := lookup(fmt.Sprintf("%s_%d", prefix, i)); ok {
			keys = append(keys, v)
		}
	}
	return keys
}

// Len returns the number of usable keys.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// Current returns the active key.
func (r *Ring) Current() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return "", fmt.Errorf("%s: %w", r.name, ErrNoKeys)
	}
	return r.keys[r.index], nil
}

// RotateFrom advances only if key is still the active one. Concurrent workers
// that hit the same rate limit therefore rotate the ring once, not once each.
func (r *Ring) RotateFrom(key string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.keys) == 0 {
		return ""
	}
	if r.keys[r.index] == key && len(r.keys) > 1 {
		r.index = (r.index + 1) % len(r.keys)
		r.logger.Warn("%s: switching to API key no. %d", r.name, r.index+1)
	}
	return r.keys[r.index]
}
