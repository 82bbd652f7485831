package generator

import (
	"errors"
	"strings"
	"sync/atomic"
)

// ErrNoCredentials is returned when a pool is built from no usable keys
var ErrNoCredentials = errors.New("no generation credentials configured")

// CredentialPool is an ordered, cyclic list of API keys with a shared
// cursor. The cursor only moves on Advance; it is never reset.
//
// The cursor is atomic, so concurrent use never corrupts it, but two
// requests that hit a rate limit at the same time may each advance it,
// skipping a key. That is accepted.
type CredentialPool struct {
	keys   []string
	cursor atomic.Uint64
}

// NewCredentialPool builds a pool from keys, dropping blanks
func NewCredentialPool(keys []string) (*CredentialPool, error) {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoCredentials
	}
	return &CredentialPool{keys: cleaned}, nil
}

// Current returns the key at the cursor
func (p *CredentialPool) Current() string {
	return p.keys[p.index(p.cursor.Load())]
}

// Advance moves the cursor to the next key, wrapping around, and returns it
func (p *CredentialPool) Advance() string {
	return p.keys[p.index(p.cursor.Add(1))]
}

// Len returns the number of keys in the pool
func (p *CredentialPool) Len() int {
	return len(p.keys)
}

// Keys returns a copy of the keys in rotation order
func (p *CredentialPool) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

func (p *CredentialPool) index(n uint64) int {
	return int(n % uint64(len(p.keys)))
}
