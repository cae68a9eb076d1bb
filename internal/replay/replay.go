// Package replay provides the optional consumed-token set. The token
// codec stays pure; replay bookkeeping is an explicit external
// collaborator keyed by the token's signature segment. Without a
// configured store, tokens remain valid until their embedded expiry.
package replay

import (
	"context"
	"sync"
)

// Store records token consumption. Consume returns true the first time
// a fingerprint is seen and false on every later attempt. Release
// un-consumes a fingerprint so a link stays usable after a resolution
// attempt that failed before reaching a terminal outcome.
type Store interface {
	Consume(ctx context.Context, fingerprint string) (bool, error)
	Release(ctx context.Context, fingerprint string) error
}

// None is the no-op store used when replay protection is not
// configured: every consumption looks like the first.
type None struct{}

func (None) Consume(ctx context.Context, fingerprint string) (bool, error) {
	return true, nil
}

func (None) Release(ctx context.Context, fingerprint string) error { return nil }

// InMemory implements Store for tests and single-process deployments.
type InMemory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{seen: make(map[string]struct{})}
}

func (s *InMemory) Consume(ctx context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[fingerprint]; ok {
		return false, nil
	}
	s.seen[fingerprint] = struct{}{}
	return true, nil
}

func (s *InMemory) Release(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, fingerprint)
	return nil
}
