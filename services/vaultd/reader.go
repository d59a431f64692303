package vaultd

import (
	"context"
	"sync"
)

// FetchFunc retrieves a point-in-time snapshot of one ledger quantity.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Subscription caches the last successfully fetched snapshot of one query
// and hands fresh values back to refetch callers. Fetches are tagged with a
// generation at issue time; a result whose generation has been superseded by
// a later-issued fetch is discarded instead of overwriting newer state, so a
// refetch issued after a known confirmation always wins over a stale
// in-flight read. A failed fetch keeps the previous snapshot: stale but
// present beats absent.
type Subscription[T any] struct {
	name    string
	fetch   FetchFunc[T]
	metrics *Metrics

	mu        sync.Mutex
	last      T
	has       bool
	installed uint64
	issued    uint64
}

// NewSubscription builds a subscription for the named query.
func NewSubscription[T any](name string, fetch FetchFunc[T], metrics *Metrics) *Subscription[T] {
	return &Subscription[T]{name: name, fetch: fetch, metrics: metrics}
}

// Refetch fetches a fresh snapshot, installs it unless superseded, and
// returns it to the caller so the caller never races the cache.
func (s *Subscription[T]) Refetch(ctx context.Context) (T, error) {
	s.mu.Lock()
	s.issued++
	gen := s.issued
	s.mu.Unlock()

	value, err := s.fetch(ctx)
	s.metrics.RecordFetch(s.name, err)
	if err != nil {
		var zero T
		return zero, err
	}

	s.mu.Lock()
	if gen > s.installed {
		s.installed = gen
		s.last = value
		s.has = true
	}
	s.mu.Unlock()
	return value, nil
}

// Last returns the most recent snapshot, if any fetch has succeeded.
func (s *Subscription[T]) Last() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.has
}

// Invalidate drops the cached snapshot, e.g. when the key the query was
// derived from (the participant address) changes.
func (s *Subscription[T]) Invalidate() {
	s.mu.Lock()
	var zero T
	s.last = zero
	s.has = false
	s.installed = s.issued
	s.mu.Unlock()
}

// Name reports the query name the subscription mirrors.
func (s *Subscription[T]) Name() string { return s.name }
