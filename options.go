package kioku

import (
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/lockfile"
)

const (
	// DefaultMaxDocuments caps how many documents a store holds.
	DefaultMaxDocuments = 10000

	// DefaultK is the number of search results returned when no explicit
	// k is requested.
	DefaultK = 5
)

// Option configures a Store.
type Option func(*Store)

// WithMaxDocuments sets the store's document capacity. Non-positive values
// keep the default.
func WithMaxDocuments(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxDocuments = n
		}
	}
}

// WithObserver sets the observer notified about store trouble.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithPathAuthorizer sets the authorizer consulted before a path is used.
func WithPathAuthorizer(a PathAuthorizer) Option {
	return func(s *Store) {
		if a != nil {
			s.authorizer = a
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLockRetry sets the lock acquisition attempts and backoff window.
func WithLockRetry(attempts uint, initialDelay, maxDelay time.Duration) Option {
	return func(s *Store) {
		s.lockOpts = append(s.lockOpts, lockfile.WithRetry(attempts, initialDelay, maxDelay))
	}
}

// WithLockStaleAfter sets how old a foreign lock must be before the store
// breaks it.
func WithLockStaleAfter(d time.Duration) Option {
	return func(s *Store) {
		s.lockOpts = append(s.lockOpts, lockfile.WithStaleAfter(d))
	}
}

type searchConfig struct {
	k int
}

// SearchOption configures a single Search call.
type SearchOption func(*searchConfig)

// WithK sets how many results the search returns.
func WithK(k int) SearchOption {
	return func(c *searchConfig) {
		c.k = k
	}
}
