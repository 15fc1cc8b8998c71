// Package lockfile provides exclusive advisory locking for store files, with
// stale lock reclaim and detection of outside interference while held.
package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Suffix is appended to the store path to form the lock path.
const Suffix = ".lock"

const (
	DefaultAttempts     = 5
	DefaultInitialDelay = 50 * time.Millisecond
	DefaultMaxDelay     = 500 * time.Millisecond
	DefaultStaleAfter   = 30 * time.Second

	backoffFactor = 2
)

var (
	// ErrHeld reports that another process holds the lock and it is not
	// stale enough to break.
	ErrHeld = errors.New("lock held by another process")

	// ErrCompromised reports that the lock file was removed or rewritten
	// by someone else while we held it.
	ErrCompromised = errors.New("lock compromised")
)

// ownerRecord is the lock file's content, identifying the holder.
type ownerRecord struct {
	Token      string `json:"token"`
	PID        int    `json:"pid"`
	Hostname   string `json:"hostname"`
	AcquiredAt int64  `json:"acquiredAt"`
}

// Manager acquires locks with bounded exponential backoff.
type Manager struct {
	attempts     uint
	initialDelay time.Duration
	maxDelay     time.Duration
	staleAfter   time.Duration
	logger       *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetry sets the number of acquisition attempts and the backoff window.
func WithRetry(attempts uint, initialDelay, maxDelay time.Duration) Option {
	return func(m *Manager) {
		if attempts < 1 {
			attempts = 1
		}
		m.attempts = attempts
		if initialDelay > 0 {
			m.initialDelay = initialDelay
		}
		if maxDelay > 0 {
			m.maxDelay = maxDelay
		}
	}
}

// WithStaleAfter sets how old a foreign lock must be before it is broken.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.staleAfter = d
		}
	}
}

// WithLogger sets a logger for lock lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a lock manager with the default retry policy.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		attempts:     DefaultAttempts,
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
		staleAfter:   DefaultStaleAfter,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LockPath returns the lock file path for the given store path.
func LockPath(storePath string) string {
	return storePath + Suffix
}

// Acquire obtains the exclusive lock for storePath, retrying with
// exponential backoff while another process holds it. It returns ErrHeld
// (wrapped) when all attempts are exhausted, or ctx's error when the
// context ends first. On success the returned token is registered as the
// process's active lock.
func (m *Manager) Acquire(ctx context.Context, storePath string) (*Token, error) {
	lockPath := LockPath(storePath)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.initialDelay
	policy.MaxInterval = m.maxDelay
	policy.Multiplier = backoffFactor
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	var token *Token
	op := func() error {
		t, err := m.tryAcquire(lockPath)
		if err != nil {
			if errors.Is(err, ErrHeld) {
				return err
			}
			return backoff.Permanent(err)
		}
		token = t
		return nil
	}
	notify := func(err error, delay time.Duration) {
		m.logger.Debug("lock busy, backing off",
			zap.String("path", lockPath),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(m.attempts-1)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}

	token.watch()
	current.Store(token)
	return token, nil
}

// tryAcquire makes a single acquisition attempt. A fresh foreign lock yields
// ErrHeld; a lock past the staleness window is broken and re-acquired.
func (m *Manager) tryAcquire(lockPath string) (*Token, error) {
	token, err := m.createLock(lockPath)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, err
	}

	info, statErr := os.Stat(lockPath)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			// Holder released between our create and stat.
			return nil, fmt.Errorf("%w: lock vanished mid-check", ErrHeld)
		}
		return nil, statErr
	}

	age := time.Since(info.ModTime())
	if age < m.staleAfter {
		return nil, fmt.Errorf("%w: %s (age %s)", ErrHeld, lockPath, age.Round(time.Millisecond))
	}

	// The holder has not touched the lock within the staleness window;
	// assume it died and break the lock.
	m.logger.Warn("breaking stale lock",
		zap.String("path", lockPath),
		zap.Duration("age", age))
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	token, err = m.createLock(lockPath)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Another process won the race for the broken lock.
			return nil, fmt.Errorf("%w: lost reclaim race for %s", ErrHeld, lockPath)
		}
		return nil, err
	}
	return token, nil
}

// createLock creates the lock file exclusively and writes the owner record.
func (m *Manager) createLock(lockPath string) (*Token, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	hostname, _ := os.Hostname()
	record := ownerRecord{
		Token:      id,
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		f.Close()
		os.Remove(lockPath)
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(lockPath)
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(lockPath)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(lockPath)
		return nil, err
	}

	m.logger.Debug("lock acquired", zap.String("path", lockPath), zap.String("token", id))
	return newToken(lockPath, id, m.logger), nil
}
