// Package kioku implements a single-file document store for embedding
// vectors, searched by exhaustive cosine similarity.
//
// A store is one JSON file holding text documents and their fixed-width
// embeddings. Every operation takes an exclusive advisory lock next to the
// file, re-reads it, and replaces it atomically on writes, so multiple
// processes can share a store without a server.
package kioku

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/lockfile"
	"github.com/hyperjump/kioku/internal/ranking"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/vector"
	"github.com/hyperjump/kioku/models"
)

// Store is the library's entry point. Operations serialize on an internal
// mutex; cross-process exclusion comes from the lock file next to the store.
type Store struct {
	mu sync.Mutex

	maxDocuments int
	observer     Observer
	authorizer   PathAuthorizer
	logger       *zap.Logger
	lockOpts     []lockfile.Option
	locks        *lockfile.Manager

	configured    bool
	path          string
	embeddingSize int
	documentCount int
}

// New creates a Store. It is inert until Configure points it at a file.
func New(opts ...Option) *Store {
	s := &Store{
		maxDocuments: DefaultMaxDocuments,
		observer:     NopObserver{},
		authorizer:   AllowAllPaths{},
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locks = lockfile.NewManager(append(s.lockOpts, lockfile.WithLogger(s.logger))...)
	return s
}

// Configure points the store at path with the given embedding size. A
// missing file is created empty; an existing file is validated against the
// requested size and left byte-for-byte untouched when it matches. A zero
// size adopts the existing file's size and is rejected when there is no file
// to adopt from. The parent directory is created if needed.
func (s *Store) Configure(ctx context.Context, path string, embeddingSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A reconfigure that fails must not leave the store pointed at the
	// previous file, so prior state is dropped up front.
	s.configured = false
	s.path = ""
	s.embeddingSize = 0
	s.documentCount = 0

	if strings.TrimSpace(path) == "" {
		return s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: store path is empty", ErrInvalidInput))
	}
	if embeddingSize < 0 {
		return s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: embedding size must be positive, got %d", ErrInvalidInput, embeddingSize))
	}
	if err := s.authorizer.Authorize(path); err != nil {
		return s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return s.fail(SeverityError, "store i/o failed", fmt.Errorf("%w: %w", ErrIO, err))
	}

	token, err := s.locks.Acquire(ctx, abs)
	if err != nil {
		return s.classifyLockError(err)
	}
	defer s.releaseLock(token)

	size := embeddingSize
	file, err := storage.Load(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if size == 0 {
			return s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: embedding size is required to create %s", ErrInvalidInput, abs))
		}
		file = models.NewStoreFile(size)
		if token.Compromised() {
			return s.fail(SeverityError, "lock compromised", fmt.Errorf("%w: lock lost before writing %s", ErrLockCompromised, abs))
		}
		if err := storage.Save(abs, file); err != nil {
			return s.fail(SeverityError, "store save failed", fmt.Errorf("%w: %w", ErrIO, err))
		}
		s.logger.Info("store created",
			zap.String("path", abs),
			zap.Int("embedding_size", size))
	case err != nil:
		return s.classifyLoadError(abs, err)
	default:
		if size == 0 {
			size = file.EmbeddingSize
		} else if file.EmbeddingSize != size {
			return s.fail(SeverityError, "schema mismatch", &SchemaMismatchError{Stored: file.EmbeddingSize, Requested: size})
		}
	}

	if err := s.classifyReleaseError(token.Release()); err != nil {
		return err
	}

	s.path = abs
	s.embeddingSize = size
	s.documentCount = len(file.Documents)
	s.configured = true
	s.logger.Info("store configured",
		zap.String("path", abs),
		zap.Int("embedding_size", size),
		zap.Int("documents", s.documentCount))
	return nil
}

// Add validates and appends a document, then atomically rewrites the store
// file. The on-disk document set is re-read under the lock, so concurrent
// writers from other processes are never overwritten blindly.
func (s *Store) Add(ctx context.Context, content string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConfigured(); err != nil {
		return err
	}
	if err := models.ValidateContent(content); err != nil {
		return s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}
	if err := vector.Validate(embedding, s.embeddingSize); err != nil {
		return s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}
	if s.documentCount >= s.maxDocuments {
		// Advisory fast path; the authoritative count is re-checked under
		// the lock below.
		return s.fail(SeverityWarn, "store full", fmt.Errorf("%w: store holds %d of %d documents", ErrStoreFull, s.documentCount, s.maxDocuments))
	}

	token, err := s.locks.Acquire(ctx, s.path)
	if err != nil {
		return s.classifyLockError(err)
	}
	defer s.releaseLock(token)

	file, err := storage.Load(s.path)
	if err != nil {
		return s.classifyLoadError(s.path, err)
	}
	if file.EmbeddingSize != s.embeddingSize {
		return s.fail(SeverityError, "schema mismatch", &SchemaMismatchError{Stored: file.EmbeddingSize, Requested: s.embeddingSize})
	}
	s.documentCount = len(file.Documents)
	if len(file.Documents) >= s.maxDocuments {
		return s.fail(SeverityWarn, "store full", fmt.Errorf("%w: store holds %d of %d documents", ErrStoreFull, len(file.Documents), s.maxDocuments))
	}

	file.Documents = append(file.Documents, models.NewDocument(content, embedding))
	if token.Compromised() {
		return s.fail(SeverityError, "lock compromised", fmt.Errorf("%w: lock lost before writing %s", ErrLockCompromised, s.path))
	}
	if err := storage.Save(s.path, file); err != nil {
		return s.fail(SeverityError, "store save failed", fmt.Errorf("%w: %w", ErrIO, err))
	}
	s.documentCount = len(file.Documents)

	if err := s.classifyReleaseError(token.Release()); err != nil {
		return err
	}
	s.logger.Debug("document added",
		zap.String("path", s.path),
		zap.Int("documents", s.documentCount))
	return nil
}

// Search reads a consistent snapshot of the store under the lock, then ranks
// every document against the query embedding by cosine similarity and
// returns the top k (DefaultK when unset), best first. Equal scores keep
// their insertion order.
func (s *Store) Search(ctx context.Context, embedding []float32, opts ...SearchOption) (*models.SearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConfigured(); err != nil {
		return nil, err
	}
	cfg := searchConfig{k: DefaultK}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.k < 1 {
		return nil, s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: k must be positive, got %d", ErrInvalidInput, cfg.k))
	}
	if err := vector.Validate(embedding, s.embeddingSize); err != nil {
		return nil, s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: %w", ErrInvalidInput, err))
	}

	start := time.Now()

	token, err := s.locks.Acquire(ctx, s.path)
	if err != nil {
		return nil, s.classifyLockError(err)
	}
	defer s.releaseLock(token)

	file, err := storage.Load(s.path)
	if err != nil {
		return nil, s.classifyLoadError(s.path, err)
	}
	if file.EmbeddingSize != s.embeddingSize {
		return nil, s.fail(SeverityError, "schema mismatch", &SchemaMismatchError{Stored: file.EmbeddingSize, Requested: s.embeddingSize})
	}
	s.documentCount = len(file.Documents)

	// The snapshot is in memory; ranking happens after the lock is gone.
	if err := s.classifyReleaseError(token.Release()); err != nil {
		return nil, err
	}

	ranked := ranking.TopN(ranking.RankDocuments(embedding, file.Documents), cfg.k)
	results := make([]models.SearchResult, 0, len(ranked))
	for i, r := range ranked {
		results = append(results, models.SearchResult{
			Document: r.Document,
			Score:    r.Score,
			Rank:     i + 1,
		})
	}

	resp := &models.SearchResponse{
		Results:   results,
		Total:     len(file.Documents),
		QueryTime: time.Since(start).Milliseconds(),
	}
	s.logger.Debug("search complete",
		zap.String("path", s.path),
		zap.Int("k", cfg.k),
		zap.Int("results", len(results)),
		zap.Int("total", resp.Total),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// Status reports the configured store's shape and size on disk.
type Status struct {
	Path           string `json:"path"`
	EmbeddingSize  int    `json:"embedding_size"`
	Documents      int    `json:"documents"`
	MaxDocuments   int    `json:"max_documents"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
}

// Status reads the store under the lock and reports its current state.
func (s *Store) Status(ctx context.Context) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConfigured(); err != nil {
		return nil, err
	}

	token, err := s.locks.Acquire(ctx, s.path)
	if err != nil {
		return nil, s.classifyLockError(err)
	}
	defer s.releaseLock(token)

	file, err := storage.Load(s.path)
	if err != nil {
		return nil, s.classifyLoadError(s.path, err)
	}
	s.documentCount = len(file.Documents)

	usage, err := storage.UsageBytes(s.path)
	if err != nil {
		return nil, s.fail(SeverityError, "store i/o failed", fmt.Errorf("%w: %w", ErrIO, err))
	}

	if err := s.classifyReleaseError(token.Release()); err != nil {
		return nil, err
	}

	return &Status{
		Path:           s.path,
		EmbeddingSize:  file.EmbeddingSize,
		Documents:      len(file.Documents),
		MaxDocuments:   s.maxDocuments,
		DiskUsageBytes: usage,
	}, nil
}

// ReleaseCurrentLock releases the process's active store lock, if any.
// Shutdown paths call it so an interrupted operation does not strand a lock
// on disk.
func ReleaseCurrentLock() error {
	return lockfile.ReleaseCurrent()
}

func (s *Store) requireConfigured() error {
	if !s.configured {
		return s.fail(SeverityWarn, "invalid input", fmt.Errorf("%w: store is not configured", ErrInvalidInput))
	}
	return nil
}

func (s *Store) classifyLockError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, lockfile.ErrCompromised):
		classified := fmt.Errorf("%w: %w", ErrLockCompromised, err)
		s.notify(SeverityError, "lock compromised", classified)
		return classified
	case errors.Is(err, lockfile.ErrHeld):
		classified := fmt.Errorf("%w: %w", ErrLockContention, err)
		s.notify(SeverityWarn, "lock contention", classified)
		return classified
	default:
		return s.fail(SeverityError, "lock i/o failed", fmt.Errorf("%w: %w", ErrIO, err))
	}
}

func (s *Store) classifyLoadError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		classified := fmt.Errorf("%w: %s", ErrNotFound, path)
		s.notify(SeverityWarn, "store file missing", classified)
		return classified
	case errors.Is(err, storage.ErrCorrupt):
		classified := fmt.Errorf("%w: %w", ErrCorruptStore, err)
		s.notify(SeverityError, "store file corrupt", classified)
		return classified
	default:
		return s.fail(SeverityError, "store i/o failed", fmt.Errorf("%w: %w", ErrIO, err))
	}
}

// classifyReleaseError handles the explicit release that ends an operation.
// A compromised lock surfaces, since exclusivity was already lost while the
// operation ran. Any other release failure must not mask the outcome of work
// that has completed, so it is reported to the observer and swallowed.
func (s *Store) classifyReleaseError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lockfile.ErrCompromised):
		return s.fail(SeverityError, "lock compromised", fmt.Errorf("%w: %w", ErrLockCompromised, err))
	default:
		s.notify(SeverityWarn, "lock release failed", err)
		s.logger.Warn("lock release failed", zap.Error(err))
		return nil
	}
}

// fail reports an operation failure to the observer before returning it.
func (s *Store) fail(severity Severity, msg string, err error) error {
	s.notify(severity, msg, err)
	return err
}

// notify forwards to the observer, containing any panic so a broken
// observer cannot fail a store operation.
func (s *Store) notify(severity Severity, msg string, cause error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("observer panicked", zap.Any("panic", r))
		}
	}()
	s.observer.Notify(severity, msg, cause)
}

// releaseLock is the deferred safety net behind the explicit Release calls.
// Double release is a no-op; failures here are logged, not returned.
func (s *Store) releaseLock(token *lockfile.Token) {
	if err := token.Release(); err != nil {
		s.logger.Warn("lock release failed", zap.Error(err))
	}
}
