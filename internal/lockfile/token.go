package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Token represents ownership of an acquired lock. It watches the lock file
// for outside interference and refuses to release a lock it no longer owns.
type Token struct {
	path   string
	id     string
	logger *zap.Logger

	watcher     *fsnotify.Watcher
	done        chan struct{}
	stopOnce    sync.Once
	compromised atomic.Bool
	released    atomic.Bool
}

func newToken(path, id string, logger *zap.Logger) *Token {
	return &Token{
		path:   path,
		id:     id,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Path returns the lock file path.
func (t *Token) Path() string { return t.path }

// watch monitors the lock file's directory for events touching the lock.
// A watch that cannot be established degrades to an unmonitored lock
// rather than failing the acquisition.
func (t *Token) watch() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.logger.Warn("lock watcher unavailable", zap.Error(err))
		return
	}
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		t.logger.Warn("lock watcher unavailable", zap.String("path", t.path), zap.Error(err))
		_ = watcher.Close()
		return
	}
	t.watcher = watcher
	go t.run()
}

func (t *Token) run() {
	for {
		select {
		case <-t.done:
			return
		case ev, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleEvent(ev)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				t.logger.Debug("lock watcher error", zap.Error(err))
			}
		}
	}
}

func (t *Token) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
		return
	}
	if ev.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
		return
	}
	if t.compromised.CompareAndSwap(false, true) {
		t.logger.Warn("lock file touched by another process",
			zap.String("path", t.path),
			zap.String("op", ev.Op.String()))
	}
}

// Compromised reports whether the lock file was removed or rewritten while
// the lock was held.
func (t *Token) Compromised() bool {
	return t.compromised.Load()
}

// Release verifies ownership and removes the lock file. A compromised or
// stolen lock yields ErrCompromised and whatever is on disk is left alone.
// Releasing twice is a no-op.
func (t *Token) Release() error {
	if !t.released.CompareAndSwap(false, true) {
		return nil
	}
	current.CompareAndSwap(t, nil)
	t.stopWatcher()

	if t.compromised.Load() {
		return fmt.Errorf("%w: lock file was modified while held", ErrCompromised)
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: lock file already removed", ErrCompromised)
		}
		return err
	}
	var record ownerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("%w: lock file unreadable: %v", ErrCompromised, err)
	}
	if record.Token != t.id {
		return fmt.Errorf("%w: lock now owned by %s", ErrCompromised, record.Token)
	}

	if err := os.Remove(t.path); err != nil {
		return err
	}
	t.logger.Debug("lock released", zap.String("path", t.path))
	return nil
}

func (t *Token) stopWatcher() {
	t.stopOnce.Do(func() {
		close(t.done)
		if t.watcher != nil {
			_ = t.watcher.Close()
		}
	})
}

// current is the process-wide slot for the active lock token. The process
// holds at most one store lock at a time; shutdown paths call
// ReleaseCurrent to clean up before exit.
var current atomic.Pointer[Token]

// ReleaseCurrent releases the process's active lock token, if any.
func ReleaseCurrent() error {
	t := current.Swap(nil)
	if t == nil {
		return nil
	}
	return t.Release()
}
