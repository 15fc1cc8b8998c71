package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLockPath(t *testing.T) {
	got := LockPath("/data/store.json")
	want := "/data/store.json.lock"
	if got != want {
		t.Errorf("LockPath() = %q, want %q", got, want)
	}
}

func TestAcquireRelease(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	m := NewManager()

	token, err := m.Acquire(context.Background(), storePath)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	data, err := os.ReadFile(LockPath(storePath))
	if err != nil {
		t.Fatalf("lock file not readable: %v", err)
	}
	var record ownerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("lock file content invalid: %v", err)
	}
	if record.Token == "" {
		t.Error("expected non-empty owner token")
	}
	if record.PID != os.Getpid() {
		t.Errorf("owner pid = %d, want %d", record.PID, os.Getpid())
	}
	if record.AcquiredAt == 0 {
		t.Error("expected non-zero acquiredAt")
	}

	if err := token.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(LockPath(storePath)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected lock file removed, stat error = %v", err)
	}
}

func TestAcquireContention(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")

	// A fresh foreign lock that never goes away.
	if err := os.WriteFile(LockPath(storePath), []byte(`{"token":"other"}`), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(WithRetry(3, time.Millisecond, 5*time.Millisecond))
	_, err := m.Acquire(context.Background(), storePath)
	if !errors.Is(err, ErrHeld) {
		t.Errorf("Acquire() error = %v, want ErrHeld", err)
	}
}

func TestAcquireRetriesUntilReleased(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	lockPath := LockPath(storePath)

	if err := os.WriteFile(lockPath, []byte(`{"token":"other"}`), 0644); err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		os.Remove(lockPath)
	}()

	m := NewManager(WithRetry(5, 10*time.Millisecond, 50*time.Millisecond))
	token, err := m.Acquire(context.Background(), storePath)
	if err != nil {
		t.Fatalf("Acquire() error = %v, want success after holder releases", err)
	}
	if err := token.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}

func TestAcquireBreaksStaleLock(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	lockPath := LockPath(storePath)

	if err := os.WriteFile(lockPath, []byte(`{"token":"dead-process"}`), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatal(err)
	}

	m := NewManager(WithStaleAfter(30 * time.Second))
	token, err := m.Acquire(context.Background(), storePath)
	if err != nil {
		t.Fatalf("Acquire() error = %v, want stale lock broken", err)
	}

	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	var record ownerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatal(err)
	}
	if record.Token == "dead-process" {
		t.Error("expected stale owner record replaced")
	}

	if err := token.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}

func TestAcquireFreshLockNotBroken(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	lockPath := LockPath(storePath)

	before := []byte(`{"token":"other"}`)
	if err := os.WriteFile(lockPath, before, 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(WithRetry(2, time.Millisecond, 2*time.Millisecond))
	if _, err := m.Acquire(context.Background(), storePath); !errors.Is(err, ErrHeld) {
		t.Fatalf("Acquire() error = %v, want ErrHeld", err)
	}

	after, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Error("fresh foreign lock was modified")
	}
}

func TestAcquireCanceledContext(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")

	if err := os.WriteFile(LockPath(storePath), []byte(`{"token":"other"}`), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewManager()
	_, err := m.Acquire(ctx, storePath)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

func TestCompromiseDetectedOnRemove(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	m := NewManager()

	token, err := m.Acquire(context.Background(), storePath)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(LockPath(storePath)); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !token.Compromised() {
		if time.Now().After(deadline) {
			t.Fatal("compromise not detected after lock file removal")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := token.Release(); !errors.Is(err, ErrCompromised) {
		t.Errorf("Release() error = %v, want ErrCompromised", err)
	}
}

func TestReleaseRejectsStolenLock(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	m := NewManager()

	token, err := m.Acquire(context.Background(), storePath)
	if err != nil {
		t.Fatal(err)
	}

	// Another process replaces the lock with its own record.
	stolen, _ := json.Marshal(ownerRecord{Token: "thief", PID: 1})
	if err := os.WriteFile(LockPath(storePath), stolen, 0644); err != nil {
		t.Fatal(err)
	}

	if err := token.Release(); !errors.Is(err, ErrCompromised) {
		t.Errorf("Release() error = %v, want ErrCompromised", err)
	}
}

func TestReleaseTwice(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	m := NewManager()

	token, err := m.Acquire(context.Background(), storePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := token.Release(); err != nil {
		t.Fatalf("first Release() error = %v", err)
	}
	if err := token.Release(); err != nil {
		t.Errorf("second Release() error = %v, want nil", err)
	}
}

func TestReleaseCurrent(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	m := NewManager()

	if _, err := m.Acquire(context.Background(), storePath); err != nil {
		t.Fatal(err)
	}

	if err := ReleaseCurrent(); err != nil {
		t.Fatalf("ReleaseCurrent() error = %v", err)
	}
	if _, err := os.Stat(LockPath(storePath)); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected lock file removed, stat error = %v", err)
	}

	// Nothing held: no-op.
	if err := ReleaseCurrent(); err != nil {
		t.Errorf("idle ReleaseCurrent() error = %v, want nil", err)
	}
}

func TestReleaseClearsCurrentSlot(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "store.json")
	m := NewManager()

	token, err := m.Acquire(context.Background(), storePath)
	if err != nil {
		t.Fatal(err)
	}
	if err := token.Release(); err != nil {
		t.Fatal(err)
	}

	// The released token must not linger in the process slot.
	if got := current.Load(); got == token {
		t.Error("released token still registered as current")
	}
}
