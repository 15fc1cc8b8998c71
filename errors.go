package kioku

import (
	"errors"
	"fmt"
)

// Sentinel errors for the store. Every error returned by Store operations
// wraps exactly one of these, so callers can classify failures with
// errors.Is without parsing messages.
var (
	// ErrInvalidInput reports a rejected argument: empty content, a
	// malformed embedding, an unauthorized path, or an operation on an
	// unconfigured store.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSchemaMismatch reports that the store file declares a different
	// embedding size than the one requested or configured.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNotFound reports that the store file disappeared after it was
	// configured.
	ErrNotFound = errors.New("store not found")

	// ErrCorruptStore reports that the store file exists but cannot be
	// decoded into a valid store.
	ErrCorruptStore = errors.New("store corrupt")

	// ErrStoreFull reports that adding a document would exceed the
	// configured capacity.
	ErrStoreFull = errors.New("store full")

	// ErrLockContention reports that the store lock stayed held by another
	// process through every acquisition attempt.
	ErrLockContention = errors.New("lock contention")

	// ErrLockCompromised reports that the lock file was removed or
	// rewritten by someone else while an operation held it.
	ErrLockCompromised = errors.New("lock compromised")

	// ErrIO reports an unclassified filesystem failure.
	ErrIO = errors.New("i/o failure")
)

// SchemaMismatchError carries the two embedding sizes involved in a schema
// conflict. It matches ErrSchemaMismatch under errors.Is.
type SchemaMismatchError struct {
	Stored    int
	Requested int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("store declares %d-dimension embeddings, requested %d", e.Stored, e.Requested)
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}
