package service

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy. Plugin- and provider-level failures are translated into
// these at the orchestrator boundary; handlers map them onto HTTP codes.
var (
	// ErrNotFound covers absent collections and files.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName is a naming collision within an owner+name+visibility
	// scope, including the loser of a concurrent create race.
	ErrDuplicateName = errors.New("collection name already exists in this scope")

	// ErrEmbeddingValidation means the provider rejected the trial
	// embedding call, or the configured model does not fit the store.
	ErrEmbeddingValidation = errors.New("embedding configuration validation failed")

	// ErrEmbeddingTimeout is a provider call exceeding its bounded timeout.
	ErrEmbeddingTimeout = errors.New("embedding provider timed out")

	// ErrVectorStoreTimeout is a vector store call exceeding its bounded
	// timeout.
	ErrVectorStoreTimeout = errors.New("vector store timed out")

	// ErrVectorStoreMissing signals metadata/vector-store desynchronization:
	// a metadata row whose vector collection cannot be resolved. It is
	// surfaced, never healed by silently creating an empty collection.
	ErrVectorStoreMissing = errors.New("vector store collection missing for metadata row")

	// ErrStorageFault is a post-write verification failure.
	ErrStorageFault = errors.New("storage verification failed")

	// ErrEmbeddingFrozen rejects embedding config changes on a collection
	// that already holds embedded documents.
	ErrEmbeddingFrozen = errors.New("embedding configuration is immutable once documents exist")

	// ErrValidation covers malformed request fields.
	ErrValidation = errors.New("validation failed")
)

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapEmbeddingErr translates a raw provider error, distinguishing the
// bounded-timeout case.
func mapEmbeddingErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrEmbeddingTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrEmbeddingValidation, err)
}

func mapVectorStoreErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrVectorStoreTimeout, err)
	}
	return err
}
