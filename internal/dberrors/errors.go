// Package dberrors provides the structured per-request error taxonomy for
// the Ahnlich database engine.
package dberrors

import "fmt"

// Kind discriminates the closed set of error conditions the wire protocol
// can surface. Kept as a small closed enum; a Kind crosses the wire as the
// bracketed name that opens the per-request error string ("[StoreNotFound] ...").
type Kind uint8

const (
	KindStoreNotFound Kind = iota
	KindStoreAlreadyExists
	KindDimensionMismatch
	KindPredicateNotFound
	KindIndexNotFound
	KindFraming
	KindIncompatibleVersion
	KindAllocatorExhausted
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindStoreNotFound:
		return "StoreNotFound"
	case KindStoreAlreadyExists:
		return "StoreAlreadyExists"
	case KindDimensionMismatch:
		return "DimensionMismatch"
	case KindPredicateNotFound:
		return "PredicateNotFound"
	case KindIndexNotFound:
		return "IndexNotFound"
	case KindFraming:
		return "Framing"
	case KindIncompatibleVersion:
		return "IncompatibleVersion"
	case KindAllocatorExhausted:
		return "AllocatorExhausted"
	default:
		return "Internal"
	}
}

// DBError is the structured error type returned by every engine operation.
// It provides rich context for logging and for the per-request error string
// carried in the response batch.
type DBError struct {
	Kind    Kind
	Message string
	Details map[string]string
	Cause   error
}

// Error implements the error interface.
func (e *DBError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by Kind, enabling
// errors.Is(err, dberrors.New(KindStoreNotFound, "")) style checks.
func (e *DBError) Is(target error) bool {
	if t, ok := target.(*DBError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// WithDetail adds a key-value detail to the error. Returns the error for
// method chaining.
func (e *DBError) WithDetail(key, value string) *DBError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a DBError of the given kind.
func New(kind Kind, message string) *DBError {
	return &DBError{Kind: kind, Message: message}
}

// Wrap creates a DBError from an existing error.
func Wrap(kind Kind, err error) *DBError {
	if err == nil {
		return nil
	}
	return &DBError{Kind: kind, Message: err.Error(), Cause: err}
}

// StoreNotFound builds a StoreNotFound error for the named store.
func StoreNotFound(name string) *DBError {
	return New(KindStoreNotFound, fmt.Sprintf("store not found: %s", name)).WithDetail("store", name)
}

// StoreAlreadyExists builds a StoreAlreadyExists error for the named store.
func StoreAlreadyExists(name string) *DBError {
	return New(KindStoreAlreadyExists, fmt.Sprintf("store already exists: %s", name)).WithDetail("store", name)
}

// DimensionMismatch builds a DimensionMismatch error.
func DimensionMismatch(store string, expected, got int) *DBError {
	return New(KindDimensionMismatch,
		fmt.Sprintf("dimension mismatch: store %s expects %d, got %d", store, expected, got)).
		WithDetail("store", store).
		WithDetail("expected", fmt.Sprintf("%d", expected)).
		WithDetail("input", fmt.Sprintf("%d", got))
}

// PredicateNotFound builds a PredicateNotFound error for a missing predicate
// index key.
func PredicateNotFound(key string) *DBError {
	return New(KindPredicateNotFound, fmt.Sprintf("predicate index not found: %s", key)).WithDetail("key", key)
}

// IndexNotFound builds an IndexNotFound error for a missing non-linear
// index / algorithm.
func IndexNotFound(algo string) *DBError {
	return New(KindIndexNotFound, fmt.Sprintf("non-linear index not found: %s", algo)).WithDetail("algorithm", algo)
}

// Framing builds a connection-fatal framing error.
func Framing(message string) *DBError {
	return New(KindFraming, message)
}

// IncompatibleVersion builds a connection-fatal version mismatch error.
func IncompatibleVersion(message string) *DBError {
	return New(KindIncompatibleVersion, message)
}

// AllocatorExhausted builds an out-of-memory error for the current request.
func AllocatorExhausted(requested, cap uint64) *DBError {
	return New(KindAllocatorExhausted,
		fmt.Sprintf("allocator exhausted: requested %d bytes, cap %d bytes", requested, cap))
}

// Internal builds an unexpected-internal-error wrapper.
func Internal(message string, cause error) *DBError {
	return &DBError{Kind: KindInternal, Message: message, Cause: cause}
}

// GetKind extracts the Kind from an error, returning KindInternal if err is
// not a *DBError.
func GetKind(err error) Kind {
	if de, ok := err.(*DBError); ok {
		return de.Kind
	}
	return KindInternal
}

// IsConnectionFatal reports whether an error kind requires closing the
// connection (Framing and IncompatibleVersion are connection-fatal; all
// others are per-request).
func IsConnectionFatal(err error) bool {
	k := GetKind(err)
	return k == KindFraming || k == KindIncompatibleVersion
}
