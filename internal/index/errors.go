package index

import "errors"

var (
	// ErrUnavailable wraps transport and server failures talking to
	// the vector index. Callers match it with errors.Is.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch flags vectors whose length differs from
	// the collection's configured dimension. This is a configuration
	// defect, not a transient failure.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
