package vectorindex

import "errors"

var (
	// ErrUnreachable indicates the vector engine did not answer health checks.
	ErrUnreachable = errors.New("vector index unreachable")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// collection's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
