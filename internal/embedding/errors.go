package embedding

import "errors"

var (
	// ErrInvalidInput marks a validation-class failure (4xx) that retrying
	// cannot fix.
	ErrInvalidInput = errors.New("embedding request rejected")

	// ErrShapeMismatch marks a response whose vector count or dimensions do
	// not match the input batch.
	ErrShapeMismatch = errors.New("embedding response shape mismatch")
)
