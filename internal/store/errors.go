package store

import "errors"

// ErrNotFound indicates a lookup for a document or segment that does not exist.
var ErrNotFound = errors.New("record not found")
