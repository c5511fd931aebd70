package extract

import "errors"

var (
	// ErrUnsupportedType indicates no extractor is registered for the file.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrEmptyContent indicates extraction produced no usable text. This is
	// fatal for the whole document.
	ErrEmptyContent = errors.New("extracted content is empty")
)
