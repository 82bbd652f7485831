package types

import "errors"

// Domain errors for type validation
var (
	// Metadata decoding errors
	ErrMalformedMetadata = errors.New("malformed context metadata")

	// Knowledge base errors
	ErrMissingParentID = errors.New("parent ID is required")
	ErrEmptyParent     = errors.New("parent must have text or tables")
	ErrInvalidChunk    = errors.New("invalid chunk type")
	ErrEmptyContent    = errors.New("content cannot be empty")
)
