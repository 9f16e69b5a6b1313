package akgraph

import "errors"

var (
	// ErrConfiguration is returned when the client cannot be assembled
	// from the provided configuration.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrExtraction is returned when every extraction strategy failed
	// for a chunk.
	ErrExtraction = errors.New("extraction failed")
	// ErrGraphWrite is returned when a graph commit could not complete.
	ErrGraphWrite = errors.New("graph write failed")
	// ErrDocumentInvalid is returned for documents missing required
	// fields.
	ErrDocumentInvalid = errors.New("invalid document")
)
