package storage

import "errors"

var (
	ErrStoreUnreachable  = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrSourceNotFound    = errors.New("source not found in index")
)
