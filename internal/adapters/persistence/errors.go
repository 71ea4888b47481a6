package persistence

import "errors"

// Sentinel kinds for snapshot errors.
var (
	ErrReadSnapshot    = errors.New("read snapshot")
	ErrWriteSnapshot   = errors.New("write snapshot")
	ErrEncodeSnapshot  = errors.New("encode snapshot")
	ErrDecodeSnapshot  = errors.New("decode snapshot")
	ErrInvalidSnapshot = errors.New("invalid snapshot document")
)
