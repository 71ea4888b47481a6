package importer

import "errors"

// Sentinel kinds for import errors.
var (
	ErrMalformedExport    = errors.New("malformed export document")
	ErrUnknownPenaltyCode = errors.New("unknown penalty code")
)
