package catalog

import "errors"

var (
	ErrStoreClosed  = errors.New("catalog store is closed")
	ErrWriteTimeout = errors.New("catalog write timed out")
)
