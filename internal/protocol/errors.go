package protocol

import "errors"

var (
	ErrBodySize   = errors.New("command body must be 1 to 31 bytes")
	ErrShortWrite = errors.New("transport accepted fewer bytes than requested")
)
