package session

import "errors"

var (
	// ErrNotFound is returned for operations on an unknown or already removed id.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidState is returned when an event arrives out of protocol order.
	ErrInvalidState = errors.New("session in invalid state")
	// ErrResourceExhausted is returned when no unique id can be allocated.
	ErrResourceExhausted = errors.New("session id space exhausted")

	// ErrBufferFull is returned by Outbound implementations whose queue is full.
	ErrBufferFull = errors.New("outbound buffer full")
	// ErrConnClosed is returned by Outbound implementations after teardown.
	ErrConnClosed = errors.New("outbound connection closed")
)
