package stackarena

import (
	"errors"
)

var (
	// ErrExhausted is returned when the reservation has no room for another
	// block.
	ErrExhausted = errors.New("stackarena: arena exhausted")

	// ErrBlocksOutstanding is returned by Close while blocks are live.
	ErrBlocksOutstanding = errors.New("stackarena: blocks outstanding")

	// ErrClosed is returned by operations on a closed arena or pool.
	ErrClosed = errors.New("stackarena: closed")

	// ErrInvalidConfig is returned for invalid options.
	ErrInvalidConfig = errors.New("stackarena: invalid config")
)
