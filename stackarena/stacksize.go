//go:build !race

package stackarena

// DefaultStackSize is the block size handed out for each fiber stack.
const DefaultStackSize = 64 << 10
