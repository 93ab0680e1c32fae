//go:build race

package stackarena

// DefaultStackSize is larger under the race detector, which inflates
// per-frame usage.
const DefaultStackSize = (512 + 64) << 10
