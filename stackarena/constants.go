package stackarena

const (
	// StackAlign is the alignment of every block and of Top.
	StackAlign = 16

	// DefaultMaxSize is the default address space reservation.
	DefaultMaxSize = 256 << 20

	// DefaultCommitChunk is the granularity at which reserved pages are
	// committed as the bump offset advances.
	DefaultCommitChunk = 64 << 10
)
