package sched

// Priority selects the queue a job is placed on. Workers always drain
// PriorityHigh before looking at PriorityLow; there is no aging, so a
// continuous stream of high priority work starves low priority work.
type Priority int32

const (
	PriorityLow Priority = iota
	PriorityHigh

	// NumPriorities is the number of priority levels.
	NumPriorities = int(PriorityHigh) + 1
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Valid reports whether p is a defined level.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

// ParsePriority accepts the String form, case-sensitively, or "low" and
// "high".
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "Low", "low":
		return PriorityLow, true
	case "High", "high":
		return PriorityHigh, true
	default:
		return 0, false
	}
}
