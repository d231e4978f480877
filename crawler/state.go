package crawler

// State is a phase of the extraction loop.
type State int

const (
	StateScanning State = iota
	StateLoadingMore
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "SCANNING"
	case StateLoadingMore:
		return "LOADING_MORE"
	case StateExhausted:
		return "EXHAUSTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
