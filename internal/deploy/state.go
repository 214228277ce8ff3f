package deploy

// State is a phase of one deployment session.
type State int

const (
	StateInit State = iota
	StatePackaging
	StateUploading
	StateAwaitingSelection
	StateStreaming
	StateCompleted
	StateFailed
	StateDisconnectedAssumedOK
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePackaging:
		return "packaging"
	case StateUploading:
		return "uploading"
	case StateAwaitingSelection:
		return "awaiting-selection"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateDisconnectedAssumedOK:
		return "disconnected-assumed-ok"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateDisconnectedAssumedOK
}
