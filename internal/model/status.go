package model

// State is the lifecycle state of a download task.
type State int

const (
	// StateWait means the task is idle or queued.
	StateWait State = iota
	// StateDownloading means a probe or chunk request is in flight.
	StateDownloading
	// StateCompleted means the target file is in place.
	StateCompleted
	// StateError means the task failed and will not move without an explicit Start.
	StateError
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateWait:
		return "wait"
	case StateDownloading:
		return "downloading"
	case StateCompleted:
		return "completed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for COMPLETED and ERROR.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

// EventKind identifies what happened to a task. The order matters: every kind
// at or after EventCompleted is terminal.
type EventKind int

const (
	EventStart EventKind = iota
	EventUpdate
	EventStop
	EventCompleted
	EventError
)

// String returns the string representation of EventKind
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventUpdate:
		return "update"
	case EventStop:
		return "stop"
	case EventCompleted:
		return "completed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the event ends the task's current run.
func (k EventKind) Terminal() bool {
	return k >= EventCompleted
}

// Event is emitted by a task on every visible transition.
type Event struct {
	Kind   EventKind
	TaskID string
	// HTTPStatus is the last transport status code, 0 when no response was
	// received and -1 when the event is not tied to a response.
	HTTPStatus int
	Info       Descriptor
	Err        error
}
