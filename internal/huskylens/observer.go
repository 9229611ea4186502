package huskylens

// EventKind identifies a diagnostic event raised by the Client.
type EventKind int

const (
	// EventFrameSent is raised after a command frame has been written.
	EventFrameSent EventKind = iota
	// EventFrameReceived is raised for every frame that passes validation.
	EventFrameReceived
	// EventFrameRejected is raised when reading a frame fails.
	EventFrameRejected
)

func (k EventKind) String() string {
	switch k {
	case EventFrameSent:
		return "sent"
	case EventFrameReceived:
		return "received"
	case EventFrameRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Event describes one frame crossing the wire, or failing to.
type Event struct {
	Kind    EventKind
	Command Command
	// Raw is the frame's wire bytes; nil for rejected frames.
	Raw []byte
	// Err is set for EventFrameRejected.
	Err error
}

// Observer receives diagnostic events. Observe is called synchronously from
// the exchange in progress and must not call back into the Client.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// MultiObserver returns an Observer that forwards every event to each of obs
// in order. Nil entries are skipped.
func MultiObserver(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
