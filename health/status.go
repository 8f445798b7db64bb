package health

// State grades how ready an exchange's transport is to carry payloads.
type State string

const (
	// StateHealthy means senders and receivers can be built now: the drop
	// folder exists, the socket is bound, or the broker accepted a TCP
	// connection.
	StateHealthy State = "healthy"

	// StateDegraded means the transport comes up once the processor that
	// owns it starts. A file exchange whose folder no sender has created
	// yet, or a unix exchange whose receiver has not bound the socket, is
	// degraded rather than broken.
	StateDegraded State = "degraded"

	// StateUnhealthy means building would fail: the settings are invalid, an
	// import was never loaded, a path is the wrong kind of file or the
	// broker cannot be dialed.
	StateUnhealthy State = "unhealthy"
)

// gauge is the value exported for s by the checker's exchange gauge.
// Unknown states export as unhealthy.
func (s State) gauge() float64 {
	switch s {
	case StateHealthy:
		return 1
	case StateDegraded:
		return 0.5
	default:
		return 0
	}
}

// Status is the outcome of checking one exchange, or of combining several
// checks with Combine.
type Status struct {
	State State `json:"status" yaml:"status"`

	// Message names what was inspected, such as the drop folder path or the
	// broker address, and what was found there.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Details carries the inspected path or address and, for failures, the
	// underlying error text.
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

func (s Status) IsHealthy() bool   { return s.State == StateHealthy }
func (s Status) IsDegraded() bool  { return s.State == StateDegraded }
func (s Status) IsUnhealthy() bool { return s.State == StateUnhealthy }

// Healthy reports a transport ready for traffic.
func Healthy(message string) Status {
	return Status{State: StateHealthy, Message: message}
}

// Degraded reports a transport still waiting for its owning processor.
func Degraded(message string, details map[string]any) Status {
	return Status{State: StateDegraded, Message: message, Details: details}
}

// Unhealthy reports a transport that cannot be built or reached.
func Unhealthy(message string, details map[string]any) Status {
	return Status{State: StateUnhealthy, Message: message, Details: details}
}

func (s Status) score() float64 {
	return s.State.gauge()
}
