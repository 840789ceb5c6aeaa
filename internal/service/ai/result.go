package ai

// FailureReason tags why the remote path produced no reply.
type FailureReason string

const (
	FailureNone         FailureReason = ""
	FailureUnconfigured FailureReason = "unconfigured"
	FailureTransport    FailureReason = "transport"
	FailureTimeout      FailureReason = "timeout"
	FailureStatus       FailureReason = "status"
	FailureMalformed    FailureReason = "malformed"
	FailureNoCandidate  FailureReason = "no_candidate"
	FailureCircuitOpen  FailureReason = "circuit_open"
	FailureCanceled     FailureReason = "canceled"
)

// Result is the outcome of one remote attempt: either Text, or a Failure tag with its cause.
type Result struct {
	Text    string
	Failure FailureReason
	Err     error
}

// Succeeded wraps a usable reply.
func Succeeded(text string) Result {
	return Result{Text: text}
}

// Failed wraps a failure tag and the error behind it.
func Failed(reason FailureReason, err error) Result {
	return Result{Failure: reason, Err: err}
}

// OK reports whether the remote path produced a reply.
func (r Result) OK() bool {
	return r.Failure == FailureNone && r.Text != ""
}
